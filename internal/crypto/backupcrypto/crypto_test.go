package backupcrypto

import (
	"bytes"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	t.Parallel()

	salt, err := Rand(SaltLen)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	k1 := DeriveKey([]byte("correct horse"), salt)
	k2 := DeriveKey([]byte("correct horse"), salt)
	if len(k1) != KeyLen {
		t.Fatalf("key length %d", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("same password and salt must derive the same key")
	}

	other := DeriveKey([]byte("correct horse"), append([]byte(nil), make([]byte, SaltLen)...))
	if bytes.Equal(k1, other) {
		t.Fatalf("different salt must derive a different key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	key := DeriveKey([]byte("pw"), make([]byte, SaltLen))
	plain := []byte(`{"version":4,"notes":{}}`)

	nonce, ct, err := Encrypt(key, plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(nonce) != NonceLen {
		t.Fatalf("nonce length %d", len(nonce))
	}
	if bytes.Contains(ct, plain) {
		t.Fatalf("ciphertext leaks plaintext")
	}

	got, err := Decrypt(key, nonce, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip lost data: %q", got)
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	t.Parallel()

	key := make([]byte, KeyLen)
	n1, _, err := Encrypt(key, []byte("x"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	n2, _, err := Encrypt(key, []byte("x"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(n1, n2) {
		t.Fatalf("nonces must not repeat")
	}
}

func TestDecryptRejectsWrongKeyAndTampering(t *testing.T) {
	t.Parallel()

	key := DeriveKey([]byte("pw"), make([]byte, SaltLen))
	nonce, ct, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	wrong := DeriveKey([]byte("pw2"), make([]byte, SaltLen))
	if _, err := Decrypt(wrong, nonce, ct); err == nil {
		t.Fatalf("wrong key must fail")
	}

	ct[0] ^= 1
	if _, err := Decrypt(key, nonce, ct); err == nil {
		t.Fatalf("tampered ciphertext must fail")
	}
}
