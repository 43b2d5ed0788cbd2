package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/notekeep/notekeep/internal/crypto/backupcrypto"
	"github.com/notekeep/notekeep/internal/repository"
)

// Exporter serializes the whole store into the current backup format.
type Exporter struct {
	notes  repository.NoteRepository
	labels repository.LabelRepository
	log    *zap.Logger
}

// NewExporter constructs an exporter over the given stores.
func NewExporter(notes repository.NoteRepository, labels repository.LabelRepository, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{notes: notes, labels: labels, log: log}
}

// Document builds the backup document for the current store contents.
func (ex *Exporter) Document(ctx context.Context) (*Document, error) {
	doc := &Document{
		Version: VersionCurrent,
		Notes:   make(map[int64]NoteSurrogate),
		Labels:  make(map[int64]LabelSurrogate),
	}

	labels, err := ex.labels.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export labels: %w", err)
	}
	for _, l := range labels {
		doc.Labels[l.ID] = LabelSurrogate{Name: l.Name, Hidden: l.Hidden}
	}

	notes, err := ex.notes.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export notes: %w", err)
	}
	for _, n := range notes {
		labelIDs, err := ex.notes.GetLabelIDs(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("export note %d: %w", n.ID, err)
		}
		doc.Notes[n.ID] = noteSurrogate(n, labelIDs)
	}
	return doc, nil
}

// Export serializes the store into the plain envelope.
func (ex *Exporter) Export(ctx context.Context) ([]byte, error) {
	doc, err := ex.Document(ctx)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(struct {
		NotesData *Document `json:"notesData"`
	}{doc})
	if err != nil {
		return nil, err
	}
	ex.log.Info("backup exported", zap.Int("notes", len(doc.Notes)), zap.Int("labels", len(doc.Labels)))
	return out, nil
}

// ExportEncrypted serializes the store into the encrypted envelope, deriving
// the key from the password with a fresh salt.
func (ex *Exporter) ExportEncrypted(ctx context.Context, password []byte) ([]byte, error) {
	plain, err := ex.Export(ctx)
	if err != nil {
		return nil, err
	}
	salt, err := backupcrypto.Rand(backupcrypto.SaltLen)
	if err != nil {
		return nil, err
	}
	key := backupcrypto.DeriveKey(password, salt)
	nonce, ct, err := backupcrypto.Encrypt(key, plain)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Encrypted EncryptedEnvelope `json:"encryptedNotesData"`
	}{EncryptedEnvelope{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}})
}
