package edit

import (
	"context"
	"testing"
	"time"
)

func TestManagerOpenCloseReopen(t *testing.T) {
	t.Parallel()

	repo := newFakeNotes()
	n := listNote("a", []bool{false})
	id, _ := repo.Insert(context.Background(), &n)

	m := NewManager(repo, nil, Prefs{}, SessionConfig{BatchDelay: time.Hour}, nil)

	s1, err := m.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.CheckItem(0, true)
	if err := m.Close(context.Background(), s1); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The reopened session sees the saved state.
	s2, err := m.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if items := s2.Items(); !items[0].Checked {
		t.Fatalf("reopen must see the closed session's save: %+v", items)
	}
	if err := m.Close(context.Background(), s2); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestManagerOpenWaitsForPendingClose(t *testing.T) {
	t.Parallel()

	repo := newFakeNotes()
	n := listNote("a", []bool{false})
	id, _ := repo.Insert(context.Background(), &n)

	m := NewManager(repo, nil, Prefs{}, SessionConfig{BatchDelay: time.Hour}, nil)
	s1, err := m.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.CheckItem(0, true)

	closed := make(chan error, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		closed <- m.Close(context.Background(), s1)
	}()

	// This blocks until the close above lands, then reads fresh state.
	s2, err := m.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := <-closed; err != nil {
		t.Fatalf("Close: %v", err)
	}
	if items := s2.Items(); !items[0].Checked {
		t.Fatalf("reopen raced ahead of the close: %+v", items)
	}

	// An abandoned wait reports the context error.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Open(ctx, id); err == nil {
		t.Fatalf("open with canceled context over a live session must fail")
	}
	_ = m.Close(context.Background(), s2)
}
