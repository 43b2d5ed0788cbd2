package service

import (
	"context"
	"errors"
	"testing"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
)

func TestLabels_Create(t *testing.T) {
	t.Parallel()
	labels := newFakeLabelRepo()
	s := NewLabelService(labels, newFakeNoteRepo())

	if _, err := s.Create(context.Background(), "   ", false); err == nil {
		t.Fatalf("want validation error on blank name")
	}

	id, err := s.Create(context.Background(), "  my   label ", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := labels.byID[id].Name; got != "my label" {
		t.Fatalf("name = %q, want whitespace collapsed", got)
	}

	if _, err := s.Create(context.Background(), "my  label", false); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists for same normalized name, got %v", err)
	}

	hid, err := s.Create(context.Background(), "secret", true)
	if err != nil {
		t.Fatalf("Create hidden: %v", err)
	}
	if !labels.byID[hid].Hidden {
		t.Fatalf("hidden flag not stored")
	}

	labels.insertErr = errors.New("boom")
	if _, err := s.Create(context.Background(), "other", false); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestLabels_Rename(t *testing.T) {
	t.Parallel()
	labels := newFakeLabelRepo()
	s := NewLabelService(labels, newFakeNoteRepo())

	a, _ := s.Create(context.Background(), "work", false)
	b, _ := s.Create(context.Background(), "home", false)

	if err := s.Rename(context.Background(), a, ""); err == nil {
		t.Fatalf("want validation error on blank name")
	}
	if err := s.Rename(context.Background(), 999, "x"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Rename(context.Background(), a, "home"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists renaming onto %d, got %v", b, err)
	}

	// Renaming to your own name is fine.
	if err := s.Rename(context.Background(), a, " work "); err != nil {
		t.Fatalf("self rename: %v", err)
	}

	if err := s.Rename(context.Background(), a, "office"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got := labels.byID[a].Name; got != "office" {
		t.Fatalf("name = %q", got)
	}
}

func TestLabels_SetHidden(t *testing.T) {
	t.Parallel()
	labels := newFakeLabelRepo()
	s := NewLabelService(labels, newFakeNoteRepo())

	id, _ := s.Create(context.Background(), "work", false)
	if err := s.SetHidden(context.Background(), id, true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}
	if !labels.byID[id].Hidden {
		t.Fatalf("label not hidden")
	}
	if err := s.SetHidden(context.Background(), 999, true); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestLabels_Delete(t *testing.T) {
	t.Parallel()
	labels := newFakeLabelRepo()
	s := NewLabelService(labels, newFakeNoteRepo())

	id, _ := s.Create(context.Background(), "work", false)
	if err := s.Delete(context.Background()); err != nil {
		t.Fatalf("empty Delete: %v", err)
	}
	if err := s.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := labels.byID[id]; ok {
		t.Fatalf("label survived delete")
	}
}

func TestLabels_SetNoteLabels(t *testing.T) {
	t.Parallel()
	labels := newFakeLabelRepo()
	notes := newFakeNoteRepo()
	s := NewLabelService(labels, notes)

	noteID, _ := notes.Insert(context.Background(), &model.Note{Title: "n", Pinned: model.Unpinned})
	a, _ := s.Create(context.Background(), "work", false)
	b, _ := s.Create(context.Background(), "home", false)

	if err := s.SetNoteLabels(context.Background(), noteID, []int64{a, 999}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown label, got %v", err)
	}
	if err := s.SetNoteLabels(context.Background(), noteID, []int64{a, b}); err != nil {
		t.Fatalf("SetNoteLabels: %v", err)
	}
	got, _ := notes.GetLabelIDs(context.Background(), noteID)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("label ids = %v", got)
	}

	if err := s.SetNoteLabels(context.Background(), noteID, nil); err != nil {
		t.Fatalf("clear labels: %v", err)
	}
	got, _ = notes.GetLabelIDs(context.Background(), noteID)
	if len(got) != 0 {
		t.Fatalf("labels not cleared: %v", got)
	}
}
