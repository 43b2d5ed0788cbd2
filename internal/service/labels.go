package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/repository"
)

// LabelService defines label management operations.
type LabelService interface {
	// Create stores a new label under a normalized, unique name.
	Create(ctx context.Context, name string, hidden bool) (int64, error)
	// Rename changes a label's name, keeping it unique.
	Rename(ctx context.Context, id int64, name string) error
	// SetHidden toggles a label's hidden flag.
	SetHidden(ctx context.Context, id int64, hidden bool) error
	// Delete removes labels and detaches them from all notes.
	Delete(ctx context.Context, ids ...int64) error
	// List returns all labels.
	List(ctx context.Context) ([]model.Label, error)
	// SetNoteLabels replaces the labels attached to a note.
	SetNoteLabels(ctx context.Context, noteID int64, labelIDs []int64) error
}

type LabelServiceImpl struct {
	labels repository.LabelRepository
	notes  repository.NoteRepository
}

// NewLabelService constructs LabelService.
func NewLabelService(labels repository.LabelRepository, notes repository.NoteRepository) *LabelServiceImpl {
	return &LabelServiceImpl{labels: labels, notes: notes}
}

// Create normalizes the name and stores a new label.
func (s *LabelServiceImpl) Create(ctx context.Context, name string, hidden bool) (int64, error) {
	name = model.NormalizeLabelName(name)
	if name == "" {
		return 0, errors.New("validation: empty label name")
	}
	if _, err := s.labels.GetByName(ctx, name); err == nil {
		return 0, fmt.Errorf("label %q: %w", name, errs.ErrAlreadyExists)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return 0, err
	}
	return s.labels.Insert(ctx, &model.Label{Name: name, Hidden: hidden})
}

// Rename changes a label's normalized name, rejecting duplicates.
func (s *LabelServiceImpl) Rename(ctx context.Context, id int64, name string) error {
	name = model.NormalizeLabelName(name)
	if name == "" {
		return errors.New("validation: empty label name")
	}
	l, err := s.labels.Get(ctx, id)
	if err != nil {
		return err
	}
	if other, err := s.labels.GetByName(ctx, name); err == nil && other.ID != id {
		return fmt.Errorf("label %q: %w", name, errs.ErrAlreadyExists)
	} else if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	l.Name = name
	return s.labels.Update(ctx, l)
}

// SetHidden toggles the hidden flag.
func (s *LabelServiceImpl) SetHidden(ctx context.Context, id int64, hidden bool) error {
	l, err := s.labels.Get(ctx, id)
	if err != nil {
		return err
	}
	l.Hidden = hidden
	return s.labels.Update(ctx, l)
}

// Delete removes labels and their refs.
func (s *LabelServiceImpl) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.labels.Delete(ctx, ids...)
}

// List returns all labels.
func (s *LabelServiceImpl) List(ctx context.Context) ([]model.Label, error) {
	return s.labels.GetAll(ctx)
}

// SetNoteLabels replaces a note's labels after checking they all exist.
func (s *LabelServiceImpl) SetNoteLabels(ctx context.Context, noteID int64, labelIDs []int64) error {
	for _, id := range labelIDs {
		if _, err := s.labels.Get(ctx, id); err != nil {
			return fmt.Errorf("label %d: %w", id, err)
		}
	}
	return s.notes.SetLabelIDs(ctx, noteID, labelIDs)
}
