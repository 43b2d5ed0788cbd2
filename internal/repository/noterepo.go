package repository

import (
	"context"
	"time"

	"github.com/notekeep/notekeep/internal/model"
)

// NoteRepository provides persistent access to notes and their label refs.
type NoteRepository interface {
	// Insert stores a new note and returns its assigned id.
	Insert(ctx context.Context, note *model.Note) (int64, error)

	// Update overwrites an existing note by id.
	Update(ctx context.Context, note *model.Note) error

	// Delete removes notes permanently, including their label refs.
	Delete(ctx context.Context, ids ...int64) error

	// Get returns a single note by id.
	Get(ctx context.Context, id int64) (*model.Note, error)

	// GetAll returns every stored note, ordered by id.
	GetAll(ctx context.Context) ([]model.Note, error)

	// GetByStatus returns notes in the given lifecycle state, pinned first,
	// most recently modified next.
	GetByStatus(ctx context.Context, status model.NoteStatus) ([]model.Note, error)

	// GetByLabel returns notes in the given status carrying the label.
	GetByLabel(ctx context.Context, labelID int64, status model.NoteStatus) ([]model.Note, error)

	// Search returns active and archived notes whose title or content
	// contains the query, case-insensitively.
	Search(ctx context.Context, query string) ([]model.Note, error)

	// GetWithReminder returns all notes that currently have a reminder.
	GetWithReminder(ctx context.Context) ([]model.Note, error)

	// DeleteOlderThan removes notes in the given status whose modified time
	// is before the cutoff, returning how many were removed.
	DeleteOlderThan(ctx context.Context, status model.NoteStatus, before time.Time) (int64, error)

	// GetLabelIDs returns the ids of labels attached to a note.
	GetLabelIDs(ctx context.Context, noteID int64) ([]int64, error)

	// SetLabelIDs replaces the set of labels attached to a note.
	SetLabelIDs(ctx context.Context, noteID int64, labelIDs []int64) error
}

// LabelRepository provides persistent access to labels.
type LabelRepository interface {
	// Insert stores a new label and returns its assigned id.
	Insert(ctx context.Context, label *model.Label) (int64, error)

	// Update overwrites an existing label by id.
	Update(ctx context.Context, label *model.Label) error

	// Delete removes labels and their note refs.
	Delete(ctx context.Context, ids ...int64) error

	// Get returns a single label by id.
	Get(ctx context.Context, id int64) (*model.Label, error)

	// GetByName returns the label with the exact (normalized) name.
	GetByName(ctx context.Context, name string) (*model.Label, error)

	// GetAll returns every label ordered by name.
	GetAll(ctx context.Context) ([]model.Label, error)
}
