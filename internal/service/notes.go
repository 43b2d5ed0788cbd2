// Package service contains application services for notes and labels.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/reminder"
	"github.com/notekeep/notekeep/internal/repository"
)

// DefaultTrashRetention is how long trashed notes are kept before purge.
const DefaultTrashRetention = 7 * 24 * time.Hour

// NoteService defines note lifecycle operations.
type NoteService interface {
	// Create validates and stores a new note.
	Create(ctx context.Context, note *model.Note) (int64, error)
	// Get returns a note with its label ids.
	Get(ctx context.Context, id int64) (*model.Note, []int64, error)
	// List returns notes in a lifecycle state. Notes carrying only hidden
	// labels are excluded from the active listing.
	List(ctx context.Context, status model.NoteStatus) ([]model.Note, error)
	// ListByLabel returns notes in a state carrying the label.
	ListByLabel(ctx context.Context, labelID int64, status model.NoteStatus) ([]model.Note, error)
	// Search returns notes matching the query.
	Search(ctx context.Context, query string) ([]model.Note, error)
	// SetPinned pins or unpins an active note.
	SetPinned(ctx context.Context, id int64, pinned bool) error
	// SetStatus moves a note between active, archived and trashed.
	SetStatus(ctx context.Context, id int64, status model.NoteStatus) error
	// SetReminder sets or replaces a note's reminder and schedules its alarm.
	SetReminder(ctx context.Context, id int64, start time.Time, recurrence string) error
	// RemoveReminder clears a note's reminder and cancels its alarm.
	RemoveReminder(ctx context.Context, id int64) error
	// MarkReminderDone advances a fired reminder.
	MarkReminderDone(ctx context.Context, id int64) error
	// DeleteForever removes notes permanently.
	DeleteForever(ctx context.Context, ids ...int64) error
	// EmptyTrash removes every trashed note.
	EmptyTrash(ctx context.Context) error
	// PurgeTrash removes trashed notes older than the retention window and
	// returns how many were purged.
	PurgeTrash(ctx context.Context) (int64, error)
}

type NoteServiceImpl struct {
	notes     repository.NoteRepository
	labels    repository.LabelRepository
	sched     reminder.Scheduler
	retention time.Duration
	clock     func() time.Time
	log       *zap.Logger
}

// NewNoteService constructs NoteService. Zero retention selects the default;
// nil clock means time.Now.
func NewNoteService(notes repository.NoteRepository, labels repository.LabelRepository, sched reminder.Scheduler, retention time.Duration, clock func() time.Time, log *zap.Logger) *NoteServiceImpl {
	if retention <= 0 {
		retention = DefaultTrashRetention
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NoteServiceImpl{notes: notes, labels: labels, sched: sched, retention: retention, clock: clock, log: log}
}

// Create validates invariants and stores the note.
func (s *NoteServiceImpl) Create(ctx context.Context, note *model.Note) (int64, error) {
	if !note.Type.Valid() {
		return 0, fmt.Errorf("validation: bad note type %d", note.Type)
	}
	if !note.Status.Valid() {
		return 0, fmt.Errorf("validation: bad note status %d", note.Status)
	}
	if err := note.CheckInvariant(); err != nil {
		return 0, fmt.Errorf("validation: %w", err)
	}
	now := s.clock()
	if note.Added.IsZero() {
		note.Added = now
	}
	if note.Modified.IsZero() {
		note.Modified = now
	}
	return s.notes.Insert(ctx, note)
}

// Get returns a note and its label ids.
func (s *NoteServiceImpl) Get(ctx context.Context, id int64) (*model.Note, []int64, error) {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	labelIDs, err := s.notes.GetLabelIDs(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return n, labelIDs, nil
}

// List returns notes in a state. Active listings exclude notes that carry at
// least one hidden label.
func (s *NoteServiceImpl) List(ctx context.Context, status model.NoteStatus) ([]model.Note, error) {
	notes, err := s.notes.GetByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if status != model.StatusActive {
		return notes, nil
	}
	hidden, err := s.hiddenLabelIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(hidden) == 0 {
		return notes, nil
	}
	out := notes[:0]
	for _, n := range notes {
		labelIDs, err := s.notes.GetLabelIDs(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		if !anyIn(labelIDs, hidden) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *NoteServiceImpl) hiddenLabelIDs(ctx context.Context) (map[int64]bool, error) {
	labels, err := s.labels.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	hidden := make(map[int64]bool)
	for _, l := range labels {
		if l.Hidden {
			hidden[l.ID] = true
		}
	}
	return hidden, nil
}

func anyIn(ids []int64, set map[int64]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

// ListByLabel returns notes carrying the label in the given state.
func (s *NoteServiceImpl) ListByLabel(ctx context.Context, labelID int64, status model.NoteStatus) ([]model.Note, error) {
	return s.notes.GetByLabel(ctx, labelID, status)
}

// Search returns active and archived notes matching the query.
func (s *NoteServiceImpl) Search(ctx context.Context, query string) ([]model.Note, error) {
	if query == "" {
		return nil, errors.New("validation: empty query")
	}
	return s.notes.Search(ctx, query)
}

// SetPinned pins or unpins a note. Only active notes can be pinned.
func (s *NoteServiceImpl) SetPinned(ctx context.Context, id int64, pinned bool) error {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != model.StatusActive {
		return fmt.Errorf("pin note %d: %w", id, errs.ErrInvalidState)
	}
	if pinned {
		n.Pinned = model.Pinned
	} else {
		n.Pinned = model.Unpinned
	}
	return s.notes.Update(ctx, n)
}

// SetStatus moves a note between lifecycle states, keeping the pinned
// invariant. Trashing a note drops its reminder.
func (s *NoteServiceImpl) SetStatus(ctx context.Context, id int64, status model.NoteStatus) error {
	if !status.Valid() {
		return fmt.Errorf("validation: bad note status %d", status)
	}
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	updated := n.WithStatus(status)
	if status == model.StatusDeleted && updated.Reminder != nil {
		updated.Reminder = nil
		if err := s.sched.Cancel(ctx, id); err != nil {
			return err
		}
	}
	updated.Modified = s.clock()
	return s.notes.Update(ctx, &updated)
}

// SetReminder sets or replaces the reminder and schedules its alarm.
func (s *NoteServiceImpl) SetReminder(ctx context.Context, id int64, start time.Time, recurrence string) error {
	if err := reminder.ValidateRecurrence(recurrence); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	rem := &model.Reminder{Start: start, Recurrence: recurrence, Next: start}
	n.Reminder = rem
	if err := s.notes.Update(ctx, n); err != nil {
		return err
	}
	return s.sched.Set(ctx, id, rem)
}

// RemoveReminder clears the reminder and cancels its alarm.
func (s *NoteServiceImpl) RemoveReminder(ctx context.Context, id int64) error {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Reminder == nil {
		return nil
	}
	n.Reminder = nil
	if err := s.notes.Update(ctx, n); err != nil {
		return err
	}
	return s.sched.Cancel(ctx, id)
}

// MarkReminderDone advances a fired reminder to its next occurrence, or
// marks a one-shot reminder done.
func (s *NoteServiceImpl) MarkReminderDone(ctx context.Context, id int64) error {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Reminder == nil {
		return fmt.Errorf("note %d has no reminder: %w", id, errs.ErrInvalidState)
	}
	advanced := reminder.MarkTriggered(*n.Reminder, s.clock())
	n.Reminder = &advanced
	if err := s.notes.Update(ctx, n); err != nil {
		return err
	}
	return s.sched.Set(ctx, id, n.Reminder)
}

// DeleteForever removes notes permanently and cancels their alarms.
func (s *NoteServiceImpl) DeleteForever(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := s.sched.Cancel(ctx, id); err != nil {
			return err
		}
	}
	return s.notes.Delete(ctx, ids...)
}

// EmptyTrash removes every trashed note.
func (s *NoteServiceImpl) EmptyTrash(ctx context.Context) error {
	trashed, err := s.notes.GetByStatus(ctx, model.StatusDeleted)
	if err != nil {
		return err
	}
	ids := make([]int64, len(trashed))
	for i, n := range trashed {
		ids[i] = n.ID
	}
	return s.DeleteForever(ctx, ids...)
}

// PurgeTrash removes trashed notes past the retention window.
func (s *NoteServiceImpl) PurgeTrash(ctx context.Context) (int64, error) {
	cutoff := s.clock().Add(-s.retention)
	n, err := s.notes.DeleteOlderThan(ctx, model.StatusDeleted, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("trash purged", zap.Int64("notes", n))
	}
	return n, nil
}
