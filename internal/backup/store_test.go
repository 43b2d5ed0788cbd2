package backup

import (
	"context"
	"sort"
	"time"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
	"github.com/notekeep/notekeep/internal/repository"
)

// memStore is an in-memory note+label store used by import/export tests.
type memStore struct {
	notes      map[int64]*model.Note
	labels     map[int64]*model.Label
	refs       map[int64][]int64
	nextNoteID int64
	nextLabel  int64
}

func newMemStore() *memStore {
	return &memStore{
		notes:      map[int64]*model.Note{},
		labels:     map[int64]*model.Label{},
		refs:       map[int64][]int64{},
		nextNoteID: 1,
		nextLabel:  1,
	}
}

type memNotes struct{ s *memStore }
type memLabels struct{ s *memStore }

var (
	_ repository.NoteRepository  = memNotes{}
	_ repository.LabelRepository = memLabels{}
)

func (r memNotes) Insert(_ context.Context, n *model.Note) (int64, error) {
	id := n.ID
	if id == 0 {
		id = r.s.nextNoteID
	}
	if id >= r.s.nextNoteID {
		r.s.nextNoteID = id + 1
	}
	cpy := *n
	cpy.ID = id
	r.s.notes[id] = &cpy
	return id, nil
}

func (r memNotes) Update(_ context.Context, n *model.Note) error {
	if _, ok := r.s.notes[n.ID]; !ok {
		return errs.ErrNotFound
	}
	cpy := *n
	r.s.notes[n.ID] = &cpy
	return nil
}

func (r memNotes) Delete(_ context.Context, ids ...int64) error {
	for _, id := range ids {
		delete(r.s.notes, id)
		delete(r.s.refs, id)
	}
	return nil
}

func (r memNotes) Get(_ context.Context, id int64) (*model.Note, error) {
	n, ok := r.s.notes[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *n
	return &cpy, nil
}

func (r memNotes) GetAll(context.Context) ([]model.Note, error) {
	ids := make([]int64, 0, len(r.s.notes))
	for id := range r.s.notes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.Note, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.notes[id])
	}
	return out, nil
}

func (r memNotes) GetByStatus(context.Context, model.NoteStatus) ([]model.Note, error) {
	return nil, nil
}
func (r memNotes) GetByLabel(context.Context, int64, model.NoteStatus) ([]model.Note, error) {
	return nil, nil
}
func (r memNotes) Search(context.Context, string) ([]model.Note, error) { return nil, nil }

func (r memNotes) GetWithReminder(context.Context) ([]model.Note, error) {
	var out []model.Note
	for _, n := range r.s.notes {
		if n.Reminder != nil {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r memNotes) DeleteOlderThan(context.Context, model.NoteStatus, time.Time) (int64, error) {
	return 0, nil
}

func (r memNotes) GetLabelIDs(_ context.Context, noteID int64) ([]int64, error) {
	return append([]int64(nil), r.s.refs[noteID]...), nil
}

func (r memNotes) SetLabelIDs(_ context.Context, noteID int64, labelIDs []int64) error {
	r.s.refs[noteID] = append([]int64(nil), labelIDs...)
	return nil
}

func (r memLabels) Insert(_ context.Context, l *model.Label) (int64, error) {
	for _, existing := range r.s.labels {
		if existing.Name == l.Name {
			return 0, errs.ErrAlreadyExists
		}
	}
	id := l.ID
	if id == 0 {
		id = r.s.nextLabel
	}
	if id >= r.s.nextLabel {
		r.s.nextLabel = id + 1
	}
	cpy := *l
	cpy.ID = id
	r.s.labels[id] = &cpy
	return id, nil
}

func (r memLabels) Update(_ context.Context, l *model.Label) error {
	if _, ok := r.s.labels[l.ID]; !ok {
		return errs.ErrNotFound
	}
	cpy := *l
	r.s.labels[l.ID] = &cpy
	return nil
}

func (r memLabels) Delete(_ context.Context, ids ...int64) error {
	for _, id := range ids {
		delete(r.s.labels, id)
	}
	return nil
}

func (r memLabels) Get(_ context.Context, id int64) (*model.Label, error) {
	l, ok := r.s.labels[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *l
	return &cpy, nil
}

func (r memLabels) GetByName(_ context.Context, name string) (*model.Label, error) {
	for _, l := range r.s.labels {
		if l.Name == name {
			cpy := *l
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memLabels) GetAll(context.Context) ([]model.Label, error) {
	out := make([]model.Label, 0, len(r.s.labels))
	for _, l := range r.s.labels {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// nopScheduler counts recomputes; tests only care that one happened.
type nopScheduler struct{ recomputes int }

func (s *nopScheduler) Set(context.Context, int64, *model.Reminder) error { return nil }
func (s *nopScheduler) Cancel(context.Context, int64) error               { return nil }
func (s *nopScheduler) RecomputeAll(context.Context) error {
	s.recomputes++
	return nil
}
