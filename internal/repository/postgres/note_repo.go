package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
)

// NoteRepo implements NoteRepository using PostgreSQL.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

const noteCols = `id, type, title, content, metadata, added, modified, status, pinned,
reminder_start, reminder_recurrence, reminder_next, reminder_count, reminder_done`

// Insert stores a note. A non-zero id is preserved (import path); otherwise
// the sequence assigns one.
func (r *NoteRepo) Insert(ctx context.Context, note *model.Note) (int64, error) {
	args := insertArgs(note)
	if note.ID != 0 {
		const q = `
INSERT INTO notes (id, type, title, content, metadata, added, modified, status, pinned,
reminder_start, reminder_recurrence, reminder_next, reminder_count, reminder_done)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
		if _, err := r.db.Pool.Exec(ctx, q, append([]any{note.ID}, args...)...); err != nil {
			return 0, err
		}
		const bump = `SELECT setval('notes_id_seq', (SELECT MAX(id) FROM notes))`
		if _, err := r.db.Pool.Exec(ctx, bump); err != nil {
			return 0, err
		}
		return note.ID, nil
	}
	const q = `
INSERT INTO notes (type, title, content, metadata, added, modified, status, pinned,
reminder_start, reminder_recurrence, reminder_next, reminder_count, reminder_done)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Update overwrites a note by id.
func (r *NoteRepo) Update(ctx context.Context, note *model.Note) error {
	const q = `
UPDATE notes SET type=$2, title=$3, content=$4, metadata=$5, added=$6, modified=$7,
status=$8, pinned=$9, reminder_start=$10, reminder_recurrence=$11, reminder_next=$12,
reminder_count=$13, reminder_done=$14
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, append([]any{note.ID}, insertArgs(note)...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes notes and their label refs.
func (r *NoteRepo) Delete(ctx context.Context, ids ...int64) (err error) {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	if _, err = tx.Exec(ctx, `DELETE FROM label_refs WHERE note_id = ANY($1)`, ids); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM notes WHERE id = ANY($1)`, ids); err != nil {
		return err
	}
	return nil
}

// Get returns a single note by id.
func (r *NoteRepo) Get(ctx context.Context, id int64) (*model.Note, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+noteCols+` FROM notes WHERE id=$1`, id)
	n, err := scanNote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return n, err
}

// GetAll returns every note ordered by id.
func (r *NoteRepo) GetAll(ctx context.Context) ([]model.Note, error) {
	return r.queryNotes(ctx, `SELECT `+noteCols+` FROM notes ORDER BY id`)
}

// GetByStatus returns notes in a state, pinned first, newest modified next.
func (r *NoteRepo) GetByStatus(ctx context.Context, status model.NoteStatus) ([]model.Note, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE status=$1 ORDER BY pinned DESC, modified DESC`
	return r.queryNotes(ctx, q, int(status))
}

// GetByLabel returns notes in a state carrying the label.
func (r *NoteRepo) GetByLabel(ctx context.Context, labelID int64, status model.NoteStatus) ([]model.Note, error) {
	const q = `
SELECT ` + noteCols + ` FROM notes
WHERE status=$1 AND id IN (SELECT note_id FROM label_refs WHERE label_id=$2)
ORDER BY pinned DESC, modified DESC`
	return r.queryNotes(ctx, q, int(status), labelID)
}

// Search returns non-trashed notes whose title or content contains the query.
func (r *NoteRepo) Search(ctx context.Context, query string) ([]model.Note, error) {
	const q = `
SELECT ` + noteCols + ` FROM notes
WHERE status<>$1 AND (title ILIKE $2 OR content ILIKE $2)
ORDER BY status ASC, modified DESC`
	return r.queryNotes(ctx, q, int(model.StatusDeleted), "%"+query+"%")
}

// GetWithReminder returns all notes that currently have a reminder.
func (r *NoteRepo) GetWithReminder(ctx context.Context) ([]model.Note, error) {
	return r.queryNotes(ctx, `SELECT `+noteCols+` FROM notes WHERE reminder_start IS NOT NULL ORDER BY id`)
}

// DeleteOlderThan removes notes in a state last modified before the cutoff.
func (r *NoteRepo) DeleteOlderThan(ctx context.Context, status model.NoteStatus, before time.Time) (int64, error) {
	const refs = `
DELETE FROM label_refs WHERE note_id IN (SELECT id FROM notes WHERE status=$1 AND modified<$2)`
	if _, err := r.db.Pool.Exec(ctx, refs, int(status), before); err != nil {
		return 0, err
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM notes WHERE status=$1 AND modified<$2`, int(status), before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetLabelIDs returns the label ids attached to a note.
func (r *NoteRepo) GetLabelIDs(ctx context.Context, noteID int64) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT label_id FROM label_refs WHERE note_id=$1 ORDER BY label_id`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetLabelIDs replaces a note's label refs.
func (r *NoteRepo) SetLabelIDs(ctx context.Context, noteID int64, labelIDs []int64) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	if _, err = tx.Exec(ctx, `DELETE FROM label_refs WHERE note_id=$1`, noteID); err != nil {
		return err
	}
	for _, lid := range labelIDs {
		if _, err = tx.Exec(ctx, `INSERT INTO label_refs (note_id, label_id) VALUES ($1,$2)`, noteID, lid); err != nil {
			return err
		}
	}
	return nil
}

func (r *NoteRepo) queryNotes(ctx context.Context, q string, args ...any) ([]model.Note, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func insertArgs(note *model.Note) []any {
	var remStart, remNext *time.Time
	var remRec *string
	var remCount *int
	var remDone *bool
	if rem := note.Reminder; rem != nil {
		remStart, remNext = &rem.Start, &rem.Next
		remRec, remCount, remDone = &rem.Recurrence, &rem.Count, &rem.Done
	}
	return []any{
		int(note.Type), note.Title, note.Content, note.Metadata.Encode(),
		note.Added, note.Modified, int(note.Status), int(note.Pinned),
		remStart, remRec, remNext, remCount, remDone,
	}
}

func scanNote(row pgx.Row) (*model.Note, error) {
	var (
		n                   model.Note
		typ, status, pinned int
		meta                string
		remStart, remNext   *time.Time
		remRec              *string
		remCount            *int
		remDone             *bool
	)
	if err := row.Scan(&n.ID, &typ, &n.Title, &n.Content, &meta, &n.Added, &n.Modified,
		&status, &pinned, &remStart, &remRec, &remNext, &remCount, &remDone); err != nil {
		return nil, err
	}
	m, err := model.ParseMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("note %d: %w", n.ID, err)
	}
	n.Type = model.NoteType(typ)
	n.Status = model.NoteStatus(status)
	n.Pinned = model.PinnedStatus(pinned)
	n.Metadata = m
	if remStart != nil {
		rem := &model.Reminder{Start: *remStart}
		if remRec != nil {
			rem.Recurrence = *remRec
		}
		if remNext != nil {
			rem.Next = *remNext
		}
		if remCount != nil {
			rem.Count = *remCount
		}
		if remDone != nil {
			rem.Done = *remDone
		}
		n.Reminder = rem
	}
	return &n, nil
}
