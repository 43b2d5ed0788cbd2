package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
)

// NoteRepo implements NoteRepository on the embedded store.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

const noteCols = `id, type, title, content, metadata, added, modified, status, pinned,
reminder_start, reminder_recurrence, reminder_next, reminder_count, reminder_done`

// Insert stores a note. A non-zero id is preserved (import path); otherwise
// the rowid allocator assigns one.
func (r *NoteRepo) Insert(ctx context.Context, note *model.Note) (int64, error) {
	args := insertArgs(note)
	if note.ID != 0 {
		const q = `
INSERT INTO notes (id, type, title, content, metadata, added, modified, status, pinned,
reminder_start, reminder_recurrence, reminder_next, reminder_count, reminder_done)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
		if _, err := r.db.SQL.ExecContext(ctx, q, append([]any{note.ID}, args...)...); err != nil {
			return 0, err
		}
		return note.ID, nil
	}
	const q = `
INSERT INTO notes (type, title, content, metadata, added, modified, status, pinned,
reminder_start, reminder_recurrence, reminder_next, reminder_count, reminder_done)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.SQL.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update overwrites a note by id.
func (r *NoteRepo) Update(ctx context.Context, note *model.Note) error {
	const q = `
UPDATE notes SET type=?, title=?, content=?, metadata=?, added=?, modified=?,
status=?, pinned=?, reminder_start=?, reminder_recurrence=?, reminder_next=?,
reminder_count=?, reminder_done=?
WHERE id=?`
	res, err := r.db.SQL.ExecContext(ctx, q, append(insertArgs(note), note.ID)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes notes and their label refs.
func (r *NoteRepo) Delete(ctx context.Context, ids ...int64) (err error) {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `DELETE FROM label_refs WHERE note_id=?`, id); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM notes WHERE id=?`, id); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a single note by id.
func (r *NoteRepo) Get(ctx context.Context, id int64) (*model.Note, error) {
	row := r.db.SQL.QueryRowContext(ctx, `SELECT `+noteCols+` FROM notes WHERE id=?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	const q = `SELECT ` + noteCols + ` FROM notes WHERE status=? ORDER BY pinned DESC, modified DESC`
	return r.queryNotes(ctx, q, int(status))
}

// GetByLabel returns notes in a state carrying the label.
func (r *NoteRepo) GetByLabel(ctx context.Context, labelID int64, status model.NoteStatus) ([]model.Note, error) {
	const q = `
SELECT ` + noteCols + ` FROM notes
WHERE status=? AND id IN (SELECT note_id FROM label_refs WHERE label_id=?)
ORDER BY pinned DESC, modified DESC`
	return r.queryNotes(ctx, q, int(status), labelID)
}

// Search returns non-trashed notes whose title or content contains the
// query. LIKE is case-insensitive for ASCII in sqlite.
func (r *NoteRepo) Search(ctx context.Context, query string) ([]model.Note, error) {
	const q = `
SELECT ` + noteCols + ` FROM notes
WHERE status<>? AND (title LIKE ? OR content LIKE ?)
ORDER BY status ASC, modified DESC`
	pat := "%" + query + "%"
	return r.queryNotes(ctx, q, int(model.StatusDeleted), pat, pat)
}

// GetWithReminder returns all notes that currently have a reminder.
func (r *NoteRepo) GetWithReminder(ctx context.Context) ([]model.Note, error) {
	return r.queryNotes(ctx, `SELECT `+noteCols+` FROM notes WHERE reminder_start IS NOT NULL ORDER BY id`)
}

// DeleteOlderThan removes notes in a state last modified before the cutoff.
func (r *NoteRepo) DeleteOlderThan(ctx context.Context, status model.NoteStatus, before time.Time) (int64, error) {
	const refs = `
DELETE FROM label_refs WHERE note_id IN (SELECT id FROM notes WHERE status=? AND modified<?)`
	cutoff := encodeTime(before)
	if _, err := r.db.SQL.ExecContext(ctx, refs, int(status), cutoff); err != nil {
		return 0, err
	}
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM notes WHERE status=? AND modified<?`, int(status), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetLabelIDs returns the label ids attached to a note.
func (r *NoteRepo) GetLabelIDs(ctx context.Context, noteID int64) ([]int64, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `SELECT label_id FROM label_refs WHERE note_id=? ORDER BY label_id`, noteID)
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
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM label_refs WHERE note_id=?`, noteID); err != nil {
		return err
	}
	for _, lid := range labelIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO label_refs (note_id, label_id) VALUES (?,?)`, noteID, lid); err != nil {
			return err
		}
	}
	return nil
}

func (r *NoteRepo) queryNotes(ctx context.Context, q string, args ...any) ([]model.Note, error) {
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
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
	var remStart, remNext, remRec any
	var remCount, remDone any
	if rem := note.Reminder; rem != nil {
		remStart, remNext = encodeTime(rem.Start), encodeTime(rem.Next)
		remRec, remCount, remDone = rem.Recurrence, rem.Count, rem.Done
	}
	return []any{
		int(note.Type), note.Title, note.Content, note.Metadata.Encode(),
		encodeTime(note.Added), encodeTime(note.Modified), int(note.Status), int(note.Pinned),
		remStart, remRec, remNext, remCount, remDone,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*model.Note, error) {
	var (
		n                   model.Note
		typ, status, pinned int
		meta                string
		added, modified     string
		remStart, remNext   sql.NullString
		remRec              sql.NullString
		remCount            sql.NullInt64
		remDone             sql.NullBool
	)
	if err := row.Scan(&n.ID, &typ, &n.Title, &n.Content, &meta, &added, &modified,
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
	if n.Added, err = decodeTime(added); err != nil {
		return nil, fmt.Errorf("note %d added: %w", n.ID, err)
	}
	if n.Modified, err = decodeTime(modified); err != nil {
		return nil, fmt.Errorf("note %d modified: %w", n.ID, err)
	}
	if remStart.Valid {
		rem := &model.Reminder{}
		if rem.Start, err = decodeTime(remStart.String); err != nil {
			return nil, fmt.Errorf("note %d reminder: %w", n.ID, err)
		}
		if remNext.Valid {
			if rem.Next, err = decodeTime(remNext.String); err != nil {
				return nil, fmt.Errorf("note %d reminder: %w", n.ID, err)
			}
		}
		rem.Recurrence = remRec.String
		rem.Count = int(remCount.Int64)
		rem.Done = remDone.Bool
		n.Reminder = rem
	}
	return &n, nil
}
