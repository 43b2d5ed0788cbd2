package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
)

// LabelRepo implements LabelRepository on the embedded store.
type LabelRepo struct{ db *DB }

// NewLabelRepo constructs a label repository.
func NewLabelRepo(db *DB) *LabelRepo { return &LabelRepo{db: db} }

// Insert stores a label. A non-zero id is preserved (import path).
func (r *LabelRepo) Insert(ctx context.Context, label *model.Label) (int64, error) {
	if label.ID != 0 {
		const q = `INSERT INTO labels (id, name, hidden) VALUES (?,?,?)`
		if _, err := r.db.SQL.ExecContext(ctx, q, label.ID, label.Name, label.Hidden); err != nil {
			if isUniqueViolation(err) {
				return 0, errs.ErrAlreadyExists
			}
			return 0, err
		}
		return label.ID, nil
	}
	res, err := r.db.SQL.ExecContext(ctx, `INSERT INTO labels (name, hidden) VALUES (?,?)`, label.Name, label.Hidden)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errs.ErrAlreadyExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

// Update overwrites a label by id.
func (r *LabelRepo) Update(ctx context.Context, label *model.Label) error {
	res, err := r.db.SQL.ExecContext(ctx, `UPDATE labels SET name=?, hidden=? WHERE id=?`,
		label.Name, label.Hidden, label.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
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

// Delete removes labels and their note refs.
func (r *LabelRepo) Delete(ctx context.Context, ids ...int64) (err error) {
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
		if _, err = tx.ExecContext(ctx, `DELETE FROM label_refs WHERE label_id=?`, id); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM labels WHERE id=?`, id); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a single label by id.
func (r *LabelRepo) Get(ctx context.Context, id int64) (*model.Label, error) {
	row := r.db.SQL.QueryRowContext(ctx, `SELECT id, name, hidden FROM labels WHERE id=?`, id)
	return scanLabel(row)
}

// GetByName returns the label with the exact name.
func (r *LabelRepo) GetByName(ctx context.Context, name string) (*model.Label, error) {
	row := r.db.SQL.QueryRowContext(ctx, `SELECT id, name, hidden FROM labels WHERE name=?`, name)
	return scanLabel(row)
}

// GetAll returns every label ordered by name.
func (r *LabelRepo) GetAll(ctx context.Context) ([]model.Label, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `SELECT id, name, hidden FROM labels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Label
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Hidden); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLabel(row *sql.Row) (*model.Label, error) {
	var l model.Label
	if err := row.Scan(&l.ID, &l.Name, &l.Hidden); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}
