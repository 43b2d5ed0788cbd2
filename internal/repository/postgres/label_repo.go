package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/notekeep/notekeep/internal/errs"
	"github.com/notekeep/notekeep/internal/model"
)

// LabelRepo implements LabelRepository using PostgreSQL.
type LabelRepo struct{ db *DB }

// NewLabelRepo constructs a label repository.
func NewLabelRepo(db *DB) *LabelRepo { return &LabelRepo{db: db} }

// Insert stores a label. A non-zero id is preserved (import path).
func (r *LabelRepo) Insert(ctx context.Context, label *model.Label) (int64, error) {
	if label.ID != 0 {
		const q = `INSERT INTO labels (id, name, hidden) VALUES ($1,$2,$3)`
		if _, err := r.db.Pool.Exec(ctx, q, label.ID, label.Name, label.Hidden); err != nil {
			if isUniqueViolation(err) {
				return 0, errs.ErrAlreadyExists
			}
			return 0, err
		}
		const bump = `SELECT setval('labels_id_seq', (SELECT MAX(id) FROM labels))`
		if _, err := r.db.Pool.Exec(ctx, bump); err != nil {
			return 0, err
		}
		return label.ID, nil
	}
	const q = `INSERT INTO labels (name, hidden) VALUES ($1,$2) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, label.Name, label.Hidden).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, errs.ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

// Update overwrites a label by id.
func (r *LabelRepo) Update(ctx context.Context, label *model.Label) error {
	const q = `UPDATE labels SET name=$2, hidden=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, label.ID, label.Name, label.Hidden)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes labels and their note refs.
func (r *LabelRepo) Delete(ctx context.Context, ids ...int64) (err error) {
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
	if _, err = tx.Exec(ctx, `DELETE FROM label_refs WHERE label_id = ANY($1)`, ids); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM labels WHERE id = ANY($1)`, ids); err != nil {
		return err
	}
	return nil
}

// Get returns a single label by id.
func (r *LabelRepo) Get(ctx context.Context, id int64) (*model.Label, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT id, name, hidden FROM labels WHERE id=$1`, id)
	return scanLabel(row)
}

// GetByName returns the label with the exact name.
func (r *LabelRepo) GetByName(ctx context.Context, name string) (*model.Label, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT id, name, hidden FROM labels WHERE name=$1`, name)
	return scanLabel(row)
}

// GetAll returns every label ordered by name.
func (r *LabelRepo) GetAll(ctx context.Context) ([]model.Label, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, name, hidden FROM labels ORDER BY name`)
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

func scanLabel(row pgx.Row) (*model.Label, error) {
	var l model.Label
	if err := row.Scan(&l.ID, &l.Name, &l.Hidden); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}
