package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Record is a document that can be stored in a Table.
type Record interface {
	RecordID() string
	RecordDate() string
}

// Table is a collection of JSONB documents keyed by id.
type Table[T Record] struct {
	db    *sql.DB
	name  string
	order string
}

func newTable[T Record](db *sql.DB, name, order string) *Table[T] {
	return &Table[T]{db: db, name: name, order: order}
}

// Name returns the collection name.
func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) fail(op string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, t.name, ErrStorageUnavailable, err)
}

// ReplaceAll clears the collection and inserts records in one transaction.
// On failure the previous contents are left intact.
func (t *Table[T]) ReplaceAll(ctx context.Context, records []T) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return t.fail("replacing", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, t.name)); err != nil {
		return t.fail("replacing", err)
	}

	stmt, err := tx.PrepareContext(ctx, t.upsertSQL())
	if err != nil {
		return t.fail("replacing", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return t.fail("encoding", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.RecordID(), rec.RecordDate(), string(data)); err != nil {
			return t.fail("replacing", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return t.fail("committing", err)
	}
	return nil
}

// Upsert inserts or overwrites records by id without clearing.
func (t *Table[T]) Upsert(ctx context.Context, records ...T) error {
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return t.fail("encoding", err)
		}
		if _, err := t.db.ExecContext(ctx, t.upsertSQL(), rec.RecordID(), rec.RecordDate(), string(data)); err != nil {
			return t.fail("upserting", err)
		}
	}
	return nil
}

func (t *Table[T]) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, date, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET date = excluded.date, data = excluded.data`, t.name)
}

// GetAll returns every record in the collection's natural order.
func (t *Table[T]) GetAll(ctx context.Context) ([]T, error) {
	rows, err := t.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s ORDER BY %s`, t.name, t.order),
	)
	if err != nil {
		return nil, t.fail("listing", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, t.fail("listing", err)
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, t.fail("decoding", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.fail("listing", err)
	}
	return out, nil
}

// GetOne looks up a record by id. A missing record is reported through
// found, not as an error.
func (t *Table[T]) GetOne(ctx context.Context, id string) (rec T, found bool, err error) {
	var data string
	err = t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, t.name), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, t.fail("reading", err)
	}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return rec, false, t.fail("decoding", err)
	}
	return rec, true, nil
}

// Exists reports whether a record with id is stored.
func (t *Table[T]) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, t.name), id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, t.fail("reading", err)
	}
	return true, nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.name), id,
	); err != nil {
		return t.fail("deleting", err)
	}
	return nil
}

func (t *Table[T]) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, t.name)); err != nil {
		return t.fail("clearing", err)
	}
	return nil
}

func (t *Table[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, t.name),
	).Scan(&n); err != nil {
		return 0, t.fail("counting", err)
	}
	return n, nil
}
