// Package migrations holds the versioned schema of the local store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// ErrSchemaTooNew is returned when the database was written by a newer
// build than this one.
var ErrSchemaTooNew = errors.New("schema version is newer than this build")

func newProvider(db *sql.DB) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fs)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	return p, nil
}

// Latest returns the highest schema version embedded in this build.
func Latest() int64 {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return 0
	}
	var latest int64
	for _, e := range entries {
		v, err := goose.NumericComponent(e.Name())
		if err != nil {
			continue
		}
		latest = max(latest, v)
	}
	return latest
}

// Version returns the schema version recorded in db.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Run applies all pending migrations against db. A database already at a
// version newer than Latest is left untouched and ErrSchemaTooNew returned.
func Run(ctx context.Context, db *sql.DB) error {
	p, err := newProvider(db)
	if err != nil {
		return err
	}

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if latest := Latest(); current > latest {
		return fmt.Errorf("%w: database at %d, build at %d", ErrSchemaTooNew, current, latest)
	}

	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
