// Package localstore persists the rides, saved and routes collections in a
// libSQL database shared by the background worker and every session.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cyclescene/cyclescene/internal/database"
	"github.com/cyclescene/cyclescene/internal/localstore/migrations"
	"github.com/cyclescene/cyclescene/internal/ride"
)

var (
	// ErrStorageUnavailable wraps every failure to open, read or write the
	// store. Callers degrade to network-only operation when they see it.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrSchemaTooNew = migrations.ErrSchemaTooNew
)

// Collection names.
const (
	Rides  = "rides"
	Saved  = "saved"
	Routes = "routes"
)

type Store struct {
	db     *sql.DB
	rides  *Table[ride.Ride]
	saved  *Table[ride.Ride]
	routes *Table[ride.Route]
}

// Open opens the database at path and upgrades its schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := database.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New upgrades the schema of an already open database and wraps it.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := migrations.Run(ctx, db); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return &Store{
		db:     db,
		rides:  newTable[ride.Ride](db, Rides, "rowid"),
		saved:  newTable[ride.Ride](db, Saved, "date, rowid"),
		routes: newTable[ride.Route](db, Routes, "rowid"),
	}, nil
}

// Rides is the cache of every fetched ride, in fetch order.
func (s *Store) Rides() *Table[ride.Ride] { return s.rides }

// Saved holds the user's bookmarks, read back in date order.
func (s *Store) Saved() *Table[ride.Ride] { return s.saved }

func (s *Store) Routes() *Table[ride.Route] { return s.routes }

// Version returns the persisted schema version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	return migrations.Version(ctx, s.db)
}

// Check implements health.Checker.
func (s *Store) Check(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
