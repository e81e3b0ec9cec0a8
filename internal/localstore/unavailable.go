package localstore

import "context"

// Unavailable stands in for a collection when the store could not be opened.
// Every operation fails with ErrStorageUnavailable, except lookups which
// report the record as absent.
type Unavailable[T Record] struct {
	Cause error
}

func (u Unavailable[T]) err() error {
	if u.Cause == nil {
		return ErrStorageUnavailable
	}
	return u.Cause
}

func (u Unavailable[T]) ReplaceAll(context.Context, []T) error        { return u.err() }
func (u Unavailable[T]) Upsert(context.Context, ...T) error           { return u.err() }
func (u Unavailable[T]) GetAll(context.Context) ([]T, error)          { return nil, u.err() }
func (u Unavailable[T]) Delete(context.Context, string) error         { return u.err() }
func (u Unavailable[T]) Clear(context.Context) error                  { return u.err() }
func (u Unavailable[T]) Exists(context.Context, string) (bool, error) { return false, u.err() }

func (u Unavailable[T]) GetOne(context.Context, string) (rec T, found bool, err error) {
	return rec, false, u.err()
}
