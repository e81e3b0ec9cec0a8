package coordinator

import (
	"fmt"
	"time"
)

// Status is the lifecycle position of one collection.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is a snapshot of one collection: what is displayed, whether a fetch
// is running, and the last failure. On error Data still holds the last
// known-good records.
type State[T any] struct {
	Status    Status    `json:"status"`
	Data      []T       `json:"data"`
	Err       error     `json:"-"`
	Degraded  bool      `json:"degraded"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrMessage returns the error text or an empty string.
func (s State[T]) ErrMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

func (s State[T]) clone() State[T] {
	if s.Data != nil {
		s.Data = append([]T(nil), s.Data...)
	}
	return s
}
