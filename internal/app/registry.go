package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cyclescene/cyclescene/internal/broker"
	"github.com/cyclescene/cyclescene/internal/config"
	"github.com/cyclescene/cyclescene/internal/metrics"
)

// Registry holds the live sessions by id.
type Registry struct {
	deps        Deps
	defaultCity string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, defaultCity string) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Broker == nil {
		deps.Broker = broker.New()
	}
	return &Registry{
		deps:        deps,
		defaultCity: defaultCity,
		sessions:    make(map[string]*Session),
	}
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Create starts a new session for cityCode, or the default city when empty.
// An unknown code falls back to the default city.
func (r *Registry) Create(ctx context.Context, cityCode string) (*Session, error) {
	if cityCode == "" {
		cityCode = r.defaultCity
	}
	city, ok := config.LookupCity(cityCode)
	if !ok {
		r.deps.Logger.Error("unknown city code, using default", "city", cityCode, "default", city.Code)
	}

	s := NewSession(uuid.NewString(), city, r.deps)
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting session: %w", err)
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.Sessions.Set(float64(n))
	return s, nil
}

// Remove closes and forgets the session. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	metrics.Sessions.Set(float64(n))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		s.Close()
		delete(r.sessions, id)
	}
	metrics.Sessions.Set(0)
	return nil
}
