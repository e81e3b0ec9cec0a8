// Package coordinator decides when cached collections are trusted and when
// they are refreshed from the remote API, and publishes the resulting state.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/cyclescene/cyclescene/internal/gateway"
	"github.com/cyclescene/cyclescene/internal/metrics"
)

// Store is the persisted side of a collection.
type Store[T any] interface {
	ReplaceAll(ctx context.Context, records []T) error
	GetAll(ctx context.Context) ([]T, error)
	Clear(ctx context.Context) error
}

// FetchFunc loads the authoritative collection from the network.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

type Config[T any] struct {
	// Name labels logs and metrics, e.g. "rides".
	Name  string
	Store Store[T]
	Fetch FetchFunc[T]

	Logger *slog.Logger

	// MaxAttempts bounds fetch attempts for temporary network errors.
	// Zero means 3.
	MaxAttempts int
	// Backoff builds the retry schedule; defaults to exponential backoff.
	Backoff func() backoff.BackOff

	// OnChange receives every new state. It is called with the coordinator
	// locked and must not call back into it.
	OnChange func(State[T])

	Now func() time.Time
}

// Coordinator owns the state of one collection. Network operations are
// coalesced: a request arriving while one is running observes its result.
type Coordinator[T any] struct {
	cfg    Config[T]
	logger *slog.Logger

	flight singleflight.Group
	// serializes refresh against clear-and-refresh
	writeMu sync.Mutex

	mu    sync.Mutex
	state State[T]
}

const (
	keyRefresh = "refresh"
	keyClear   = "clear"
)

func New[T any](cfg Config[T]) *Coordinator[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator[T]{
		cfg:    cfg,
		logger: cfg.Logger.With("collection", cfg.Name),
	}
}

func (c *Coordinator[T]) Name() string { return c.cfg.Name }

// Snapshot returns the current state.
func (c *Coordinator[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Init performs the cold start. Cached records win: when the store holds
// any, the collection becomes ready without touching the network. An empty
// or unreadable store triggers a full fetch.
func (c *Coordinator[T]) Init(ctx context.Context) State[T] {
	start := time.Now()
	c.update(func(s *State[T]) { s.Status = StatusLoading })

	cached, err := c.cfg.Store.GetAll(ctx)
	if err != nil {
		c.logger.Warn("reading cache failed, continuing network-only", "error", err)
	}
	if err == nil && len(cached) > 0 {
		st := c.update(func(s *State[T]) {
			s.Status = StatusReady
			s.Data = cached
			s.Err = nil
			s.Degraded = false
		})
		c.observe("init", metrics.ResultOK, start)
		c.logger.Info("loaded from cache", "records", len(cached))
		return st
	}
	if err != nil {
		c.update(func(s *State[T]) { s.Degraded = true })
	}

	st, _ := c.coalesce(ctx, keyRefresh, c.refresh)
	c.observe("init", resultOf(st), start)
	return st
}

// Refresh fetches the collection and replaces the cache. On failure the
// previous data stays visible with the error attached.
func (c *Coordinator[T]) Refresh(ctx context.Context) State[T] {
	start := time.Now()
	st, _ := c.coalesce(ctx, keyRefresh, c.refresh)
	c.observe("refresh", resultOf(st), start)
	return st
}

// ClearAndRefresh empties the cache, then fetches. When the fetch fails the
// collection is left empty in the error state.
func (c *Coordinator[T]) ClearAndRefresh(ctx context.Context) State[T] {
	start := time.Now()
	st, _ := c.coalesce(ctx, keyClear, c.clearAndRefresh)
	c.observe("clear", resultOf(st), start)
	return st
}

// Reload re-reads the store, typically after another context persisted a
// fresh snapshot. Repeated reloads of the same snapshot are harmless.
func (c *Coordinator[T]) Reload(ctx context.Context) State[T] {
	start := time.Now()
	records, err := c.cfg.Store.GetAll(ctx)
	if err != nil {
		c.logger.Warn("reloading cache failed", "error", err)
		st := c.update(func(s *State[T]) { s.Degraded = true })
		c.observe("reload", metrics.ResultDegraded, start)
		return st
	}
	st := c.update(func(s *State[T]) {
		if s.Status != StatusLoading {
			s.Status = StatusReady
			s.Err = nil
		}
		s.Data = records
		s.Degraded = false
	})
	c.observe("reload", metrics.ResultOK, start)
	return st
}

func (c *Coordinator[T]) coalesce(ctx context.Context, key string, fn func(context.Context) State[T]) (State[T], bool) {
	// The shared call outlives any single caller's cancellation.
	detached := context.WithoutCancel(ctx)
	v, _, shared := c.flight.Do(key, func() (any, error) {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return fn(detached), nil
	})
	if shared {
		metrics.SyncCoalesced.WithLabelValues(c.cfg.Name).Inc()
	}
	return v.(State[T]).clone(), shared
}

func (c *Coordinator[T]) refresh(ctx context.Context) State[T] {
	c.update(func(s *State[T]) { s.Status = StatusLoading })

	records, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("refresh failed, keeping last snapshot", "error", err)
		return c.update(func(s *State[T]) {
			s.Status = StatusError
			s.Err = err
		})
	}
	return c.persist(ctx, records)
}

func (c *Coordinator[T]) clearAndRefresh(ctx context.Context) State[T] {
	clearErr := c.cfg.Store.Clear(ctx)
	if clearErr != nil {
		c.logger.Warn("clearing cache failed", "error", clearErr)
	}
	c.update(func(s *State[T]) {
		s.Status = StatusLoading
		s.Data = nil
		s.Degraded = clearErr != nil
	})

	records, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("clear and refresh failed, collection left empty", "error", err)
		return c.update(func(s *State[T]) {
			s.Status = StatusError
			s.Err = err
			s.Data = nil
		})
	}
	return c.persist(ctx, records)
}

func (c *Coordinator[T]) persist(ctx context.Context, records []T) State[T] {
	storeErr := c.cfg.Store.ReplaceAll(ctx, records)
	if storeErr != nil {
		c.logger.Warn("persisting snapshot failed, serving network data", "error", storeErr)
	}
	c.logger.Info("refreshed", "records", len(records))
	return c.update(func(s *State[T]) {
		s.Status = StatusReady
		s.Data = records
		s.Err = nil
		s.Degraded = storeErr != nil
	})
}

func (c *Coordinator[T]) fetch(ctx context.Context) ([]T, error) {
	var records []T
	op := func() error {
		var err error
		records, err = c.cfg.Fetch(ctx)
		if err != nil && !gateway.IsTemporary(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.cfg.Backoff(), uint64(c.cfg.MaxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		metrics.FetchRetries.WithLabelValues(c.cfg.Name).Inc()
		c.logger.Warn("fetch failed, retrying", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Coordinator[T]) update(fn func(*State[T])) State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.state.UpdatedAt = c.cfg.Now()
	st := c.state.clone()
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(st.clone())
	}
	return st
}

func (c *Coordinator[T]) observe(op, result string, start time.Time) {
	metrics.SyncOperations.WithLabelValues(c.cfg.Name, op, result).Inc()
	metrics.SyncDuration.WithLabelValues(c.cfg.Name, op).Observe(time.Since(start).Seconds())
}

func resultOf[T any](s State[T]) string {
	switch {
	case s.Err != nil:
		return metrics.ResultError
	case s.Degraded:
		return metrics.ResultDegraded
	}
	return metrics.ResultOK
}
