// Package app runs document sessions. Each session is one open tab of the
// client: it owns its own coordinators and views over the shared store and
// talks to the background worker through messages.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/cyclescene/cyclescene/internal/broker"
	"github.com/cyclescene/cyclescene/internal/config"
	"github.com/cyclescene/cyclescene/internal/coordinator"
	"github.com/cyclescene/cyclescene/internal/gateway"
	"github.com/cyclescene/cyclescene/internal/localstore"
	"github.com/cyclescene/cyclescene/internal/ride"
	"github.com/cyclescene/cyclescene/internal/views"
	"github.com/cyclescene/cyclescene/internal/worker"
)

var (
	ErrWorkerUnavailable = errors.New("background worker unavailable")
	ErrSessionNotFound   = errors.New("session not found")
	ErrRideNotFound      = errors.New("ride not found")
)

// Worker is the part of the background worker a session talks to.
type Worker interface {
	Post(msg worker.Message) error
	RegisterPeriodic(tag string, interval time.Duration) error
	RequestSync(tag string) error
}

// Collections are the persisted collections a session reads and writes.
type Collections struct {
	Rides  coordinator.Store[ride.Ride]
	Saved  coordinator.SavedStore
	Routes coordinator.Store[ride.Route]
}

// CollectionsOf returns the collections of an open store.
func CollectionsOf(s *localstore.Store) Collections {
	return Collections{Rides: s.Rides(), Saved: s.Saved(), Routes: s.Routes()}
}

// UnavailableCollections stands in for a store that could not be opened.
func UnavailableCollections(cause error) Collections {
	return Collections{
		Rides:  localstore.Unavailable[ride.Ride]{Cause: cause},
		Saved:  localstore.Unavailable[ride.Ride]{Cause: cause},
		Routes: localstore.Unavailable[ride.Route]{Cause: cause},
	}
}

// Deps are shared by every session.
type Deps struct {
	Collections Collections
	Source      gateway.Fetcher
	// Worker may be nil when no background context is running.
	Worker Worker
	Broker *broker.Broker

	SyncInterval time.Duration
	MaxAttempts  int
	Backoff      func() backoff.BackOff
	Logger       *slog.Logger
	Now          func() time.Time
}

type Session struct {
	id      string
	city    config.City
	created time.Time
	deps    Deps
	logger  *slog.Logger

	rides  *coordinator.Coordinator[ride.Ride]
	routes *coordinator.Coordinator[ride.Route]
	saved  *coordinator.Bookmarks
	cache  *views.Cache

	sub  chan []byte
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSession wires a session for city. It does no I/O until Start.
func NewSession(id string, city config.City, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Broker == nil {
		deps.Broker = broker.New()
	}
	logger := deps.Logger.With("session", id, "city", city.Code)

	s := &Session{
		id:      id,
		city:    city,
		created: deps.Now(),
		deps:    deps,
		logger:  logger,
		done:    make(chan struct{}),
	}
	s.cache = views.NewCache(views.CacheOptions{
		Fallback: city.Start,
		Location: city.Location(),
		Now:      deps.Now,
	})

	cityCode := func() string { return city.Code }
	s.rides = coordinator.New(coordinator.Config[ride.Ride]{
		Name:        "rides",
		Store:       deps.Collections.Rides,
		Fetch:       coordinator.RideFetcher(deps.Source, cityCode),
		Logger:      logger,
		MaxAttempts: deps.MaxAttempts,
		Backoff:     deps.Backoff,
		OnChange:    s.cache.SetRides,
		Now:         deps.Now,
	})
	s.routes = coordinator.New(coordinator.Config[ride.Route]{
		Name:        "routes",
		Store:       deps.Collections.Routes,
		Fetch:       coordinator.RouteFetcher(deps.Source, cityCode),
		Logger:      logger,
		MaxAttempts: deps.MaxAttempts,
		Backoff:     deps.Backoff,
		OnChange:    s.cache.SetRoutes,
		Now:         deps.Now,
	})
	s.saved = coordinator.NewBookmarks(deps.Collections.Saved, logger, s.cache.SetSaved)
	return s
}

// Start performs the cold start of every collection, then hands the city
// to the worker, registers background sync and starts listening for the
// worker's notifications.
func (s *Session) Start(ctx context.Context) error {
	// Subscribe first so no notification sent during the cold start is lost.
	s.sub = s.deps.Broker.Subscribe(worker.TopicClients)
	s.wg.Add(1)
	go s.listen()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { s.saved.Init(gctx); return nil })
	g.Go(func() error { s.rides.Init(gctx); return nil })
	g.Go(func() error { s.routes.Init(gctx); return nil })
	_ = g.Wait()

	if s.deps.Worker == nil {
		s.logger.Warn("no background worker, background sync disabled")
		return nil
	}
	if err := s.deps.Worker.Post(worker.Message{Type: worker.SetCityCode, CityCode: s.city.Code}); err != nil {
		s.logger.Warn("sending city to worker failed", "error", err)
	}
	s.registerSync()
	return nil
}

func (s *Session) registerSync() {
	interval := s.deps.SyncInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	err := s.deps.Worker.RegisterPeriodic(worker.SyncTag, interval)
	switch {
	case err == nil:
		s.logger.Info("periodic sync registered", "tag", worker.SyncTag, "interval", interval)
	case errors.Is(err, worker.ErrPeriodicUnsupported):
		s.logger.Info("periodic sync unsupported, requesting one-shot sync", "tag", worker.SyncTag)
		if err := s.deps.Worker.RequestSync(worker.SyncTag); err != nil {
			s.logger.Warn("requesting sync failed", "error", err)
		}
	default:
		s.logger.Warn("registering periodic sync failed", "error", err)
	}
}

// listen re-reads the store whenever the worker reports a persisted update.
// Duplicate notifications re-read the same snapshot.
func (s *Session) listen() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.sub:
			msg, err := worker.DecodeMessage(data)
			if err != nil {
				s.logger.Warn("dropping worker message", "error", err)
				continue
			}
			if msg.Type != worker.RidesUpdateSuccessful {
				continue
			}
			ctx := context.Background()
			st := s.rides.Reload(ctx)
			s.routes.Reload(ctx)
			s.logger.Info("reloaded after background sync", "records", len(st.Data))
		}
	}
}

// Close stops listening for worker notifications.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.sub != nil {
			s.deps.Broker.Unsubscribe(worker.TopicClients, s.sub)
		}
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Session) ID() string           { return s.id }
func (s *Session) City() config.City    { return s.city }
func (s *Session) CreatedAt() time.Time { return s.created }

// Cache exposes the session's views for change subscriptions.
func (s *Session) Cache() *views.Cache { return s.cache }

// Views reads every projection of one consistent state.
func (s *Session) Views() views.Snapshot { return s.cache.Snapshot() }

func (s *Session) Rides() coordinator.State[ride.Ride]   { return s.rides.Snapshot() }
func (s *Session) Routes() coordinator.State[ride.Route] { return s.routes.Snapshot() }
func (s *Session) Saved() coordinator.State[ride.Ride]   { return s.saved.Snapshot() }

// Refresh fetches rides and routes. The rides state is returned; a routes
// failure only shows in Routes.
func (s *Session) Refresh(ctx context.Context) coordinator.State[ride.Ride] {
	var st coordinator.State[ride.Ride]
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		st = s.rides.Refresh(ctx)
	}()
	go func() {
		defer wg.Done()
		s.routes.Refresh(ctx)
	}()
	wg.Wait()
	return st
}

// ClearAndRefresh discards the cached rides and fetches them again. Saved
// rides are untouched.
func (s *Session) ClearAndRefresh(ctx context.Context) coordinator.State[ride.Ride] {
	return s.rides.ClearAndRefresh(ctx)
}

// TriggerForegroundSync asks the worker to sync now. The result arrives
// later as a notification.
func (s *Session) TriggerForegroundSync() error {
	if s.deps.Worker == nil {
		return ErrWorkerUnavailable
	}
	if err := s.deps.Worker.Post(worker.Message{Type: worker.ForceForegroundSync}); err != nil {
		return fmt.Errorf("%w: %w", ErrWorkerUnavailable, err)
	}
	return nil
}

// Save bookmarks the ride with id, which must be a known ride.
func (s *Session) Save(ctx context.Context, id string) (coordinator.State[ride.Ride], error) {
	r, ok := views.FindRide(s.rides.Snapshot().Data, id)
	if !ok {
		return coordinator.State[ride.Ride]{}, fmt.Errorf("%w: %s", ErrRideNotFound, id)
	}
	return s.saved.Save(ctx, r), nil
}

func (s *Session) Unsave(ctx context.Context, id string) coordinator.State[ride.Ride] {
	return s.saved.Remove(ctx, id)
}

func (s *Session) ClearSaved(ctx context.Context) coordinator.State[ride.Ride] {
	return s.saved.ClearAll(ctx)
}

func (s *Session) IsSaved(id string) bool { return s.saved.IsSaved(id) }
