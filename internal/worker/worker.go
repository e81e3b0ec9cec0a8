// Package worker is the background execution context. It runs scheduled and
// requested syncs against the shared store, tells live sessions when a fresh
// snapshot is persisted, and intercepts outgoing HTTP through Transport.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cyclescene/cyclescene/internal/broker"
	"github.com/cyclescene/cyclescene/internal/config"
	"github.com/cyclescene/cyclescene/internal/coordinator"
	"github.com/cyclescene/cyclescene/internal/gateway"
	"github.com/cyclescene/cyclescene/internal/metrics"
	"github.com/cyclescene/cyclescene/internal/prefs"
	"github.com/cyclescene/cyclescene/internal/ride"
)

var (
	// ErrPeriodicUnsupported is returned by RegisterPeriodic when recurring
	// scheduling is disabled; callers fall back to RequestSync.
	ErrPeriodicUnsupported = errors.New("periodic sync unsupported")
	ErrInboxFull           = errors.New("worker inbox full")
	ErrNotRunning          = errors.New("worker not running")
)

type Config struct {
	Rides  coordinator.Store[ride.Ride]
	Routes coordinator.Store[ride.Route]
	Source gateway.Fetcher
	Broker *broker.Broker

	PrefsPath   string
	DefaultCity string
	// City, when set, overrides the persisted city until a session reports
	// its own.
	City string
	// Periodic reports whether recurring scheduling is available. When it
	// is, SyncTag is armed every SyncInterval from the start, without
	// waiting for a session to register it.
	Periodic     bool
	SyncInterval time.Duration

	MaxAttempts int
	Backoff     func() backoff.BackOff
	Logger      *slog.Logger
	Now         func() time.Time
}

// Worker owns its own coordinators over the shared store. Messages, sync
// requests and periodic ticks are handled one at a time by Serve.
type Worker struct {
	cfg    Config
	logger *slog.Logger

	rides  *coordinator.Coordinator[ride.Ride]
	routes *coordinator.Coordinator[ride.Route]

	inbox chan Message
	syncs chan string
	rearm chan struct{}

	running atomic.Bool

	mu       sync.Mutex
	city     string
	tag      string
	interval time.Duration
	lastSync time.Time
}

func New(cfg Config) *Worker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Broker == nil {
		cfg.Broker = broker.New()
	}
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = config.DefaultCityCode
	}

	w := &Worker{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "worker"),
		inbox:  make(chan Message, 32),
		syncs:  make(chan string, 1),
		rearm:  make(chan struct{}, 1),
		city:   cfg.DefaultCity,
	}

	// Before any session reports its city, use the last one we saw.
	if cfg.PrefsPath != "" {
		if p, err := prefs.Load(cfg.PrefsPath); err != nil {
			w.logger.Warn("loading prefs failed", "error", err)
		} else {
			if p.CityCode != "" {
				w.city = p.CityCode
			}
			w.lastSync = p.LastSync
		}
	}
	if cfg.City != "" {
		city, ok := config.LookupCity(cfg.City)
		if !ok {
			w.logger.Error("unknown city code, using default", "city", cfg.City, "default", city.Code)
		}
		w.city = city.Code
	}
	if cfg.Periodic && cfg.SyncInterval > 0 {
		w.tag, w.interval = SyncTag, cfg.SyncInterval
	}

	w.rides = coordinator.New(coordinator.Config[ride.Ride]{
		Name:        "rides",
		Store:       cfg.Rides,
		Fetch:       coordinator.RideFetcher(cfg.Source, w.City),
		Logger:      w.logger,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		Now:         cfg.Now,
	})
	w.routes = coordinator.New(coordinator.Config[ride.Route]{
		Name:        "routes",
		Store:       cfg.Routes,
		Fetch:       coordinator.RouteFetcher(cfg.Source, w.City),
		Logger:      w.logger,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		Now:         cfg.Now,
	})
	return w
}

// Serve implements suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	w.logger.Info("worker installed", "city", w.City())
	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("worker activated")
	w.logger.Info("worker claimed clients", "clients", w.cfg.Broker.Subscribers(TopicClients))

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()
	arm := func() {
		tag, interval := w.Periodic()
		if interval <= 0 {
			return
		}
		if ticker == nil {
			ticker = time.NewTicker(interval)
			tick = ticker.C
		} else {
			ticker.Reset(interval)
		}
		w.logger.Info("periodic sync armed", "tag", tag, "interval", interval)
	}
	arm()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		case msg := <-w.inbox:
			w.handle(ctx, msg)
		case tag := <-w.syncs:
			w.logger.Info("background sync event", "tag", tag)
			w.runTag(ctx, tag)
		case <-tick:
			tag, _ := w.Periodic()
			w.logger.Info("periodic sync event", "tag", tag)
			w.runTag(ctx, tag)
		case <-w.rearm:
			arm()
		}
	}
}

func (w *Worker) String() string { return "worker" }

// Post delivers msg to the worker. It never blocks.
func (w *Worker) Post(msg Message) error {
	select {
	case w.inbox <- msg:
		return nil
	default:
		return ErrInboxFull
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	metrics.WorkerMessages.WithLabelValues(string(msg.Type)).Inc()
	switch msg.Type {
	case SetCityCode:
		w.setCity(msg.CityCode)
	case ForceForegroundSync:
		if err := w.SyncNow(ctx); err != nil {
			w.logger.Warn("foreground sync failed", "error", err)
		}
	default:
		w.logger.Warn("ignoring message", "type", msg.Type)
	}
}

// RegisterPeriodic schedules tag to run every interval. Registering the same
// tag and interval again is a no-op.
func (w *Worker) RegisterPeriodic(tag string, interval time.Duration) error {
	if !w.cfg.Periodic {
		return ErrPeriodicUnsupported
	}
	if interval <= 0 {
		return fmt.Errorf("periodic sync interval must be positive, got %s", interval)
	}

	w.mu.Lock()
	same := w.tag == tag && w.interval == interval
	w.tag, w.interval = tag, interval
	w.mu.Unlock()

	if !same {
		select {
		case w.rearm <- struct{}{}:
		default:
		}
	}
	return nil
}

// RequestSync asks for one run of tag. Requests made while one is already
// pending collapse into it.
func (w *Worker) RequestSync(tag string) error {
	select {
	case w.syncs <- tag:
	default:
	}
	return nil
}

// Periodic returns the registered recurring tag and its interval.
func (w *Worker) Periodic() (string, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tag, w.interval
}

func (w *Worker) runTag(ctx context.Context, tag string) {
	if tag != SyncTag {
		w.logger.Warn("ignoring unknown sync tag", "tag", tag)
		return
	}
	if err := w.SyncNow(ctx); err != nil {
		w.logger.Warn("sync failed", "tag", tag, "error", err)
	}
}

// SyncNow refreshes rides and routes into the shared store and, once the
// rides snapshot is persisted, notifies every live session. Route failures
// are logged but do not fail the sync.
func (w *Worker) SyncNow(ctx context.Context) error {
	logger := w.logger.With("city", w.City())

	st := w.rides.Refresh(ctx)
	if st.Err != nil {
		logger.Error("background sync failed", "error", st.Err)
		return fmt.Errorf("syncing rides: %w", st.Err)
	}
	if rt := w.routes.Refresh(ctx); rt.Err != nil {
		logger.Warn("syncing routes failed", "error", rt.Err)
	}
	if st.Degraded {
		// Sessions re-read the store; nothing new is there to read.
		logger.Warn("rides not persisted, skipping notification")
		return nil
	}

	w.recordSync()
	n, err := w.cfg.Broker.Publish(TopicClients, Message{Type: RidesUpdateSuccessful, Data: st.Data})
	if err != nil {
		return fmt.Errorf("notifying clients: %w", err)
	}
	metrics.WorkerNotifications.Inc()
	logger.Info("rides updated, clients notified", "records", len(st.Data), "clients", n)
	return nil
}

// City returns the city code used for city-scoped requests.
func (w *Worker) City() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.city
}

func (w *Worker) LastSync() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync
}

func (w *Worker) setCity(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		w.logger.Warn("ignoring empty city code")
		return
	}
	city, ok := config.LookupCity(code)
	if !ok {
		w.logger.Error("unknown city code, using default", "city", code, "default", city.Code)
	}

	w.mu.Lock()
	changed := w.city != city.Code
	w.city = city.Code
	w.mu.Unlock()

	if changed {
		w.logger.Info("city code updated", "city", city.Code)
		w.savePrefs()
	}
}

func (w *Worker) recordSync() {
	w.mu.Lock()
	w.lastSync = w.cfg.Now()
	w.mu.Unlock()
	w.savePrefs()
}

func (w *Worker) savePrefs() {
	if w.cfg.PrefsPath == "" {
		return
	}
	w.mu.Lock()
	p := prefs.Prefs{CityCode: w.city, LastSync: w.lastSync}
	w.mu.Unlock()
	if err := prefs.Save(w.cfg.PrefsPath, p); err != nil {
		w.logger.Warn("saving prefs failed", "error", err)
	}
}

// Check implements health.Checker.
func (w *Worker) Check(context.Context) error {
	if !w.running.Load() {
		return ErrNotRunning
	}
	return nil
}
