package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/cyclescene/cyclescene/internal/app"
	"github.com/cyclescene/cyclescene/internal/broker"
	"github.com/cyclescene/cyclescene/internal/config"
	"github.com/cyclescene/cyclescene/internal/gateway"
	"github.com/cyclescene/cyclescene/internal/handler/health"
	"github.com/cyclescene/cyclescene/internal/localstore"
	"github.com/cyclescene/cyclescene/internal/server"
	"github.com/cyclescene/cyclescene/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var city string

	root := &cobra.Command{
		Use:           "cyclescene",
		Short:         "Offline-first bicycle ride listings",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&city, "city", "", "city code, overrides CITY_CODE")

	serve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), stdout, city)
	}
	// Without a subcommand, serve.
	root.RunE = serve

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the background worker",
			RunE:  serve,
		},
		newSyncCmd(stdout, &city),
		newClearCmd(stdout, &city),
	)
	return root
}

// env is what every command builds from the configuration.
type env struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *localstore.Store
	collections app.Collections
	transport   *worker.Transport
	client      *gateway.Client
	// city is the --city flag, empty when not given.
	city string
}

func setup(ctx context.Context, stdout io.Writer, city string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if city != "" {
		cfg.CityCode = city
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	e := &env{cfg: cfg, logger: logger, city: city}

	// --- Local store ---
	e.store, err = localstore.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("local store unavailable, running network-only", "path", cfg.DBPath, "error", err)
		e.collections = app.UnavailableCollections(err)
	} else {
		e.collections = app.CollectionsOf(e.store)
		logger.Info("opened local store", "path", cfg.DBPath)
	}

	// --- Network ---
	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("parsing API_BASE_URL: %w", err)
	}
	e.transport = worker.NewTransport(worker.TransportConfig{
		TileHosts:  cfg.TileHosts,
		APIHost:    base.Hostname(),
		MaxEntries: cfg.TileCacheMaxEntries,
		MaxAge:     cfg.TileCacheMaxAge,
		Logger:     logger,
	})
	e.client, err = gateway.NewClient(cfg.APIBaseURL, e.transport)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("building API client: %w", err)
	}
	return e, nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
}

func (e *env) worker(b *broker.Broker) *worker.Worker {
	return worker.New(worker.Config{
		Rides:        e.collections.Rides,
		Routes:       e.collections.Routes,
		Source:       e.client,
		Broker:       b,
		PrefsPath:    e.cfg.PrefsPath,
		DefaultCity:  e.cfg.CityCode,
		City:         e.city,
		Periodic:     e.cfg.PeriodicSync,
		SyncInterval: e.cfg.SyncInterval,
		MaxAttempts:  e.cfg.SyncMaxAttempts,
		Logger:       e.logger,
	})
}

func run(ctx context.Context, stdout io.Writer, city string) error {
	e, err := setup(ctx, stdout, city)
	if err != nil {
		return err
	}
	defer e.close()
	cfg, logger := e.cfg, e.logger

	b := broker.New()
	w := e.worker(b)

	sessions := app.NewRegistry(app.Deps{
		Collections:  e.collections,
		Source:       e.client,
		Worker:       w,
		Broker:       b,
		SyncInterval: cfg.SyncInterval,
		MaxAttempts:  cfg.SyncMaxAttempts,
		Logger:       logger,
	}, cfg.CityCode)
	defer sessions.Close()

	checks := map[string]health.Checker{"worker": w}
	if e.store != nil {
		checks["store"] = e.store
	} else {
		checks["store"] = health.CheckerFunc(func(context.Context) error { return localstore.ErrStorageUnavailable })
	}

	srv := server.New(server.Options{
		Addr:      cfg.HTTPAddr,
		Logger:    logger,
		Sessions:  sessions,
		Worker:    w,
		Broker:    b,
		Tiles:     e.transport,
		TileBase:  cfg.TileBaseURL,
		Checks:    checks,
		StaticDir: cfg.StaticDir,
	})

	// --- Run ---
	tree := app.NewTree(logger, app.TreeConfig{})
	tree.AddBackground(w)
	tree.AddAPI(srv)

	logger.Info("starting", "city", cfg.CityCode, "addr", cfg.HTTPAddr)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	return nil
}
