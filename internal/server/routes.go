package server

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"

	"github.com/cyclescene/cyclescene/internal/handler/health"
)

func addRoutes(r chi.Router, opts Options) {
	logger := opts.Logger

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CycleScene API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, opts.Checks).Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/worker", handleWorkerBridge(logger, opts.Worker, opts.Broker))
	if opts.Tiles != nil && opts.TileBase != "" {
		r.Get("/tiles/{style}/{z}/{x}/{y}", handleTiles(opts.Tiles, opts.TileBase))
	}

	r.Post("/api/sessions", handleCreateSession(opts.Sessions))

	// Session routes: {session} resolved by sessionMiddleware.
	r.Route("/api/sessions/{session}", func(r chi.Router) {
		r.Use(sessionMiddleware(opts.Sessions))
		r.Delete("/", handleDeleteSession(opts.Sessions))
		r.Get("/state", handleState())
		r.Get("/events", handleEvents())

		r.Get("/rides", handleDayRides())
		r.Get("/rides/{id}/calendar.ics", handleCalendar(opts.Now))
		r.Get("/map", handleMap())
		r.Get("/viewport", handleViewport())
		r.Get("/upcoming/{audience}", handleUpcoming())
		r.Post("/select", handleSelect())
		r.Get("/routes", handleRoutes())
		r.Get("/routes/{id}", handleRoute())

		// Network-bound operations.
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(10, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, keyBySession),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusTooManyRequests, "too many sync requests")
				}),
			))
			r.Post("/refresh", handleRefresh())
			r.Post("/clear", handleClear())
			r.Post("/sync", handleSync())
		})

		r.Get("/saved", handleSaved())
		r.Delete("/saved", handleClearSaved())
		r.Get("/saved/dates", handleSavedDates())
		r.Get("/saved/day", handleSavedDay())
		r.Put("/saved/{id}", handleSave())
		r.Delete("/saved/{id}", handleUnsave())

		r.Get("/nav", handleNav())
		r.Post("/nav/push", handleNavPush())
		r.Post("/nav/back", handleNavBack())
		r.Post("/nav/jump", handleNavJump())
	})

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			logger.Info("serving client shell", "dir", opts.StaticDir)
			r.NotFound(handleSPA(opts.StaticDir))
		}
	}
}

func keyBySession(r *http.Request) (string, error) {
	return chi.URLParam(r, "session"), nil
}
