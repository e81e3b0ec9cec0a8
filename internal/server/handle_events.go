package server

import (
	"fmt"
	"net/http"
	"time"
)

// handleEvents streams a "views" event whenever the session's projections
// change. Clients re-read the endpoints they display.
func handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		g := sessionFrom(r).Cache().Graph()
		changed := make(chan struct{}, 1)
		cancel := g.Subscribe(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer cancel()

		fmt.Fprintf(w, "event: views\ndata: {\"version\":%d}\n\n", g.Version())
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-changed:
				fmt.Fprintf(w, "event: views\ndata: {\"version\":%d}\n\n", g.Version())
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
