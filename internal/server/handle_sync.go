package server

import (
	"errors"
	"net/http"

	"github.com/cyclescene/cyclescene/internal/app"
	"github.com/cyclescene/cyclescene/internal/coordinator"
	"github.com/cyclescene/cyclescene/internal/ride"
)

// writeSyncResult answers 200 with the resulting state, or 502 when the
// fetch failed. Cached data stays available either way.
func writeSyncResult(w http.ResponseWriter, st coordinator.State[ride.Ride]) {
	status := http.StatusOK
	if st.Status == coordinator.StatusError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, statusOf(st))
}

func handleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSyncResult(w, sessionFrom(r).Refresh(r.Context()))
	}
}

func handleClear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSyncResult(w, sessionFrom(r).ClearAndRefresh(r.Context()))
	}
}

// handleSync asks the background worker for a sync. Completion arrives as
// an events notification.
func handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := sessionFrom(r).TriggerForegroundSync()
		if errors.Is(err, app.ErrWorkerUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "background sync unavailable")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "requesting sync")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
