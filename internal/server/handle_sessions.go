package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cyclescene/cyclescene/internal/app"
	"github.com/cyclescene/cyclescene/internal/coordinator"
	"github.com/cyclescene/cyclescene/internal/views"
)

type CreateSessionRequest struct {
	City string `json:"city,omitempty"`
}

type SessionResponse struct {
	ID        string    `json:"id"`
	City      string    `json:"city"`
	CityName  string    `json:"cityName"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectionStatus summarizes one coordinator state without its records.
type CollectionStatus struct {
	Status    string    `json:"status"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
	Degraded  bool      `json:"degraded"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StateResponse struct {
	Session SessionResponse  `json:"session"`
	Rides   CollectionStatus `json:"rides"`
	Saved   CollectionStatus `json:"saved"`
	Routes  CollectionStatus `json:"routes"`
	Views   views.Snapshot   `json:"views"`
}

func statusOf[T any](st coordinator.State[T]) CollectionStatus {
	return CollectionStatus{
		Status:    st.Status.String(),
		Count:     len(st.Data),
		Error:     st.ErrMessage(),
		Degraded:  st.Degraded,
		UpdatedAt: st.UpdatedAt,
	}
}

func sessionResponse(s *app.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID(),
		City:      s.City().Code,
		CityName:  s.City().Name,
		CreatedAt: s.CreatedAt(),
	}
}

func handleCreateSession(sessions *app.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s, err := sessions.Create(r.Context(), req.City)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "creating session")
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse(s))
	}
}

func handleDeleteSession(sessions *app.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Remove(chi.URLParam(r, "session"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		snap := s.Views()
		writeTagged(w, r, StateResponse{
			Session: sessionResponse(s),
			Rides:   statusOf(snap.Rides),
			Saved:   statusOf(snap.Saved),
			Routes:  statusOf(snap.Routes),
			Views:   snap,
		})
	}
}
