package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cyclescene/cyclescene/internal/app"
	"github.com/cyclescene/cyclescene/internal/ride"
	"github.com/cyclescene/cyclescene/internal/views"
)

type SavedResponse struct {
	Status   CollectionStatus  `json:"status"`
	Groups   []views.DateGroup `json:"groups"`
	Upcoming []ride.Ride       `json:"upcoming"`
	Past     []ride.Ride       `json:"past"`
}

type SavedDayResponse struct {
	Date  ride.Date   `json:"date"`
	Label string      `json:"label"`
	Rides []ride.Ride `json:"rides"`
}

func handleSaved() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := sessionFrom(r).Views()
		writeTagged(w, r, SavedResponse{
			Status:   statusOf(snap.Saved),
			Groups:   snap.SavedGroups,
			Upcoming: snap.SavedUpcoming,
			Past:     snap.SavedPast,
		})
	}
}

func handleSavedDates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeTagged(w, r, sessionFrom(r).Views().NavigationDates)
	}
}

func handleSavedDay() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if !selectDate(w, r, s.Cache().SavedDate) {
			return
		}
		snap := s.Views()
		writeTagged(w, r, SavedDayResponse{
			Date:  snap.SavedDate,
			Label: views.DateLabel(snap.SavedDate, snap.Today),
			Rides: snap.SavedForDay,
		})
	}
}

func handleSave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := sessionFrom(r).Save(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, app.ErrRideNotFound) {
			writeError(w, http.StatusNotFound, "ride not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "saving ride")
			return
		}
		writeJSON(w, http.StatusOK, statusOf(st))
	}
}

func handleUnsave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusOf(sessionFrom(r).Unsave(r.Context(), chi.URLParam(r, "id"))))
	}
}

func handleClearSaved() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusOf(sessionFrom(r).ClearSaved(r.Context())))
	}
}
