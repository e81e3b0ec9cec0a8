package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cyclescene/cyclescene/internal/calendar"
	"github.com/cyclescene/cyclescene/internal/ride"
	"github.com/cyclescene/cyclescene/internal/views"
)

type DayResponse struct {
	Date       ride.Date   `json:"date"`
	Label      string      `json:"label"`
	Rides      []ride.Ride `json:"rides"`
	Unmappable []ride.Ride `json:"unmappable"`
}

type MapResponse struct {
	Date     ride.Date                `json:"date"`
	Points   views.FeatureCollection  `json:"points"`
	Selected *views.FeatureCollection `json:"selected,omitempty"`
	Route    *ride.Route              `json:"route,omitempty"`
}

type SelectRequest struct {
	ID string `json:"id"`
}

type SelectionResponse struct {
	Date  ride.Date                `json:"date"`
	Ride  *ride.Ride               `json:"ride"`
	Point *views.FeatureCollection `json:"point,omitempty"`
	Route *ride.Route              `json:"route,omitempty"`
}

// selectDate moves cursor to the date query parameter, if any. Accepts
// YYYY-MM-DD or "today".
func selectDate(w http.ResponseWriter, r *http.Request, cursor *views.DateCursor) bool {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return true
	}
	d := cursor.Today()
	if raw != "today" {
		var err error
		if d, err = ride.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return false
		}
	}
	if cursor.Get() != d {
		cursor.Set(d)
	}
	return true
}

func handleDayRides() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if !selectDate(w, r, s.Cache().Date) {
			return
		}
		snap := s.Views()
		writeTagged(w, r, DayResponse{
			Date:       snap.Date,
			Label:      snap.Label,
			Rides:      snap.DayRides,
			Unmappable: snap.Unmappable,
		})
	}
}

func handleMap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if !selectDate(w, r, s.Cache().Date) {
			return
		}
		snap := s.Views()
		writeTagged(w, r, MapResponse{
			Date:     snap.Date,
			Points:   snap.Points,
			Selected: snap.SelectedPoint,
			Route:    snap.SelectedRoute,
		})
	}
}

func handleViewport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if !selectDate(w, r, s.Cache().Date) {
			return
		}
		writeTagged(w, r, s.Views().Viewport)
	}
}

func handleUpcoming() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rides, ok := sessionFrom(r).Views().Upcoming(views.Filter(chi.URLParam(r, "audience")))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown audience")
			return
		}
		writeTagged(w, r, rides)
	}
}

// handleSelect selects a ride and moves the date cursor to its day.
func handleSelect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if err := readJSON(r, &req); err != nil || req.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}

		s := sessionFrom(r)
		found, ok := lookupRide(s.Views(), req.ID)
		if !ok {
			writeError(w, http.StatusNotFound, "ride not found")
			return
		}
		s.Cache().SelectOnDay(found.ID, found.Date)

		snap := s.Views()
		writeJSON(w, http.StatusOK, SelectionResponse{
			Date:  snap.Date,
			Ride:  snap.Selected,
			Point: snap.SelectedPoint,
			Route: snap.SelectedRoute,
		})
	}
}

func handleRoutes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeTagged(w, r, sessionFrom(r).Routes().Data)
	}
}

func handleRoute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, ok := views.FindRoute(sessionFrom(r).Routes().Data, chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "route not found")
			return
		}
		writeTagged(w, r, route)
	}
}

func handleCalendar(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		found, ok := lookupRide(s.Views(), chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "ride not found")
			return
		}

		data, err := calendar.Event(found, s.City().Location(), now())
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+calendar.Filename(found)+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// lookupRide searches the rides cache, then the saved rides, which may hold
// rides the cache no longer lists.
func lookupRide(snap views.Snapshot, id string) (ride.Ride, bool) {
	if r, ok := views.FindRide(snap.Rides.Data, id); ok {
		return r, true
	}
	return views.FindRide(snap.Saved.Data, id)
}
