package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/cyclescene/cyclescene/internal/ride"
	"github.com/cyclescene/cyclescene/internal/views"
)

// HealthResponse maps each checked dependency to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CycleScene API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Offline-first ride listings: local cache, sync and derived views.")

	const session = "/api/sessions/{session}"

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the status of the local store and the background worker.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/worker
	getWorker, _ := r.NewOperationContext(http.MethodGet, "/ws/worker")
	getWorker.SetSummary("Worker bridge")
	getWorker.SetDescription("Upgrades to a WebSocket carrying SET_CITY_CODE and FORCE_FOREGROUND_SYNC in and RIDES_UPDATE_SUCCESSFUL out.")
	getWorker.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWorker.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getWorker)

	// GET /tiles/{style}/{z}/{x}/{y}
	getTile, _ := r.NewOperationContext(http.MethodGet, "/tiles/{style}/{z}/{x}/{y}")
	getTile.SetSummary("Map tile")
	getTile.SetDescription("Proxies a basemap tile through the cache-first tile cache.")
	getTile.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	getTile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getTile)

	// POST /api/sessions
	createSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	createSession.SetSummary("Create session")
	createSession.SetDescription("Opens a session for a city and loads every collection.")
	createSession.AddReqStructure(CreateSessionRequest{})
	createSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createSession)

	// DELETE /api/sessions/{session}
	deleteSession, _ := r.NewOperationContext(http.MethodDelete, session)
	deleteSession.SetSummary("Close session")
	deleteSession.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(deleteSession)

	// GET /api/sessions/{session}/state
	getState, _ := r.NewOperationContext(http.MethodGet, session + "/state")
	getState.SetSummary("Session state")
	getState.SetDescription("Returns collection statuses and every derived view of one consistent state.")
	getState.AddRespStructure(StateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getState)

	// GET /api/sessions/{session}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, session + "/events")
	getEvents.SetSummary("View changes")
	getEvents.SetDescription("Server-sent events. A views event is sent whenever a projection changes.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/sessions/{session}/rides
	getRides, _ := r.NewOperationContext(http.MethodGet, session + "/rides")
	getRides.SetSummary("Rides of the selected day")
	getRides.SetDescription("The optional date query (YYYY-MM-DD or today) moves the date cursor first.")
	getRides.AddRespStructure(DayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRides.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getRides)

	// GET /api/sessions/{session}/rides/{id}/calendar.ics
	getCalendar, _ := r.NewOperationContext(http.MethodGet, session + "/rides/{id}/calendar.ics")
	getCalendar.SetSummary("Calendar event")
	getCalendar.SetDescription("Exports the ride as an iCalendar file.")
	getCalendar.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/calendar"))
	getCalendar.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getCalendar)

	// GET /api/sessions/{session}/map
	getMap, _ := r.NewOperationContext(http.MethodGet, session + "/map")
	getMap.SetSummary("Map points")
	getMap.SetDescription("GeoJSON points of the mappable rides of the selected day. Rides sharing a location are offset.")
	getMap.AddRespStructure(MapResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getMap)

	// GET /api/sessions/{session}/viewport
	getViewport, _ := r.NewOperationContext(http.MethodGet, session + "/viewport")
	getViewport.SetSummary("Map viewport")
	getViewport.AddRespStructure(views.Viewport{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getViewport)

	// GET /api/sessions/{session}/upcoming/{audience}
	getUpcoming, _ := r.NewOperationContext(http.MethodGet, session + "/upcoming/{audience}")
	getUpcoming.SetSummary("Upcoming rides by audience")
	getUpcoming.SetDescription("audience is adults, family or safety.")
	getUpcoming.AddRespStructure([]ride.Ride{}, openapi.WithHTTPStatus(http.StatusOK))
	getUpcoming.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getUpcoming)

	// POST /api/sessions/{session}/select
	postSelect, _ := r.NewOperationContext(http.MethodPost, session + "/select")
	postSelect.SetSummary("Select ride")
	postSelect.SetDescription("Selects a ride and moves the date cursor to its day.")
	postSelect.AddReqStructure(SelectRequest{})
	postSelect.AddRespStructure(SelectionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSelect.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postSelect)

	// GET /api/sessions/{session}/routes
	getRoutes, _ := r.NewOperationContext(http.MethodGet, session + "/routes")
	getRoutes.SetSummary("Routes")
	getRoutes.AddRespStructure([]ride.Route{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getRoutes)

	// GET /api/sessions/{session}/routes/{id}
	getRoute, _ := r.NewOperationContext(http.MethodGet, session + "/routes/{id}")
	getRoute.SetSummary("Route")
	getRoute.AddRespStructure(ride.Route{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoute.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRoute)

	// POST /api/sessions/{session}/refresh
	postRefresh, _ := r.NewOperationContext(http.MethodPost, session + "/refresh")
	postRefresh.SetSummary("Refresh")
	postRefresh.SetDescription("Fetches rides and routes and replaces the cache. On failure cached data stays.")
	postRefresh.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	postRefresh.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	postRefresh.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postRefresh)

	// POST /api/sessions/{session}/clear
	postClear, _ := r.NewOperationContext(http.MethodPost, session + "/clear")
	postClear.SetSummary("Clear and refresh")
	postClear.SetDescription("Empties the rides cache, then fetches. Saved rides are untouched.")
	postClear.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	postClear.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	postClear.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postClear)

	// POST /api/sessions/{session}/sync
	postSync, _ := r.NewOperationContext(http.MethodPost, session + "/sync")
	postSync.SetSummary("Foreground sync")
	postSync.SetDescription("Asks the background worker to sync now. Completion arrives as a views event.")
	postSync.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusAccepted))
	postSync.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postSync)

	// GET /api/sessions/{session}/saved
	getSaved, _ := r.NewOperationContext(http.MethodGet, session + "/saved")
	getSaved.SetSummary("Saved rides")
	getSaved.SetDescription("Saved rides grouped by date and split around today.")
	getSaved.AddRespStructure(SavedResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getSaved)

	// DELETE /api/sessions/{session}/saved
	clearSaved, _ := r.NewOperationContext(http.MethodDelete, session + "/saved")
	clearSaved.SetSummary("Clear saved rides")
	clearSaved.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(clearSaved)

	// GET /api/sessions/{session}/saved/dates
	getSavedDates, _ := r.NewOperationContext(http.MethodGet, session + "/saved/dates")
	getSavedDates.SetSummary("Saved ride dates")
	getSavedDates.AddRespStructure([]ride.Date{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getSavedDates)

	// GET /api/sessions/{session}/saved/day
	getSavedDay, _ := r.NewOperationContext(http.MethodGet, session + "/saved/day")
	getSavedDay.SetSummary("Saved rides of a day")
	getSavedDay.AddRespStructure(SavedDayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getSavedDay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getSavedDay)

	// PUT /api/sessions/{session}/saved/{id}
	putSaved, _ := r.NewOperationContext(http.MethodPut, session + "/saved/{id}")
	putSaved.SetSummary("Save ride")
	putSaved.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	putSaved.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(putSaved)

	// DELETE /api/sessions/{session}/saved/{id}
	deleteSaved, _ := r.NewOperationContext(http.MethodDelete, session + "/saved/{id}")
	deleteSaved.SetSummary("Unsave ride")
	deleteSaved.AddRespStructure(CollectionStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(deleteSaved)

	// GET /api/sessions/{session}/nav
	getNav, _ := r.NewOperationContext(http.MethodGet, session + "/nav")
	getNav.SetSummary("Navigation stack")
	getNav.AddRespStructure(NavResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getNav)

	// POST /api/sessions/{session}/nav/push
	postNavPush, _ := r.NewOperationContext(http.MethodPost, session + "/nav/push")
	postNavPush.SetSummary("Push view")
	postNavPush.AddReqStructure(NavRequest{})
	postNavPush.AddRespStructure(NavResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postNavPush.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postNavPush)

	// POST /api/sessions/{session}/nav/back
	postNavBack, _ := r.NewOperationContext(http.MethodPost, session + "/nav/back")
	postNavBack.SetSummary("Back")
	postNavBack.SetDescription("Pops the active view. The stack never empties.")
	postNavBack.AddRespStructure(NavResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postNavBack)

	// POST /api/sessions/{session}/nav/jump
	postNavJump, _ := r.NewOperationContext(http.MethodPost, session + "/nav/jump")
	postNavJump.SetSummary("Jump to view")
	postNavJump.SetDescription("Returns to the most recent occurrence of a view in the stack.")
	postNavJump.AddReqStructure(NavRequest{})
	postNavJump.AddRespStructure(NavResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postNavJump.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postNavJump)
	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
