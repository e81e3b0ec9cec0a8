package server

import (
	"net/http"

	"github.com/cyclescene/cyclescene/internal/views"
)

type NavResponse struct {
	Stack  []views.View `json:"stack"`
	Active views.View   `json:"active"`
}

type NavRequest struct {
	View  string `json:"view"`
	Force bool   `json:"force,omitempty"`
}

func writeNav(w http.ResponseWriter, nav *views.Navigator) {
	writeJSON(w, http.StatusOK, NavResponse{Stack: nav.Stack(), Active: nav.Active()})
}

func readView(w http.ResponseWriter, r *http.Request) (NavRequest, views.View, bool) {
	var req NavRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, "", false
	}
	v, ok := views.ParseView(req.View)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown view")
		return req, "", false
	}
	return req, v, true
}

func handleNav() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeNav(w, sessionFrom(r).Cache().Nav)
	}
}

func handleNavPush() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, v, ok := readView(w, r)
		if !ok {
			return
		}
		nav := sessionFrom(r).Cache().Nav
		nav.Push(v, req.Force)
		writeNav(w, nav)
	}
}

func handleNavBack() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nav := sessionFrom(r).Cache().Nav
		nav.Back()
		writeNav(w, nav)
	}
}

func handleNavJump() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, v, ok := readView(w, r)
		if !ok {
			return
		}
		nav := sessionFrom(r).Cache().Nav
		if !nav.JumpTo(v) {
			writeError(w, http.StatusConflict, "view not in history")
			return
		}
		writeNav(w, nav)
	}
}
