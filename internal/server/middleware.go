package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cyclescene/cyclescene/internal/app"
)

type ctxKey int

const ctxKeySession ctxKey = iota

func sessionMiddleware(sessions *app.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "session")
			s, err := sessions.Get(id)
			if errors.Is(err, app.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "loading session")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *app.Session {
	return r.Context().Value(ctxKeySession).(*app.Session)
}
