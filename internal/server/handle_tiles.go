package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleTiles proxies map tiles from base through rt, so repeat requests are
// answered by the tile cache.
func handleTiles(rt http.RoundTripper, base string) http.HandlerFunc {
	client := &http.Client{Transport: rt}
	base = strings.TrimRight(base, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		upstream := base + "/" + strings.Join([]string{
			chi.URLParam(r, "style"),
			chi.URLParam(r, "z"),
			chi.URLParam(r, "x"),
			chi.URLParam(r, "y"),
		}, "/")

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream, nil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tile path")
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			writeError(w, http.StatusBadGateway, "fetching tile")
			return
		}
		defer resp.Body.Close()

		for _, h := range []string{"Content-Type", "Cache-Control", "Last-Modified"} {
			if v := resp.Header.Get(h); v != "" {
				w.Header().Set(h, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}
