package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-i2p/respool/lib/metrics"
	"github.com/go-i2p/respool/lib/pool"
)

// statusRoutes serves p's statistics as JSON at /pools/{name}.
func statusRoutes[R comparable](p *pool.Pool[R]) metrics.Route {
	return func(r chi.Router) {
		r.Get("/pools", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []string{p.Name()})
		})
		r.Get("/pools/{name}", func(w http.ResponseWriter, req *http.Request) {
			if chi.URLParam(req, "name") != p.Name() {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown pool"})
				return
			}
			writeJSON(w, http.StatusOK, p.Stats())
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
