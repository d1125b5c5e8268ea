// Package diagnostics serves a read-only view of a kernel's components
// over HTTP.
package diagnostics

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/centraunit/dikernel"
)

// Inspector is the part of the kernel the handler reads.
type Inspector interface {
	Components() []dikernel.ComponentInfo
	Component(name string) (dikernel.ComponentInfo, bool)
}

// NewHandler returns a router serving:
//
//	GET /components         every component, in registration order
//	GET /components/{name}  one component, 404 when unknown
func NewHandler(k Inspector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/components", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, k.Components())
	})
	r.Get("/components/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		info, ok := k.Component(name)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "component " + name + " not found"})
			return
		}
		writeJSON(w, http.StatusOK, info)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
