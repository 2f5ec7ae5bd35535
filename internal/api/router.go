package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts the query endpoints. The caller adds /metrics and the
// access log. /summary, /snapshot and the evolution view take an optional
// as_of=YYYY-MM-DD and report the day before it.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/countries", s.countries).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.summary).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", s.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/countries/{country}/evolution", s.evolution).Methods(http.MethodGet)
	r.HandleFunc("/compare", s.compare).Methods(http.MethodGet)

	return r
}
