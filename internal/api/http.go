// Package api exposes the aggregated views over HTTP as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"covidlens/internal/aggregate"
	"covidlens/internal/metrics"
	"covidlens/internal/model"
)

const dateLayout = "2006-01-02"

// Provider returns the dataset to query.
type Provider interface {
	Get(ctx context.Context) (model.Dataset, error)
}

type Server struct {
	data    Provider
	metrics *metrics.Registry
	log     *zap.Logger
	now     func() time.Time
}

func NewServer(data Provider, m *metrics.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{data: data, metrics: m, log: log, now: time.Now}
}

type viewResponse struct {
	Granularity aggregate.Granularity `json:"granularity"`
	Rows        any                   `json:"rows"`
}

func toResponse(v aggregate.View) viewResponse {
	resp := viewResponse{Granularity: v.Granularity, Rows: []model.EnrichedRecord{}}
	switch {
	case v.Records != nil:
		resp.Rows = v.Records
	case v.Buckets != nil:
		resp.Rows = v.Buckets
	}
	return resp
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.data.Get(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) countries(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r, "countries")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Countries(ds))
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	ds, ok := s.dataset(w, r, "summary")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Summarize(ds, asOf))
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	ds, ok := s.dataset(w, r, "snapshot")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.LatestSnapshot(ds, asOf))
}

func (s *Server) evolution(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(mux.Vars(r)["country"])
	g, ok := granularity(w, r, aggregate.Daily)
	if !ok {
		return
	}
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	ds, ok := s.dataset(w, r, "evolution")
	if !ok {
		return
	}
	v, err := aggregate.Evolution(ds, country, g, asOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(v))
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	g, ok := granularity(w, r, aggregate.Daily)
	if !ok {
		return
	}
	var countries []string
	for _, c := range r.URL.Query()["country"] {
		if c = strings.TrimSpace(c); c != "" {
			countries = append(countries, c)
		}
	}
	ds, ok := s.dataset(w, r, "compare")
	if !ok {
		return
	}
	v, err := aggregate.Compare(ds, countries, g)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(v))
}

// dataset fetches the dataset and counts the query. It writes the error
// response itself and reports false when there is nothing to serve.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request, view string) (model.Dataset, bool) {
	if s.metrics != nil {
		s.metrics.Queries.WithLabelValues(view).Inc()
	}
	ds, err := s.data.Get(r.Context())
	if err != nil {
		s.log.Warn("dataset unavailable", zap.String("view", view), zap.Error(err))
		status := http.StatusServiceUnavailable
		if errors.Is(err, model.ErrMalformedInput) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return model.Dataset{}, false
	}
	return ds, true
}

// asOf reads the as_of query parameter (default now). Views report the day
// before it, so as_of=2021-01-02 selects the 2021-01-01 rows.
func (s *Server) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return s.now().UTC(), true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of; use YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func granularity(w http.ResponseWriter, r *http.Request, def aggregate.Granularity) (aggregate.Granularity, bool) {
	raw := r.URL.Query().Get("granularity")
	if raw == "" {
		return def, true
	}
	g, err := aggregate.ParseGranularity(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return g, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
