// Package server is the HTTP surface over the proximity tracker: it
// receives position updates, returns the encounters each update
// produced, and serves the browser test harness and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kass/go-proximity-index/pkg/metrics"
	"github.com/kass/go-proximity-index/pkg/models"
	"github.com/kass/go-proximity-index/pkg/notify"
	"github.com/kass/go-proximity-index/pkg/tracker"
)

// Server handles the location update API.
type Server struct {
	tracker  *tracker.Tracker
	notifier notify.Notifier
	log      *slog.Logger
	mux      *http.ServeMux
}

// New wires the handler set. notifier may be nil when no sink is
// configured; reg may be nil to skip the /metrics endpoint.
func New(t *tracker.Tracker, notifier notify.Notifier, log *slog.Logger, reg *prometheus.Registry) *Server {
	s := &Server{
		tracker:  t,
		notifier: notifier,
		log:      log,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/location", s.handleLocation)
	s.mux.HandleFunc("GET /test", s.handleTestPage)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if reg != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type locationRequest struct {
	UserID    string  `json:"userID"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type locationResponse struct {
	Status string                `json:"status"`
	Hits   []models.ProximityHit `json:"hits"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDurationSeconds.Observe(time.Since(start).Seconds())
	}()
	metrics.UpdatesTotal.Inc()

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.UpdateErrorsTotal.Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "malformed request body"})
		return
	}
	if req.UserID == "" {
		metrics.UpdateErrorsTotal.Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "userID is required"})
		return
	}

	s.log.Info("location update",
		"agent", req.UserID,
		"lat", req.Latitude,
		"lon", req.Longitude,
	)

	if err := s.tracker.Upsert(req.UserID, req.Latitude, req.Longitude, time.Time{}); err != nil {
		metrics.UpdateErrorsTotal.Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: err.Error()})
		return
	}

	cfg := s.tracker.Config()
	hits, _ := s.tracker.FindNearby(req.UserID, cfg.ThresholdMeters, cfg.TimeWindow)
	if len(hits) > 0 {
		metrics.EncountersTotal.Add(float64(len(hits)))
		s.dispatch(req.UserID, hits)
	}

	rounded := make([]models.ProximityHit, len(hits))
	for i, hit := range hits {
		rounded[i] = models.ProximityHit{
			AgentID:        hit.AgentID,
			DistanceMeters: math.Round(hit.DistanceMeters*100) / 100,
		}
	}
	writeJSON(w, http.StatusOK, locationResponse{Status: "OK", Hits: rounded})
}

// dispatch forwards detected encounters to the configured sinks off the
// request path. Failures are counted and logged, never returned to the
// reporting agent.
func (s *Server) dispatch(agentID string, hits []models.ProximityHit) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, agentID, hits); err != nil {
			metrics.NotifyFailuresTotal.Inc()
			s.log.Warn("notify failed", "agent", agentID, "error", err)
		}
	}()
}

func (s *Server) handleTestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(testPageHTML))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
