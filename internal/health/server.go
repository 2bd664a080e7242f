// Package health exposes liveness, learning statistics and Prometheus
// metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flakeproof/flakeproof/internal/resilience/learn"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	store  *learn.Store
	server *http.Server
}

// NewServer creates a new health server backed by the shared pattern
// store.
func NewServer(store *learn.Store, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		store: store,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.store == nil {
		json.NewEncoder(w).Encode(learn.Statistics{})
		return
	}
	json.NewEncoder(w).Encode(s.store.Statistics())
}
