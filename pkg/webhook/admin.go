package webhook

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupAdminRoutes configures health, readiness and metrics on the admin listener
func (s *Server) setupAdminRoutes() {
	s.adminRouter.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.adminRouter.HandleFunc("/ready", s.handleReadiness).Methods(http.MethodGet)
	s.adminRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// AdminHandler returns the admin handler
func (s *Server) AdminHandler() http.Handler {
	return s.adminRouter
}

// handleHealth returns the health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// handleReadiness returns the readiness status
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
