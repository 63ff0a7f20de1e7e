package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/auth"
	"github.com/ghnotify/github-render-webhook/pkg/config"
	"github.com/ghnotify/github-render-webhook/pkg/metrics"
)

// JobSink accepts verified webhook deliveries. A nil error means the job was
// handled or confirmed queued.
type JobSink interface {
	Enqueue(ctx context.Context, job *models.WebhookJob) error
}

// Server represents the HTTP webhook server
type Server struct {
	config      *config.Config
	router      *mux.Router
	adminRouter *mux.Router
	httpServer  *http.Server
	adminServer *http.Server
	auth        *auth.Authenticator
	sink        JobSink
	logger      *logrus.Logger
	ready       atomic.Bool
}

// NewServer creates a new webhook server instance
func NewServer(cfg *config.Config, sink JobSink, logger *logrus.Logger) *Server {
	s := &Server{
		config:      cfg,
		router:      mux.NewRouter(),
		adminRouter: mux.NewRouter(),
		auth:        auth.NewAuthenticator(cfg.GitHub.Secret, logger),
		sink:        sink,
		logger:      logger,
	}

	// Setup routes
	s.setupRoutes()
	s.setupAdminRoutes()

	readTimeout, _ := cfg.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := cfg.ParseDuration(cfg.Server.WriteTimeout)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	if cfg.Admin.Port != 0 {
		s.adminServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
			Handler:           s.adminRouter,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s
}

// setupRoutes configures the intake router. Only POST on the configured path
// is served; everything else is "Not found".
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.requestSizeLimitMiddleware)

	s.router.Handle(s.config.Server.Path, s.auth.Middleware(http.HandlerFunc(s.handleWebhook))).
		Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)
}

// Handler returns the intake handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the admin listener, if configured, and the intake listener.
// It blocks until the intake listener stops.
func (s *Server) Start() error {
	if s.adminServer != nil {
		go func() {
			s.logger.WithField("port", s.config.Admin.Port).Info("Starting admin server")
			if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.WithError(err).Error("Admin server error")
			}
		}()
	}

	s.logger.WithFields(logrus.Fields{
		"port": s.config.Server.Port,
		"path": s.config.Server.Path,
	}).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the intake listener. In-flight requests complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.ready.Store(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ShutdownAdmin stops the admin listener
func (s *Server) ShutdownAdmin(ctx context.Context) error {
	if s.adminServer == nil {
		return nil
	}
	if err := s.adminServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown error: %w", err)
	}
	return nil
}

// SetReady sets the readiness status reported by /ready. Shutdown clears it.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// handleWebhook processes a request that passed signature verification
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get(auth.HeaderEvent)

	body, ok := auth.BodyFromContext(r.Context())
	if !ok || !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		s.logger.WithFields(logrus.Fields{
			"event":       event,
			"remote_addr": r.RemoteAddr,
		}).Warn("Rejected webhook with malformed payload")

		metrics.RecordWebhookRequest(event, "bad_request")
		writeText(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	repo := gjson.GetBytes(body, "repository.full_name").String()
	s.logger.Infof("Received %s event for %s", event, repo)

	deliveryID := r.Header.Get(auth.HeaderDelivery)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	job := &models.WebhookJob{
		DeliveryID: deliveryID,
		EventType:  event,
		Body:       body,
		Repository: repo,
		ReceivedAt: time.Now(),
	}

	if err := s.sink.Enqueue(r.Context(), job); err != nil {
		logger := s.logger.WithFields(logrus.Fields{
			"delivery_id": deliveryID,
			"event":       event,
			"repository":  repo,
		}).WithError(err)

		if errors.Is(err, models.ErrInvalidPayload) {
			logger.Warn("Rejected webhook with undecodable payload")
			metrics.RecordWebhookRequest(event, "bad_request")
			writeText(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		logger.Error("Failed to queue webhook")
		metrics.RecordWebhookRequest(event, "unavailable")
		writeText(w, http.StatusServiceUnavailable, "Service unavailable")
		return
	}

	metrics.RecordWebhookRequest(event, "accepted")
	writeText(w, http.StatusOK, "OK")
}

// handleNotFound answers every method and path other than the webhook endpoint
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, "Not found")
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"status_code": rw.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request")
	})
}

// requestSizeLimitMiddleware enforces maximum request size
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
