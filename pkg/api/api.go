//go:generate swag init -g docs.go -o docs --outputTypes go --parseDependency

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hotlabel/publishers/pkg/api/docs"
	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/auth"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/hotlabel/publishers/pkg/stats"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP API server.
type Server interface {
	Start(ctx context.Context) error
	Stop() error

	// Handler returns the router, for embedding and tests.
	Handler() http.Handler
}

// server implements Server.
type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	recorder   stats.Recorder
	auth       auth.Service
	publishers publisher.Service
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	hub        *Hub
	srv        *http.Server
	router     chi.Router

	// Rate limiters for different endpoint tiers.
	publicRateLimiter        *IPRateLimiter
	registrationRateLimiter  *IPRateLimiter
	authenticatedRateLimiter *IPRateLimiter
}

// Ensure server implements Server.
var _ Server = (*server)(nil)

// NewServer creates a new API server. The hub must be the notifier the
// publisher service was built with so event streams see its changes.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	st store.Store,
	recorder stats.Recorder,
	authSvc auth.Service,
	pubSvc publisher.Service,
	hub *Hub,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &server{
		log:        log.WithField("component", "api"),
		cfg:        cfg,
		store:      st,
		recorder:   recorder,
		auth:       authSvc,
		publishers: pubSvc,
		metrics:    m,
		gatherer:   gatherer,
		hub:        hub,
	}

	// Initialize rate limiters if enabled.
	if cfg.Server.RateLimit.Enabled {
		rl := cfg.Server.RateLimit
		s.publicRateLimiter = NewIPRateLimiter(rl.Public.RequestsPerMinute)
		s.registrationRateLimiter = NewIPRateLimiter(rl.Registration.RequestsPerMinute)
		s.authenticatedRateLimiter = NewIPRateLimiter(rl.Authenticated.RequestsPerMinute)

		s.log.WithFields(logrus.Fields{
			"public_rpm":        rl.Public.RequestsPerMinute,
			"registration_rpm":  rl.Registration.RequestsPerMinute,
			"authenticated_rpm": rl.Authenticated.RequestsPerMinute,
		}).Info("Rate limiting enabled")
	}

	s.setupRouter()

	return s
}

// Start starts the event stream hub and the HTTP server.
func (s *server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("addr", s.cfg.Server.Listen).Info("Starting API server")

	go s.hub.Run(ctx)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	for _, rl := range []*IPRateLimiter{s.publicRateLimiter, s.registrationRateLimiter, s.authenticatedRateLimiter} {
		if rl != nil {
			rl.Stop()
		}
	}

	if s.srv == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

// Handler returns the router.
func (s *server) Handler() http.Handler {
	return s.router
}

func (s *server) setupRouter() {
	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(auth.CapturePeer)

	if s.cfg.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}

	r.Use(middleware.RequestLogger(&logFormatter{log: s.log}))
	r.Use(middleware.Recoverer)

	if s.metrics != nil {
		r.Use(metricsMiddleware(s.metrics))
	}

	// CORS.
	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.Server.CORSOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierr.Write(w, r, apierr.New(apierr.CodeNotFound, "Route not found"))
	})

	timeout := middleware.Timeout(s.cfg.Server.RequestTimeout)

	// Public endpoints with public rate limit.
	r.Group(func(r chi.Router) {
		r.Use(timeout)
		s.limit(r, s.publicRateLimiter)

		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	})

	// API v1.
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			s.limit(r, s.publicRateLimiter)

			r.Get("/openapi.json", s.handleOpenAPISpec)
		})

		// Registration with strict rate limit.
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			s.limit(r, s.registrationRateLimiter)

			r.Post("/publishers", s.handleRegister)
		})

		// Internal-only listing.
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			s.limit(r, s.authenticatedRateLimiter)
			r.Use(auth.RequireInternal(s.auth))

			r.Get("/publishers", s.handleListPublishers)
		})

		// Routes open to the owning publisher and trusted internal services.
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			s.limit(r, s.authenticatedRateLimiter)
			r.Use(auth.RequirePublisherOrInternal(s.auth))
			r.Use(auth.RequireOwner(s.auth))

			r.Get("/publishers/{id}", s.handleGetPublisher)
			r.Get("/publishers/{id}/tasks", s.handleListTasks)
			r.Patch("/publishers/{id}/tasks/{taskID}/status", s.handleUpdateTaskStatus)
		})

		// Routes open to the owning publisher only.
		r.Group(func(r chi.Router) {
			s.limit(r, s.authenticatedRateLimiter)
			r.Use(auth.RequirePublisher(s.auth))
			r.Use(auth.RequireOwner(s.auth))

			// Long-lived, so no request timeout.
			r.Get("/publishers/{id}/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Patch("/publishers/{id}", s.handleUpdatePublisher)
				r.Patch("/publishers/{id}/configuration", s.handleUpdateConfiguration)
				r.Get("/publishers/{id}/statistics", s.handleStatistics)
				r.Get("/publishers/{id}/integration-code", s.handleIntegrationCode)
				r.Post("/publishers/{id}/webhooks", s.handleCreateWebhook)
				r.Get("/publishers/{id}/webhooks", s.handleListWebhooks)
				r.Post("/publishers/{id}/regenerate-api-key", s.handleRegenerateAPIKey)
				r.Get("/publishers/{id}/audit", s.handleAudit)
			})
		})
	})

	s.router = r
}

func (s *server) limit(r chi.Router, rl *IPRateLimiter) {
	if rl != nil {
		r.Use(rl.Middleware)
	}
}

// ============================================================================
// Middleware
// ============================================================================

// requestIDHeader echoes the request id assigned by middleware.RequestID.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 1 && origins[0] == "*"

	originSet := make(map[string]bool, len(origins))
	for _, origin := range origins {
		originSet[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (allowAll || originSet[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization, X-API-Key, X-Internal-Service, X-Request-ID")
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(status), time.Since(start).Seconds())
		})
	}
}

// logFormatter writes chi access log lines through logrus.
type logFormatter struct {
	log logrus.FieldLogger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{log: f.log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type logEntry struct {
	log logrus.FieldLogger
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	entry := e.log.WithFields(logrus.Fields{
		"status":   status,
		"bytes":    bytes,
		"duration": elapsed.String(),
	})

	switch {
	case status >= http.StatusInternalServerError:
		entry.Warn("Request completed")
	default:
		entry.Debug("Request completed")
	}
}

func (e *logEntry) Panic(v any, stack []byte) {
	e.log.WithField("panic", fmt.Sprint(v)).WithField("stack", string(stack)).Error("Request panicked")
}

// ============================================================================
// Response helpers
// ============================================================================

func (s *server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError renders err in the error envelope. Server-side failures are
// logged with their cause, which is never sent to the client.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)

	if apiErr.Status() >= http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).Error("Request failed")
	}

	apierr.Write(w, r, apiErr)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.Validation("Request body is required", nil)
		}

		return apierr.Validation("Invalid request body", map[string]string{"body": err.Error()})
	}

	return nil
}

// parsePage reads limit and offset query parameters.
func parsePage(r *http.Request) (store.ListOpts, error) {
	opts := store.ListOpts{Limit: publisher.DefaultPageSize}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > publisher.MaxPageSize {
			return opts, apierr.Validation("Invalid limit", map[string]string{
				"limit": fmt.Sprintf("must be an integer between 1 and %d", publisher.MaxPageSize),
			})
		}

		opts.Limit = n
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, apierr.Validation("Invalid offset", map[string]string{
				"offset": "must be a non-negative integer",
			})
		}

		opts.Offset = n
	}

	return opts, nil
}

// ============================================================================
// System handlers
// ============================================================================

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ComponentStatus is the health of one dependency.
type ComponentStatus struct {
	Status  string `json:"status" example:"healthy"`
	Backend string `json:"backend,omitempty" example:"redis"`
	Latency string `json:"latency,omitempty" example:"2ms"`
	Error   string `json:"error,omitempty"`
}

// ReadyResponse is the response for the readiness endpoint.
type ReadyResponse struct {
	Status     string          `json:"status" example:"ready"`
	Database   ComponentStatus `json:"database"`
	Statistics ComponentStatus `json:"statistics"`
	Timestamp  string          `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// handleOpenAPISpec godoc
//
//	@Summary		OpenAPI specification
//	@Description	Returns the OpenAPI specification for the API
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	object	"OpenAPI specification"
//	@Router			/openapi.json [get]
func (s *server) handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docs.SwaggerInfo.ReadDoc()))
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Returns ok while the process is serving requests
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		429	{object}	apierr.Envelope	"Rate limit exceeded"
//	@Router			/health [get]
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady godoc
//
//	@Summary		Readiness check
//	@Description	Checks the database and the statistics backend
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	ReadyResponse
//	@Failure		503	{object}	ReadyResponse
//	@Router			/ready [get]
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadyResponse{
		Status:     "ready",
		Database:   checkComponent(ctx, "", s.store.Ping),
		Statistics: checkComponent(ctx, s.recorder.Name(), s.recorder.Ping),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK

	if resp.Database.Status != "healthy" || resp.Statistics.Status != "healthy" {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, resp)
}

func checkComponent(ctx context.Context, backend string, ping func(context.Context) error) ComponentStatus {
	start := time.Now()

	if err := ping(ctx); err != nil {
		return ComponentStatus{Status: "unhealthy", Backend: backend, Error: err.Error()}
	}

	return ComponentStatus{
		Status:  "healthy",
		Backend: backend,
		Latency: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
}
