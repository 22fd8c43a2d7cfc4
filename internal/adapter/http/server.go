package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultWriteTimeout = 10 * time.Second

// Catalog is the read side: canonical tables from the active store.
type Catalog interface {
	Load(ctx context.Context) ([]domain.Submission, error)
	FilteredTable(ctx context.Context, q domain.Query) ([]domain.Submission, error)
	Source() string
	CheckReadiness(ctx context.Context) error
}

// Submitter accepts new submissions.
type Submitter interface {
	Submit(ctx context.Context, in domain.SubmissionInput) (domain.Submission, error)
}

// Server exposes the submission API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	catalog    Catalog
	writer     Submitter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api routes and /healthz,
// /readyz, and /metrics.
func NewServer(addr string, catalog Catalog, writer Submitter, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      requestLogger(logger)(mux),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		catalog: catalog,
		writer:  writer,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /api/submissions", s.handleTable)
	mux.HandleFunc("GET /api/submissions/recent", s.handleRecent)
	mux.HandleFunc("POST /api/submissions", s.handleSubmit)
	mux.HandleFunc("GET /api/area", s.handleArea)
	mux.HandleFunc("GET /api/timeseries", s.handleTimeseries)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(catalog))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// SetWriteTimeout raises the response deadline. Synchronous detection on
// POST /api/submissions can take as long as the detector timeout.
func (s *Server) SetWriteTimeout(d time.Duration) {
	if d > s.httpServer.WriteTimeout {
		s.httpServer.WriteTimeout = d
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
