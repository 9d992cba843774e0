// Package rest exposes the vault over JSON/HTTP.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophdrop/internal/logging"
	"github.com/dmitrijs2005/gophdrop/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrop/internal/server/models"
	"github.com/dmitrijs2005/gophdrop/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxBodyBytes caps request bodies; both endpoints take a few short strings.
const maxBodyBytes = 16 << 10

const shutdownTimeout = 15 * time.Second

// Vault is the part of the vault service the handlers call.
type Vault interface {
	RequestUpload(ctx context.Context, in services.UploadRequest) (*models.UploadTicket, error)
	RequestDownload(ctx context.Context, in services.DownloadRequest) (*models.DownloadDescriptor, error)
}

// Pinger reports whether the metadata store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPServer serves the upload and download endpoints.
type HTTPServer struct {
	address        string
	vault          Vault
	health         Pinger
	metrics        metrics.Metrics
	metricsHandler http.Handler
	allowedOrigins []string
	logger         logging.Logger
}

// Option customizes an HTTPServer.
type Option func(*HTTPServer)

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *HTTPServer) { s.metricsHandler = h }
}

// WithAllowedOrigins sets the CORS origins for the POST endpoints.
func WithAllowedOrigins(origins []string) Option {
	return func(s *HTTPServer) { s.allowedOrigins = origins }
}

// NewHTTPServer wires the handlers to v. health backs /healthz.
func NewHTTPServer(address string, l logging.Logger, v Vault, health Pinger, mx metrics.Metrics, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		address:        address,
		vault:          v,
		health:         health,
		metrics:        mx,
		allowedOrigins: []string{"*"},
		logger:         l.With("module", "http_server"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router with all routes and middleware.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(noStore)

	r.Get("/healthz", s.healthz)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
		r.Use(limitBody(maxBodyBytes))
		r.Post("/upload", s.upload)
		r.Post("/download", s.download)
		r.Options("/upload", preflight)
		r.Options("/download", preflight)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
