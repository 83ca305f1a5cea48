// Package server is the HTTP adapter: uploads, publication, rendition
// links, comparisons, document assembly and the editor operations.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
	"github.com/gaurav-prasanna/policypipe/core/pipeline"
	"github.com/gaurav-prasanna/policypipe/internal/logger"
	"github.com/gaurav-prasanna/policypipe/internal/metrics"
)

// PolicyQueries is the read and lifecycle side of the relational store.
type PolicyQueries interface {
	GetPolicy(ctx context.Context, id string) (*core.PolicyDocument, error)
	ListVersions(ctx context.Context, policyID string) ([]core.PolicyVersion, error)
	SetStatus(ctx context.Context, policyID string, next core.Status) error
}

// BlobServer serves signed blob downloads.
type BlobServer interface {
	Verify(path, expires, sig string) error
	Download(ctx context.Context, path string) ([]byte, error)
}

// Config holds the server's collaborators.
type Config struct {
	Addr           string
	Pipeline       *pipeline.Pipeline
	Policies       PolicyQueries
	Blobs          BlobServer
	Log            *logger.Logger
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	addr      string
	pipe      *pipeline.Pipeline
	policies  PolicyQueries
	blobs     BlobServer
	log       *logger.Logger
	zlog      zerolog.Logger
	metrics   *metrics.Metrics
	maxUpload int64
	router    chi.Router
}

// New creates a Server and its routes.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	s := &Server{
		addr:      cfg.Addr,
		pipe:      cfg.Pipeline,
		policies:  cfg.Policies,
		blobs:     cfg.Blobs,
		log:       cfg.Log,
		zlog:      cfg.Log.Component("http"),
		metrics:   cfg.Metrics,
		maxUpload: cfg.MaxUploadBytes,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	r.Get("/blobs/*", s.handleBlob)

	r.Route("/api", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Post("/preview", s.handlePreview)

		r.Post("/policies", s.handlePublish)
		r.Get("/policies/{policyID}", s.handleGetPolicy)
		r.Get("/policies/{policyID}/versions", s.handleListVersions)
		r.Post("/policies/{policyID}/versions", s.handlePublish)
		r.Put("/policies/{policyID}/status", s.handleSetStatus)

		r.Get("/versions/{versionID}/url", s.handleVersionURL)
		r.Post("/compare", s.handleCompare)

		r.Post("/assemble/{kind}", s.handleAssemble)

		r.Post("/editor/import", s.handleEditorImport)
		r.Post("/editor/exec", s.handleEditorExec)
		r.Post("/editor/tables", s.handleEditorTable)
		r.Post("/editor/append-row", s.handleEditorAppendRow)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
