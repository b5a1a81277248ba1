// Package httpapi exposes the Vault over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/metrics"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Vault is the operation surface the handlers call.
type Vault interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (*models.File, error)
	Delete(ctx context.Context, id, ownerID string) error
	Get(ctx context.Context, id, ownerID string) (*models.File, error)
	Open(ctx context.Context, id, ownerID string) (*models.File, io.ReadCloser, error)
	List(ctx context.Context, ownerID string, filter models.FileFilter) ([]*models.File, error)
	Stats(ctx context.Context, ownerID string) (*models.Stats, error)
	DistinctContentTypes(ctx context.Context, ownerID string) ([]string, error)
}

// Admitter decides whether an owner may call an endpoint now.
type Admitter interface {
	Admit(ownerID, endpoint string) error
}

type HTTPServer struct {
	address  string
	vault    Vault
	limiter  Admitter
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	timeout  time.Duration
	logger   logging.Logger
}

func NewHTTPServer(address string, l logging.Logger, v Vault, limiter Admitter, mc *metrics.Collector,
	gatherer prometheus.Gatherer, timeout time.Duration) *HTTPServer {
	return &HTTPServer{
		address:  address,
		vault:    v,
		limiter:  limiter,
		metrics:  mc,
		gatherer: gatherer,
		timeout:  timeout,
		logger:   l.With("module", "http_server"),
	}
}

// Handler builds the router.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet).Name("healthz")

	api := r.PathPrefix("/api/files").Subrouter()
	api.Use(s.requireOwner, s.rateLimit, s.deadline)

	api.HandleFunc("/", s.listFiles).Methods(http.MethodGet).Name("list")
	api.HandleFunc("/", s.uploadFile).Methods(http.MethodPost).Name("upload")
	api.HandleFunc("/storage_stats/", s.storageStats).Methods(http.MethodGet).Name("storage_stats")
	api.HandleFunc("/file_types/", s.fileTypes).Methods(http.MethodGet).Name("file_types")
	api.HandleFunc("/{id}/download/", s.downloadFile).Methods(http.MethodGet).Name("download")
	api.HandleFunc("/{id}/", s.getFile).Methods(http.MethodGet).Name("retrieve")
	api.HandleFunc("/{id}/", s.deleteFile).Methods(http.MethodDelete).Name("destroy")

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
