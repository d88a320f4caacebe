// Package node serves one local provider over HTTP so a gateway can use it
// through the remote provider.
package node

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/provider"
	"replicafs/pkg/server"
)

// Config configures a storage node server.
type Config struct {
	Name            string
	Version         string
	Provider        provider.Provider
	Metrics         *metrics.Recorder
	BodyLimit       string
	ShutdownTimeout time.Duration
	// FlushOnShutdown runs sync(1) after the server stopped.
	FlushOnShutdown bool
}

// Server is a storage node.
type Server struct {
	name            string
	version         string
	provider        provider.Provider
	metrics         *metrics.Recorder
	shutdownTimeout time.Duration
	flushOnShutdown bool
	started         time.Time
	bytesIn         atomic.Uint64
	bytesOut        atomic.Uint64
	echo            *echo.Echo
}

// New creates a node server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		name:            cfg.Name,
		version:         cfg.Version,
		provider:        cfg.Provider,
		metrics:         cfg.Metrics,
		shutdownTimeout: cfg.ShutdownTimeout,
		flushOnShutdown: cfg.FlushOnShutdown,
		started:         time.Now(),
		echo:            server.NewEcho(cfg.BodyLimit),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler of the node.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start initializes the provider and serves addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	if err := s.provider.Initialize(ctx); err != nil {
		return err
	}

	log.Info().
		Str("addr", addr).
		Str("node", s.name).
		Str("provider", s.provider.Name()).
		Str("version", s.version).
		Msg("Starting storage node")

	err := server.Run(ctx, s.echo, addr, s.shutdownTimeout)
	if s.flushOnShutdown {
		server.FlushFilesystem()
	}
	log.Info().Msg("Shutdown complete")
	return err
}

func (s *Server) setupRoutes() {
	s.echo.GET("/node/info", s.getNodeInfo)
	s.echo.GET("/files", s.listFiles)
	s.echo.PUT("/file/:name", s.uploadFile)
	s.echo.GET("/file/:name", s.downloadFile)
	s.echo.HEAD("/file/:name", s.fileExists)
	s.echo.DELETE("/file/:name", s.deleteFile)
	s.echo.GET("/metrics", server.MetricsHandler(s.metrics))
}
