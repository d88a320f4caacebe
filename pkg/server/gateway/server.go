// Package gateway exposes a provider registry over HTTP.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/registry"
	"replicafs/pkg/server"
)

// CredentialHeader carries the credential used to seal and open payloads.
const CredentialHeader = "X-Replicafs-Credential"

// Config configures a gateway server.
type Config struct {
	Registry        *registry.Registry
	Metrics         *metrics.Recorder
	Version         string
	BodyLimit       string
	ShutdownTimeout time.Duration
}

// Server is the replicafs gateway.
type Server struct {
	registry        *registry.Registry
	metrics         *metrics.Recorder
	version         string
	shutdownTimeout time.Duration
	echo            *echo.Echo
}

// New creates a gateway and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		registry:        cfg.Registry,
		metrics:         cfg.Metrics,
		version:         cfg.Version,
		shutdownTimeout: cfg.ShutdownTimeout,
		echo:            server.NewEcho(cfg.BodyLimit),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler of the gateway.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start initializes every registered provider, serves addr until ctx is done
// and then shuts the registry down.
func (s *Server) Start(ctx context.Context, addr string) error {
	if err := s.registry.InitializeAll(ctx); err != nil {
		return err
	}

	log.Info().
		Str("addr", addr).
		Str("version", s.version).
		Strs("providers", s.registry.Keys()).
		Str("level", s.registry.RedundancyLevel().String()).
		Msg("Starting replicafs gateway")

	runErr := server.Run(ctx, s.echo, addr, s.shutdownTimeout)

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = server.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.registry.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Registry shutdown failed")
		if runErr == nil {
			runErr = err
		}
	}
	log.Info().Msg("Shutdown complete")
	return runErr
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders:  []string{echo.HeaderContentType, CredentialHeader},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))

	s.echo.GET("/healthz", s.healthz)
	s.echo.GET("/metrics", server.MetricsHandler(s.metrics))

	s.echo.GET("/files", s.listFiles)
	s.echo.POST("/files", s.uploadForm)
	s.echo.PUT("/files/:name", s.uploadFile)
	s.echo.GET("/files/:name", s.downloadFile)
	s.echo.HEAD("/files/:name", s.fileExists)
	s.echo.DELETE("/files/:name", s.deleteFile)

	s.echo.GET("/providers", s.listProviders)
	s.echo.GET("/providers/:key", s.getProvider)
	s.echo.POST("/providers/check", s.checkProviders)

	s.echo.GET("/redundancy", s.getRedundancy)
	s.echo.PUT("/redundancy", s.setRedundancy)
}
