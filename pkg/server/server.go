// Package server holds what the storage node and the gateway HTTP servers share:
// echo setup, graceful shutdown, error bodies and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/exec"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/provider"
)

const (
	// DefaultShutdownTimeout bounds a graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultBodyLimit caps request bodies.
	DefaultBodyLimit = "1G"

	syncTimeout = 30 * time.Second
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewEcho creates an echo instance with the middleware both servers use.
func NewEcho(bodyLimit string) *echo.Echo {
	if bodyLimit == "" {
		bodyLimit = DefaultBodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Responses are never gzipped: clients must get the stored bytes back unchanged.
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${id} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	return e
}

// Run serves e on addr until ctx is done, then shuts it down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("Server startup failed")
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}
	log.Info().Msg("Server gracefully stopped")
	return nil
}

// FlushFilesystem runs sync(1) so buffered writes reach the disk.
func FlushFilesystem() {
	log.Info().Msg("Executing sync command...")
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := exec.CommandContext(ctx, "sync").Run(); err != nil {
		log.Warn().Err(err).Msg("Sync command failed")
		return
	}
	log.Info().Msg("Filesystem buffers flushed successfully")
}

// FileParam returns the unescaped :name path parameter. Echo routes on the raw
// path when the request carries escaped separators, so the value may still be escaped.
func FileParam(c echo.Context) string {
	name := c.Param("name")
	if c.Request().URL.RawPath == "" {
		return name
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

// JSONError writes status with an ErrorResponse body.
func JSONError(c echo.Context, status int, err error) error {
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

// ProviderErrorStatus maps a provider error to an HTTP status.
func ProviderErrorStatus(err error) int {
	switch {
	case errors.Is(err, provider.ErrInvalidFilename):
		return http.StatusBadRequest
	case provider.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrDecryptionFailed):
		return http.StatusForbidden
	case errors.Is(err, provider.ErrNotInitialized), errors.Is(err, provider.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// MetricsHandler serves rec in Prometheus text format.
func MetricsHandler(rec *metrics.Recorder) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/plain; version=0.0.4")
		c.Response().WriteHeader(http.StatusOK)
		rec.WritePrometheus(c.Response())
		return nil
	}
}
