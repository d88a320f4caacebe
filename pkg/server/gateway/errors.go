package gateway

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"replicafs/pkg/crypto"
	"replicafs/pkg/log"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
	"replicafs/pkg/redundancy"
	"replicafs/pkg/registry"
	"replicafs/pkg/server"
)

// WriteErrorResponse is returned by a failed upload that reached the providers.
type WriteErrorResponse struct {
	Error  string              `json:"error"`
	Report *models.WriteReport `json:"report,omitempty"`
}

// statusOf maps a registry error to an HTTP status.
func statusOf(err error) int {
	var allFailed *registry.AllProvidersFailedError
	switch {
	case errors.Is(err, provider.ErrInvalidFilename),
		errors.Is(err, crypto.ErrEmptyCredential),
		errors.Is(err, redundancy.ErrUnknownLevel):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrNotInitialized),
		errors.Is(err, registry.ErrShutdown),
		errors.Is(err, registry.ErrInsufficientProviders):
		return http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrRedundancyNotMet):
		return http.StatusBadGateway
	case errors.As(err, &allFailed) && allFailed.NotFound():
		return http.StatusNotFound
	case errors.Is(err, provider.ErrDecryptionFailed):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrAllProvidersFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(ctx echo.Context, op string, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Str("request_id", requestID(ctx)).Msg("Gateway request failed")
	} else {
		log.Debug().Err(err).Str("op", op).Int("status", status).Msg("Gateway request rejected")
	}
	return server.JSONError(ctx, status, err)
}

func requestID(ctx echo.Context) string {
	return ctx.Response().Header().Get(echo.HeaderXRequestID)
}
