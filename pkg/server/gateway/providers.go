package gateway

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"replicafs/pkg/models"
	"replicafs/pkg/registry"
)

// RedundancyRequest changes the redundancy level and/or the preferred provider.
type RedundancyRequest struct {
	Level     *string `json:"level,omitempty"`
	Preferred *string `json:"preferred,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Healthy   int    `json:"healthy"`
	Required  int    `json:"required"`
	Providers int    `json:"providers"`
}

func (s *Server) listProviders(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.registry.Statuses())
}

func (s *Server) getProvider(ctx echo.Context) error {
	key := ctx.Param("key")
	status, ok := s.registry.Status(key)
	if !ok {
		return s.fail(ctx, "status", fmt.Errorf("%w: %q", registry.ErrUnknownProvider, key))
	}
	return ctx.JSON(http.StatusOK, status)
}

func (s *Server) checkProviders(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.registry.CheckHealth(ctx.Request().Context()))
}

func (s *Server) redundancy() (models.RedundancyResponse, error) {
	req, err := s.registry.Requirement()
	if err != nil {
		return models.RedundancyResponse{}, err
	}
	return models.RedundancyResponse{
		Level:     s.registry.RedundancyLevel().String(),
		Attempt:   req.Attempt,
		Minimum:   req.Minimum,
		Preferred: s.registry.Preferred(),
	}, nil
}

func (s *Server) getRedundancy(ctx echo.Context) error {
	resp, err := s.redundancy()
	if err != nil {
		return s.fail(ctx, "redundancy", err)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (s *Server) setRedundancy(ctx echo.Context) error {
	var req RedundancyRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	if req.Level != nil {
		level, err := s.registry.ParseLevel(*req.Level)
		if err != nil {
			return s.fail(ctx, "redundancy", err)
		}
		if err := s.registry.SetRedundancyLevel(level); err != nil {
			return s.fail(ctx, "redundancy", err)
		}
	}
	if req.Preferred != nil {
		if err := s.registry.SetPreferred(*req.Preferred); err != nil {
			return s.fail(ctx, "redundancy", err)
		}
	}
	return s.getRedundancy(ctx)
}

func (s *Server) healthz(ctx echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	statuses := s.registry.Statuses()
	resp.Providers = len(statuses)
	for _, status := range statuses {
		if status.Healthy && status.Initialized {
			resp.Healthy++
		}
	}
	if req, err := s.registry.Requirement(); err == nil {
		resp.Required = req.Minimum
	}

	if !s.registry.IsInitialized() || resp.Healthy < resp.Required {
		resp.Status = "unavailable"
		return ctx.JSON(http.StatusServiceUnavailable, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}
