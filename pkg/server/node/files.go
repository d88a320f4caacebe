package node

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
	"replicafs/pkg/server"
)

func (s *Server) filename(ctx echo.Context) (string, error) {
	name := server.FileParam(ctx)
	if err := provider.ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Server) fail(ctx echo.Context, op string, started time.Time, err error) error {
	status := server.ProviderErrorStatus(err)
	outcome := metrics.OutcomeError
	if status == http.StatusNotFound {
		outcome = metrics.OutcomeNotFound
	} else {
		log.Error().Err(err).Str("op", op).Msg("Node operation failed")
	}
	s.metrics.Operation(op, outcome, started)
	return server.JSONError(ctx, status, err)
}

func (s *Server) uploadFile(ctx echo.Context) error {
	started := time.Now()
	name, err := s.filename(ctx)
	if err != nil {
		return s.fail(ctx, "store", started, err)
	}

	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		log.Error().Err(err).Str("filename", name).Msg("Failed to read request body")
		return server.JSONError(ctx, http.StatusBadRequest, err)
	}

	receipt, err := s.provider.Store(ctx.Request().Context(), data, name, "")
	if err != nil {
		return s.fail(ctx, "store", started, err)
	}

	s.bytesIn.Add(uint64(len(data)))
	s.metrics.Bytes("in", len(data))
	s.metrics.Operation("store", metrics.OutcomeOK, started)
	log.Debug().Str("filename", name).Str("ref", receipt.Ref).Int("size", len(data)).Msg("Object stored")
	return ctx.JSON(http.StatusCreated, models.UploadResponse{Name: name, Size: receipt.Size})
}

func (s *Server) downloadFile(ctx echo.Context) error {
	started := time.Now()
	name, err := s.filename(ctx)
	if err != nil {
		return s.fail(ctx, "retrieve", started, err)
	}

	data, err := s.provider.Retrieve(ctx.Request().Context(), name, "")
	if err != nil {
		return s.fail(ctx, "retrieve", started, err)
	}

	s.bytesOut.Add(uint64(len(data)))
	s.metrics.Bytes("out", len(data))
	s.metrics.Operation("retrieve", metrics.OutcomeOK, started)
	return ctx.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

func (s *Server) fileExists(ctx echo.Context) error {
	name, err := s.filename(ctx)
	if err != nil {
		return ctx.NoContent(http.StatusBadRequest)
	}
	if !s.provider.Exists(ctx.Request().Context(), name) {
		return ctx.NoContent(http.StatusNotFound)
	}
	return ctx.NoContent(http.StatusOK)
}

func (s *Server) deleteFile(ctx echo.Context) error {
	started := time.Now()
	name, err := s.filename(ctx)
	if err != nil {
		return s.fail(ctx, "delete", started, err)
	}

	if err := s.provider.Delete(ctx.Request().Context(), name); err != nil {
		return s.fail(ctx, "delete", started, err)
	}

	s.metrics.Operation("delete", metrics.OutcomeOK, started)
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) listFiles(ctx echo.Context) error {
	started := time.Now()
	names, err := s.provider.List(ctx.Request().Context())
	if err != nil {
		return s.fail(ctx, "list", started, err)
	}
	if names == nil {
		names = []string{}
	}

	s.metrics.Operation("list", metrics.OutcomeOK, started)
	return ctx.JSON(http.StatusOK, models.ListResponse{Files: names})
}
