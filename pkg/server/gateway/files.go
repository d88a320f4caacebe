package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"replicafs/pkg/log"
	"replicafs/pkg/models"
	"replicafs/pkg/server"
)

func credential(ctx echo.Context) string {
	return ctx.Request().Header.Get(CredentialHeader)
}

// uploadFile handles PUT /files/:name with the object as the raw body.
func (s *Server) uploadFile(ctx echo.Context) error {
	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return server.JSONError(ctx, http.StatusBadRequest, err)
	}
	return s.store(ctx, server.FileParam(ctx), data)
}

// uploadForm handles POST /files with a multipart "file" field.
func (s *Server) uploadForm(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		log.Debug().Err(err).Msg("File parameter is required")
		return server.JSONError(ctx, http.StatusBadRequest, errors.New("file parameter is required"))
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return server.JSONError(ctx, http.StatusInternalServerError, errors.New("failed to open uploaded file"))
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close source file")
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		return server.JSONError(ctx, http.StatusBadRequest, err)
	}

	name := ctx.FormValue("name")
	if name == "" {
		name = file.Filename
	}
	return s.store(ctx, name, data)
}

func (s *Server) store(ctx echo.Context, name string, data []byte) error {
	report, err := s.registry.Store(ctx.Request().Context(), data, name, credential(ctx))
	if err != nil {
		status := statusOf(err)
		log.Warn().Err(err).Str("filename", name).Int("status", status).Msg("Upload failed")
		return ctx.JSON(status, WriteErrorResponse{Error: err.Error(), Report: report})
	}
	return ctx.JSON(http.StatusCreated, report)
}

func (s *Server) downloadFile(ctx echo.Context) error {
	data, err := s.registry.Retrieve(ctx.Request().Context(), server.FileParam(ctx), credential(ctx))
	if err != nil {
		return s.fail(ctx, "retrieve", err)
	}
	return ctx.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

func (s *Server) fileExists(ctx echo.Context) error {
	if !s.registry.Exists(ctx.Request().Context(), server.FileParam(ctx)) {
		return ctx.NoContent(http.StatusNotFound)
	}
	return ctx.NoContent(http.StatusOK)
}

func (s *Server) deleteFile(ctx echo.Context) error {
	report, err := s.registry.Delete(ctx.Request().Context(), server.FileParam(ctx))
	if err != nil {
		return s.fail(ctx, "delete", err)
	}
	return ctx.JSON(http.StatusOK, report)
}

func (s *Server) listFiles(ctx echo.Context) error {
	names, err := s.registry.List(ctx.Request().Context())
	if err != nil {
		return s.fail(ctx, "list", err)
	}
	if names == nil {
		names = []string{}
	}
	return ctx.JSON(http.StatusOK, models.ListResponse{Files: names})
}
