package node

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"replicafs/pkg/log"
	"replicafs/pkg/models"
	"replicafs/pkg/server"
)

type stats interface {
	Stats() (files int, bytes int64)
}

type contextStats interface {
	Stats(ctx context.Context) (files int, bytes int64, err error)
}

type diskUsage interface {
	DiskUsage() (*models.DiskUsage, error)
}

// getNodeInfo handles the GET /node/info endpoint.
func (s *Server) getNodeInfo(ctx echo.Context) error {
	info, err := s.collectNodeInfo(ctx.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect node information")
		return server.JSONError(ctx, http.StatusInternalServerError, fmt.Errorf("failed to collect node information: %w", err))
	}
	return ctx.JSON(http.StatusOK, info)
}

func (s *Server) collectNodeInfo(ctx context.Context) (*models.NodeInfo, error) {
	uptime := time.Since(s.started)
	info := &models.NodeInfo{
		Provider:      s.provider.Name(),
		Version:       s.version,
		Uptime:        formatUptime(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		Storage: models.StorageInfo{
			BytesIn:  s.bytesIn.Load(),
			BytesOut: s.bytesOut.Load(),
		},
	}

	var size int64
	switch p := s.provider.(type) {
	case stats:
		info.Storage.Files, size = p.Stats()
	case contextStats:
		files, bytes, err := p.Stats(ctx)
		if err != nil {
			return nil, err
		}
		info.Storage.Files, size = files, bytes
	}
	info.Storage.HumanSize = humanize.IBytes(uint64(max(size, 0)))

	if p, ok := s.provider.(diskUsage); ok {
		usage, err := p.DiskUsage()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read disk usage")
		} else {
			info.Disk = usage
		}
	}
	return info, nil
}

// formatUptime converts an uptime to a human-readable string.
func formatUptime(uptime time.Duration) string {
	seconds := int64(uptime.Seconds())
	const (
		secondsPerMinute = 60
		secondsPerHour   = 3600
		secondsPerDay    = 86400
	)

	days := seconds / secondsPerDay
	hours := (seconds % secondsPerDay) / secondsPerHour
	minutes := (seconds % secondsPerHour) / secondsPerMinute

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm %ds", minutes, seconds%secondsPerMinute)
	}
}
