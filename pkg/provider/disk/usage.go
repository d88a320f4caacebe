package disk

import (
	"syscall"

	"replicafs/pkg/log"
	"replicafs/pkg/models"
)

// DiskUsage returns space information for the filesystem holding the root.
func (p *Provider) DiskUsage() (*models.DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(p.root, &stat); err != nil {
		log.Error().Str("root", p.root).Err(err).Msg("Failed to get stats for storage root")
		return nil, err
	}

	// Bsize is int64 on some systems, so we handle it safely
	var bsize uint64
	if stat.Bsize > 0 {
		bsize = uint64(stat.Bsize) //nolint:gosec // Safe conversion after checking
	}

	totalSpace := stat.Blocks * bsize
	spaceAvailable := stat.Bavail * bsize
	spaceUsed := totalSpace - stat.Bfree*bsize

	return &models.DiskUsage{
		SpaceUsed:      int64(spaceUsed),      //nolint:gosec // Safe in practice for disk sizes
		SpaceAvailable: int64(spaceAvailable), //nolint:gosec // Safe in practice for disk sizes
		TotalSpace:     int64(totalSpace),     //nolint:gosec // Safe in practice for disk sizes
	}, nil
}
