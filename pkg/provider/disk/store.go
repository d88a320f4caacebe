package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"replicafs/pkg/log"
	"replicafs/pkg/provider"
)

// Store writes data atomically: it goes to a temporary file first and is
// renamed into place, so readers never see a partial object.
func (p *Provider) Store(ctx context.Context, data []byte, filename, _ string) (provider.Receipt, error) {
	if err := p.ready(); err != nil {
		return provider.Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return provider.Receipt{}, fmt.Errorf("%w: %w", provider.ErrUploadFailed, err)
	}

	objectPath := p.getObjectPath(filename)
	lock := p.getLock(objectPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(objectPath), dirPerm); err != nil {
		log.Error().Err(err).Str("target_dir", filepath.Dir(objectPath)).Msg("Failed to create target directory")
		return provider.Receipt{}, fmt.Errorf("%w: %w", provider.ErrUploadFailed, err)
	}
	if err := p.writeAtomic(objectPath+nameSuffix, []byte(filename)); err != nil {
		return provider.Receipt{}, fmt.Errorf("%w: %w", provider.ErrUploadFailed, err)
	}
	if err := p.writeAtomic(objectPath, data); err != nil {
		return provider.Receipt{}, fmt.Errorf("%w: %w", provider.ErrUploadFailed, err)
	}

	log.Debug().Str("provider", p.name).Str("filename", filename).Str("path", objectPath).Msg("Object written")
	return provider.Receipt{
		Provider:  p.name,
		Ref:       objectPath,
		Size:      int64(len(data)),
		Placement: provider.PlacementRemote,
	}, nil
}

// writeAtomic writes data to a uniquely named temporary file and renames it to target.
func (p *Provider) writeAtomic(target string, data []byte) error {
	tempPath := filepath.Join(p.root, tempDir, "upload-"+uuid.NewString())

	//nolint:gosec // tempPath is built from the storage root and a random id
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		log.Error().Err(err).Str("temp_file", tempPath).Msg("Failed to create temporary file")
		return err
	}

	if _, err := tempFile.Write(data); err != nil {
		p.cleanupTempFile(tempFile)
		log.Error().Err(err).Str("temp_file", tempPath).Msg("Failed to write temporary file")
		return err
	}
	if err := tempFile.Sync(); err != nil {
		p.cleanupTempFile(tempFile)
		return err
	}
	if err := tempFile.Close(); err != nil {
		if rmErr := os.Remove(tempPath); rmErr != nil {
			log.Error().Err(rmErr).Str("temp_file", tempPath).Msg("Failed to remove temporary file")
		}
		return err
	}

	if err := os.Rename(tempPath, target); err != nil {
		if rmErr := os.Remove(tempPath); rmErr != nil {
			log.Error().Err(rmErr).Str("temp_file", tempPath).Msg("Failed to remove temporary file")
		}
		log.Error().Err(err).Str("target_path", target).Msg("Failed to move object into place")
		return err
	}
	return nil
}

// cleanupTempFile closes and removes the temporary file.
func (p *Provider) cleanupTempFile(tempFile *os.File) {
	if tempFile == nil {
		return
	}

	if err := tempFile.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close temporary file")
	}

	if err := os.Remove(tempFile.Name()); err != nil {
		log.Error().Err(err).Str("temp_file", tempFile.Name()).Msg("Failed to remove temporary file")
	}
}
