package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"replicafs/pkg/log"
	"replicafs/pkg/provider"
)

// Delete removes the object and its name file.
func (p *Provider) Delete(ctx context.Context, filename string) error {
	if err := p.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrDeleteFailed, err)
	}

	objectPath := p.getObjectPath(filename)
	lock := p.getLock(objectPath)
	lock.Lock()
	defer lock.Unlock()

	// Let os.Remove tell us if the object doesn't exist.
	if err := os.Remove(objectPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("provider", p.name).Str("filename", filename).Msg("Object not found for delete")
			return provider.FileNotFoundError{Filename: filename}
		}
		log.Error().Err(err).Str("path", objectPath).Msg("Failed to delete object")
		return fmt.Errorf("%w: %w", provider.ErrDeleteFailed, err)
	}
	if err := os.Remove(objectPath + nameSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", objectPath+nameSuffix).Msg("Failed to delete name file")
	}

	log.Debug().Str("provider", p.name).Str("filename", filename).Msg("Object deleted")
	return nil
}
