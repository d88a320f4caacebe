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

// Retrieve reads the object stored under filename.
func (p *Provider) Retrieve(ctx context.Context, filename, _ string) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrDownloadFailed, err)
	}

	objectPath := p.getObjectPath(filename)
	lock := p.getLock(objectPath)
	lock.RLock()
	defer lock.RUnlock()

	//nolint:gosec // objectPath is derived from a hash, not user input
	data, err := os.ReadFile(objectPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("provider", p.name).Str("filename", filename).Msg("Object not found")
		return nil, provider.FileNotFoundError{Filename: filename}
	}
	if err != nil {
		log.Error().Err(err).Str("path", objectPath).Msg("Failed to read object")
		return nil, fmt.Errorf("%w: %w", provider.ErrDownloadFailed, err)
	}
	return data, nil
}

// Exists checks whether an object is stored under filename.
func (p *Provider) Exists(_ context.Context, filename string) bool {
	if p.ready() != nil {
		return false
	}
	info, err := os.Stat(p.getObjectPath(filename))
	return err == nil && info.Mode().IsRegular()
}
