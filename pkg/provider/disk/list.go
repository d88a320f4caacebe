package disk

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"replicafs/pkg/log"
	"replicafs/pkg/provider"
)

// List walks the object tree and returns the stored filenames.
func (p *Provider) List(ctx context.Context) ([]string, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var names []string
	err := filepath.WalkDir(filepath.Join(p.root, objectsDir), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || !strings.HasSuffix(path, nameSuffix) {
			return nil
		}
		// Only report names whose object made it into place.
		if _, statErr := os.Stat(strings.TrimSuffix(path, nameSuffix)); statErr != nil {
			return nil
		}

		//nolint:gosec // path comes from walking the storage root
		name, readErr := os.ReadFile(path)
		if readErr != nil {
			log.Warn().Err(readErr).Str("path", path).Msg("Failed to read name file")
			return nil
		}
		names = append(names, string(name))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrListFailed, err)
	}

	sort.Strings(names)
	return names, nil
}

// Stats counts stored objects and their total size.
func (p *Provider) Stats() (files int, bytes int64) {
	_ = filepath.WalkDir(filepath.Join(p.root, objectsDir), func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || strings.HasSuffix(path, nameSuffix) {
			return nil
		}
		if info, infoErr := entry.Info(); infoErr == nil {
			files++
			bytes += info.Size()
		}
		return nil
	})
	return files, bytes
}
