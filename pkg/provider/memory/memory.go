// Package memory implements a process-local provider backed by a concurrent map.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"replicafs/pkg/log"
	"replicafs/pkg/provider"
)

// Provider keeps objects in memory. Contents are lost on restart.
type Provider struct {
	name        string
	objects     *xsync.MapOf[string, []byte]
	initialized atomic.Bool
}

// New creates an empty in-memory provider.
func New(name string) *Provider {
	return &Provider{
		name:    name,
		objects: xsync.NewMapOf[string, []byte](),
	}
}

func (p *Provider) Name() string {
	return "memory"
}

func (p *Provider) Initialize(ctx context.Context) error {
	p.initialized.Store(true)
	log.Debug().Str("provider", p.name).Msg("Memory provider ready")
	return ctx.Err()
}

func (p *Provider) Store(ctx context.Context, data []byte, filename, _ string) (provider.Receipt, error) {
	if !p.initialized.Load() {
		return provider.Receipt{}, provider.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return provider.Receipt{}, fmt.Errorf("%w: %w", provider.ErrUploadFailed, err)
	}

	p.objects.Store(filename, append([]byte(nil), data...))
	return provider.Receipt{
		Provider:  p.name,
		Ref:       "memory://" + p.name + "/" + filename,
		Size:      int64(len(data)),
		Placement: provider.PlacementRemote,
	}, nil
}

func (p *Provider) Retrieve(ctx context.Context, filename, _ string) ([]byte, error) {
	if !p.initialized.Load() {
		return nil, provider.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrDownloadFailed, err)
	}

	data, ok := p.objects.Load(filename)
	if !ok {
		return nil, provider.FileNotFoundError{Filename: filename}
	}
	return append([]byte(nil), data...), nil
}

func (p *Provider) Delete(ctx context.Context, filename string) error {
	if !p.initialized.Load() {
		return provider.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrDeleteFailed, err)
	}

	if _, ok := p.objects.LoadAndDelete(filename); !ok {
		return provider.FileNotFoundError{Filename: filename}
	}
	return nil
}

func (p *Provider) List(ctx context.Context) ([]string, error) {
	if !p.initialized.Load() {
		return nil, provider.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrListFailed, err)
	}

	names := make([]string, 0, p.objects.Size())
	p.objects.Range(func(name string, _ []byte) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names, nil
}

func (p *Provider) Exists(_ context.Context, filename string) bool {
	if !p.initialized.Load() {
		return false
	}
	_, ok := p.objects.Load(filename)
	return ok
}

func (p *Provider) IsConfigured() bool {
	return p.initialized.Load()
}

// Stats returns the number of objects and their total size.
func (p *Provider) Stats() (files int, bytes int64) {
	p.objects.Range(func(_ string, data []byte) bool {
		files++
		bytes += int64(len(data))
		return true
	})
	return files, bytes
}
