// Package provider defines the contract every storage backend adapter
// implements, together with the error taxonomy adapters report through.
package provider

import (
	"context"
)

// Placement tells where an adapter actually put a stored object.
type Placement int

const (
	// PlacementRemote means the object reached the adapter's real backend.
	PlacementRemote Placement = iota + 1
	// PlacementLocalFallback means the backend was unreachable and the adapter
	// kept the object in its local fallback area instead.
	PlacementLocalFallback
)

func (p Placement) String() string {
	switch p {
	case PlacementRemote:
		return "remote"
	case PlacementLocalFallback:
		return "local-fallback"
	default:
		return "unknown"
	}
}

// Receipt describes one successful Store call.
type Receipt struct {
	Provider  string
	Ref       string
	Size      int64
	Placement Placement
}

// Provider is implemented by every storage backend adapter.
type Provider interface {
	// Name returns the adapter kind, e.g. "disk" or "remote".
	Name() string

	// Initialize establishes a usable session. It fails with ErrConfiguration
	// when the backend cannot be set up and must be safe to call again.
	Initialize(ctx context.Context) error

	// Store writes data under filename, replacing any previous object.
	Store(ctx context.Context, data []byte, filename, credential string) (Receipt, error)

	// Retrieve returns the object stored under filename. A missing object is
	// reported as FileNotFoundError.
	Retrieve(ctx context.Context, filename, credential string) ([]byte, error)

	// Delete removes filename, reporting FileNotFoundError when it is absent.
	Delete(ctx context.Context, filename string) error

	// List returns the known filenames in no particular order.
	List(ctx context.Context) ([]string, error)

	// Exists reports whether filename is present. It never fails; any error
	// is reported as false.
	Exists(ctx context.Context, filename string) bool

	// IsConfigured is a cheap local check that the adapter looks usable.
	IsConfigured() bool
}

// Pinger is implemented by adapters that can verify reachability with a
// minimal round trip to their backend. The health checker prefers it over
// IsConfigured.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe runs the lightweight usability check for p.
func Probe(ctx context.Context, p Provider) error {
	if pinger, ok := p.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	if !p.IsConfigured() {
		return ErrNotConfigured
	}
	return nil
}
