package registry

import (
	"context"
	"sort"
	"time"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
)

// List returns the union of the filenames known to the healthy providers,
// sorted. Providers that fail to list are recorded and left out; List fails
// only when every healthy provider failed.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	v, err := r.begin()
	if err != nil {
		return nil, err
	}
	defer r.inflight.Done()

	started := time.Now()
	candidates := v.only(r.tracker.Ranked(v.preferred))
	if len(candidates) == 0 {
		r.metrics.Operation("list", metrics.OutcomeError, started)
		return nil, &AllProvidersFailedError{Op: "list"}
	}

	results := fanOut(ctx, candidates, r.callTimeout, func(callCtx context.Context, key string) ([]string, error) {
		return v.providers[key].List(callCtx)
	})

	seen := make(map[string]struct{})
	var failures []ProviderFailure
	for _, result := range results {
		r.record(ctx, result.Provider, "list", result.Err)
		if result.Err != nil {
			failures = append(failures, ProviderFailure{Provider: result.Provider, Err: result.Err})
			continue
		}
		for _, name := range result.Data {
			seen[name] = struct{}{}
		}
	}

	if len(failures) == len(candidates) {
		r.metrics.Operation("list", metrics.OutcomeError, started)
		return nil, &AllProvidersFailedError{Op: "list", Failures: failures}
	}

	files := make([]string, 0, len(seen))
	for name := range seen {
		files = append(files, name)
	}
	sort.Strings(files)

	r.metrics.Operation("list", metrics.OutcomeOK, started)
	log.Debug().Int("files", len(files)).Int("providers", len(candidates)-len(failures)).Msg("Listed")
	return files, nil
}
