package registry

import (
	"context"
	"time"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/provider"
)

// Retrieve reads filename from the healthy providers in descending score
// order and returns the first successful result. A failed provider is
// recorded and skipped; nothing ranked below a successful provider is called.
func (r *Registry) Retrieve(ctx context.Context, filename, credential string) ([]byte, error) {
	if err := provider.ValidateFilename(filename); err != nil {
		return nil, err
	}

	v, err := r.begin()
	if err != nil {
		return nil, err
	}
	defer r.inflight.Done()

	started := time.Now()
	candidates := v.only(r.tracker.Ranked(v.preferred))

	var failures []ProviderFailure
	for _, key := range candidates {
		if ctx.Err() != nil {
			failures = append(failures, ProviderFailure{Provider: key, Err: ctx.Err()})
			break
		}

		result := invoke(ctx, key, r.callTimeout, func(callCtx context.Context, key string) ([]byte, error) {
			return v.providers[key].Retrieve(callCtx, filename, credential)
		})
		r.record(ctx, key, "retrieve", result.Err)

		if result.Err == nil {
			r.metrics.Operation("retrieve", metrics.OutcomeOK, started)
			r.metrics.Bytes("out", len(result.Data))
			log.Debug().
				Str("filename", filename).
				Str("provider", key).
				Int("skipped", len(failures)).
				Dur("elapsed", result.Elapsed).
				Msg("Retrieved")
			return result.Data, nil
		}

		failures = append(failures, ProviderFailure{Provider: key, Err: result.Err})
		log.Debug().Err(result.Err).Str("provider", key).Str("filename", filename).
			Msg("Retrieve failed on provider, trying next")
	}

	failed := &AllProvidersFailedError{Op: "retrieve", Failures: failures}
	outcome := metrics.OutcomeError
	if failed.NotFound() {
		outcome = metrics.OutcomeNotFound
	}
	r.metrics.Operation("retrieve", outcome, started)
	log.Warn().
		Str("filename", filename).
		Int("candidates", len(candidates)).
		Bool("not_found", failed.NotFound()).
		Msg("Retrieve failed on every provider")
	return nil, failed
}

// Exists reports whether any healthy provider holds filename. It never
// fails: an uninitialized registry and provider errors both read as false.
// Existence probes do not move health scores.
func (r *Registry) Exists(ctx context.Context, filename string) bool {
	if provider.ValidateFilename(filename) != nil {
		return false
	}

	v, err := r.begin()
	if err != nil {
		return false
	}
	defer r.inflight.Done()

	for _, key := range v.only(r.tracker.Ranked(v.preferred)) {
		if ctx.Err() != nil {
			return false
		}
		result := invoke(ctx, key, r.callTimeout, func(callCtx context.Context, key string) (bool, error) {
			return v.providers[key].Exists(callCtx, filename), nil
		})
		r.metrics.ProviderCall(key, "exists", outcomeOf(result.Err))
		if result.Err == nil && result.Data {
			return true
		}
	}
	return false
}
