package registry

import (
	"context"
	"fmt"
	"time"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
)

// Store writes data to the best ranked providers and succeeds once the
// minimum of the active redundancy level is reached.
//
// The write goes to the first Attempt providers of the health order. Every
// selected call runs to completion, bounded by the call timeout, so each
// outcome reaches the health tracker. Writes that succeeded are kept even
// when the quorum is missed.
func (r *Registry) Store(ctx context.Context, data []byte, filename, credential string) (*models.WriteReport, error) {
	if err := provider.ValidateFilename(filename); err != nil {
		return nil, err
	}

	v, err := r.begin()
	if err != nil {
		return nil, err
	}
	defer r.inflight.Done()

	started := time.Now()
	req, err := r.policy.Requirement(v.level, v.registered)
	if err != nil {
		return nil, err
	}

	healthy := v.only(r.tracker.Ranked(v.preferred))
	if len(healthy) < req.Minimum {
		r.metrics.Operation("store", "insufficient", started)
		log.Warn().
			Str("filename", filename).
			Int("required", req.Minimum).
			Int("available", len(healthy)).
			Msg("Store rejected before dispatch")
		return nil, &InsufficientProvidersError{Required: req.Minimum, Available: len(healthy)}
	}

	candidates := v.only(r.tracker.Ordered(v.preferred))
	if len(candidates) > req.Attempt {
		candidates = candidates[:req.Attempt]
	}

	log.Debug().
		Str("filename", filename).
		Int("size", len(data)).
		Strs("candidates", candidates).
		Int("minimum", req.Minimum).
		Msg("Dispatching store")

	results := fanOut(ctx, candidates, r.callTimeout, func(callCtx context.Context, key string) (provider.Receipt, error) {
		return v.providers[key].Store(callCtx, data, filename, credential)
	})

	report := &models.WriteReport{
		Filename:  filename,
		Level:     v.level.String(),
		Required:  req.Minimum,
		Attempted: candidates,
	}
	var failures []ProviderFailure
	for _, result := range results {
		err := result.Err
		if err == nil && result.Data.Placement == provider.PlacementLocalFallback {
			report.Fallbacks = append(report.Fallbacks, result.Provider)
			err = fmt.Errorf("%w: %s", ErrLocalFallback, result.Data.Ref)
		}
		r.record(ctx, result.Provider, "store", err)

		if err != nil {
			failures = append(failures, ProviderFailure{Provider: result.Provider, Err: err})
			log.Debug().Err(err).Str("provider", result.Provider).Str("filename", filename).
				Dur("elapsed", result.Elapsed).Msg("Store on provider failed")
			continue
		}
		report.Succeeded = append(report.Succeeded, result.Provider)
	}
	report.Failures = failureModels(failures)

	if len(report.Succeeded) < req.Minimum {
		r.metrics.Operation("store", metrics.OutcomeError, started)
		log.Error().
			Str("filename", filename).
			Int("achieved", len(report.Succeeded)).
			Int("required", req.Minimum).
			Msg("Store did not reach redundancy")
		return report, &RedundancyNotMetError{
			Achieved: len(report.Succeeded),
			Required: req.Minimum,
			Failures: failures,
		}
	}

	r.metrics.Operation("store", metrics.OutcomeOK, started)
	r.metrics.Bytes("in", len(data))
	log.Info().
		Str("filename", filename).
		Int("size", len(data)).
		Strs("providers", report.Succeeded).
		Int("failed", len(failures)).
		Dur("elapsed", time.Since(started)).
		Msg("Stored")
	return report, nil
}
