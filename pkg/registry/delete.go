package registry

import (
	"context"
	"time"

	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
)

// Delete removes filename from every participating provider, healthy or not,
// so that copies written before a provider went down do not linger. A
// provider that does not hold the file counts as done. Delete fails only
// when every provider returned a real error.
func (r *Registry) Delete(ctx context.Context, filename string) (*models.DeleteReport, error) {
	if err := provider.ValidateFilename(filename); err != nil {
		return nil, err
	}

	v, err := r.begin()
	if err != nil {
		return nil, err
	}
	defer r.inflight.Done()

	started := time.Now()
	candidates := v.only(r.tracker.Ordered(v.preferred))
	if len(candidates) == 0 {
		r.metrics.Operation("delete", metrics.OutcomeError, started)
		return nil, &AllProvidersFailedError{Op: "delete"}
	}

	results := fanOut(ctx, candidates, r.callTimeout, func(callCtx context.Context, key string) (struct{}, error) {
		return struct{}{}, v.providers[key].Delete(callCtx, filename)
	})

	report := &models.DeleteReport{Filename: filename}
	var failures []ProviderFailure
	for _, result := range results {
		switch {
		case result.Err == nil:
			report.Deleted = append(report.Deleted, result.Provider)
			r.record(ctx, result.Provider, "delete", nil)
		case provider.IsNotFound(result.Err):
			report.Absent = append(report.Absent, result.Provider)
			r.record(ctx, result.Provider, "delete", nil)
		default:
			failures = append(failures, ProviderFailure{Provider: result.Provider, Err: result.Err})
			r.record(ctx, result.Provider, "delete", result.Err)
		}
	}
	report.Failures = failureModels(failures)

	if len(failures) == len(candidates) {
		r.metrics.Operation("delete", metrics.OutcomeError, started)
		log.Error().Str("filename", filename).Int("failed", len(failures)).Msg("Delete failed on every provider")
		return report, &AllProvidersFailedError{Op: "delete", Failures: failures}
	}

	r.metrics.Operation("delete", metrics.OutcomeOK, started)
	log.Info().
		Str("filename", filename).
		Strs("deleted", report.Deleted).
		Int("absent", len(report.Absent)).
		Int("failed", len(failures)).
		Msg("Deleted")
	return report, nil
}
