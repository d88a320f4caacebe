// Package metrics exposes operation and provider counters in Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomeFallback = "fallback"
)

// Recorder owns one metric set. A nil *Recorder is valid and records nothing.
type Recorder struct {
	set *vm.Set
}

// NewRecorder creates a recorder with its own metric set.
func NewRecorder() *Recorder {
	return &Recorder{set: vm.NewSet()}
}

// Operation counts a completed registry operation and its latency.
func (r *Recorder) Operation(op, outcome string, started time.Time) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter(fmt.Sprintf(`replicafs_operations_total{op=%q,outcome=%q}`, op, outcome)).Inc()
	r.set.GetOrCreateHistogram(fmt.Sprintf(`replicafs_operation_duration_seconds{op=%q}`, op)).
		Update(time.Since(started).Seconds())
}

// ProviderCall counts one call into a provider.
func (r *Recorder) ProviderCall(providerKey, op, outcome string) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter(fmt.Sprintf(`replicafs_provider_calls_total{provider=%q,op=%q,outcome=%q}`,
		providerKey, op, outcome)).Inc()
}

// HealthCheck counts one periodic health check cycle.
func (r *Recorder) HealthCheck(healthy, unhealthy int) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter(`replicafs_health_check_cycles_total`).Inc()
	r.set.GetOrCreateCounter(`replicafs_health_check_probes_total{outcome="ok"}`).Add(healthy)
	r.set.GetOrCreateCounter(`replicafs_health_check_probes_total{outcome="error"}`).Add(unhealthy)
}

// Bytes counts payload bytes moved in direction ("in" or "out").
func (r *Recorder) Bytes(direction string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.set.GetOrCreateCounter(fmt.Sprintf(`replicafs_payload_bytes_total{direction=%q}`, direction)).Add(n)
}

// HealthScore registers a gauge reporting score() for providerKey.
func (r *Recorder) HealthScore(providerKey string, score func() float64) {
	if r == nil {
		return
	}
	r.set.GetOrCreateGauge(fmt.Sprintf(`replicafs_provider_health_score{provider=%q}`, providerKey), score)
}

// WritePrometheus writes every metric of the set.
func (r *Recorder) WritePrometheus(w io.Writer) {
	if r == nil {
		return
	}
	r.set.WritePrometheus(w)
}
