package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorderWritesPrometheusText(t *testing.T) {
	r := NewRecorder()
	r.Operation("store", OutcomeOK, time.Now())
	r.Operation("store", OutcomeOK, time.Now())
	r.ProviderCall("disk-a", "store", OutcomeError)
	r.HealthCheck(3, 1)
	r.Bytes("in", 42)
	r.HealthScore("disk-a", func() float64 { return 0.8 })

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `replicafs_operations_total{op="store",outcome="ok"} 2`)
	assert.Contains(t, out, `replicafs_provider_calls_total{provider="disk-a",op="store",outcome="error"} 1`)
	assert.Contains(t, out, `replicafs_health_check_cycles_total 1`)
	assert.Contains(t, out, `replicafs_health_check_probes_total{outcome="ok"} 3`)
	assert.Contains(t, out, `replicafs_payload_bytes_total{direction="in"} 42`)
	assert.Contains(t, out, `replicafs_provider_health_score{provider="disk-a"} 0.8`)
	assert.Contains(t, out, `replicafs_operation_duration_seconds`)
}

func TestRecordersAreIndependent(t *testing.T) {
	first, second := NewRecorder(), NewRecorder()
	first.ProviderCall("a", "retrieve", OutcomeOK)

	var buf bytes.Buffer
	second.WritePrometheus(&buf)
	assert.NotContains(t, buf.String(), "replicafs_provider_calls_total")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Operation("store", OutcomeOK, time.Now())
		r.ProviderCall("a", "store", OutcomeOK)
		r.HealthCheck(1, 0)
		r.Bytes("out", 1)
		r.HealthScore("a", func() float64 { return 1 })
		r.WritePrometheus(&bytes.Buffer{})
	})
}
