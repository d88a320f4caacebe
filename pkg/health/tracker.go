// Package health keeps the rolling health signal of every registered provider
// and answers ranking queries over it.
//
// Scores move in fixed steps: a success adds 0.1 and a failure subtracts 0.2,
// clamped to [0, 1]. Internally the score is held in tenths so repeated
// steps never accumulate floating point drift.
package health

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"replicafs/pkg/models"
)

const (
	maxTenths     = 10
	successTenths = 1
	failureTenths = 2
)

type entry struct {
	key         string
	seq         int
	healthy     bool
	tenths      int
	lastChecked time.Time
	consecFails int
	lastError   string
	initialized bool
}

func (e *entry) status() models.ProviderStatus {
	return models.ProviderStatus{
		Key:                 e.key,
		Healthy:             e.healthy,
		Score:               float64(e.tenths) / maxTenths,
		LastChecked:         e.lastChecked,
		ConsecutiveFailures: e.consecFails,
		LastError:           e.lastError,
		Initialized:         e.initialized,
	}
}

// Tracker holds per-provider health state. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []*entry
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Add creates the status for key with score 1.0 and healthy=true. Adding an
// existing key is a no-op so the registration order stays stable.
func (t *Tracker) Add(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[key]; exists {
		return
	}
	e := &entry{key: key, seq: len(t.order), healthy: true, tenths: maxTenths}
	t.entries[key] = e
	t.order = append(t.order, e)
}

// Has reports whether key has been added.
func (t *Tracker) Has(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[key]
	return ok
}

// mustGet panics on unknown keys: callers only report outcomes for providers
// they obtained from the registry.
func (t *Tracker) mustGet(key string) *entry {
	e, ok := t.entries[key]
	if !ok {
		panic(fmt.Sprintf("health: outcome reported for unknown provider %q", key))
	}
	return e
}

// RecordSuccess marks key healthy, raises its score by 0.1 and clears the failure streak.
func (t *Tracker) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.mustGet(key)
	e.healthy = true
	e.tenths = min(maxTenths, e.tenths+successTenths)
	e.consecFails = 0
	e.lastError = ""
	e.lastChecked = t.now()
}

// RecordFailure marks key unhealthy, lowers its score by 0.2 and extends the
// failure streak. cause may be nil.
func (t *Tracker) RecordFailure(key string, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.mustGet(key)
	e.healthy = false
	e.tenths = max(0, e.tenths-failureTenths)
	e.consecFails++
	e.lastChecked = t.now()
	if cause != nil {
		e.lastError = cause.Error()
	}
}

// Record dispatches to RecordSuccess or RecordFailure.
func (t *Tracker) Record(key string, cause error) {
	if cause == nil {
		t.RecordSuccess(key)
		return
	}
	t.RecordFailure(key, cause)
}

// MarkInitialized flags key as having completed initialization.
func (t *Tracker) MarkInitialized(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mustGet(key).initialized = true
}

// rank sorts by score descending; ties go to preferred, then registration order.
func rank(entries []*entry, preferred string) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.tenths != b.tenths {
			return a.tenths > b.tenths
		}
		if (a.key == preferred) != (b.key == preferred) {
			return a.key == preferred
		}
		return a.seq < b.seq
	})
}

func keys(entries []*entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// Ranked returns the healthy keys, best first. preferred only breaks score ties.
func (t *Tracker) Ranked(preferred string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	healthy := make([]*entry, 0, len(t.order))
	for _, e := range t.order {
		if e.healthy {
			healthy = append(healthy, e)
		}
	}
	rank(healthy, preferred)
	return keys(healthy)
}

// Ordered returns every key: the healthy ones ranked first, followed by the
// unhealthy ones ranked by score.
func (t *Tracker) Ordered(preferred string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	healthy := make([]*entry, 0, len(t.order))
	var unhealthy []*entry
	for _, e := range t.order {
		if e.healthy {
			healthy = append(healthy, e)
		} else {
			unhealthy = append(unhealthy, e)
		}
	}
	rank(healthy, preferred)
	rank(unhealthy, preferred)
	return append(keys(healthy), keys(unhealthy)...)
}

// HealthyCount returns the number of keys currently flagged healthy.
func (t *Tracker) HealthyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.order {
		if e.healthy {
			count++
		}
	}
	return count
}

// Status returns a copy of the status for key.
func (t *Tracker) Status(key string) (models.ProviderStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[key]
	if !ok {
		return models.ProviderStatus{}, false
	}
	return e.status(), true
}

// Score returns the current score of key, or 0 for unknown keys.
func (t *Tracker) Score(key string) float64 {
	status, _ := t.Status(key)
	return status.Score
}

// Snapshot returns copies of every status in registration order.
func (t *Tracker) Snapshot() []models.ProviderStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	statuses := make([]models.ProviderStatus, len(t.order))
	for i, e := range t.order {
		statuses[i] = e.status()
	}
	return statuses
}
