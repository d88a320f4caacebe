// Package registry coordinates storage across several providers: it owns the
// provider set and its lifecycle, resolves the active redundancy level, runs
// quorum writes and health-ordered failover reads, and keeps the health signal
// fresh with a periodic checker.
//
// Provider I/O never happens under a lock. The registry lock guards the
// provider set and configuration; the health tracker guards scores. When both
// are needed the registry lock is taken first and released before any call
// into a provider.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"replicafs/pkg/health"
	"replicafs/pkg/log"
	"replicafs/pkg/metrics"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
	"replicafs/pkg/redundancy"
)

const (
	defaultCallTimeout         = 30 * time.Second
	defaultHealthCheckInterval = 5 * time.Minute
	defaultHealthCheckTimeout  = 10 * time.Second
	defaultLevel               = redundancy.Dual
)

// Config configures a Registry. Zero values select defaults.
type Config struct {
	// Level is the initial redundancy level.
	Level redundancy.Level
	// Policy overrides the default level table.
	Policy *redundancy.Policy
	// Preferred names a provider that wins score ties. It never overrides ranking.
	Preferred string
	// CallTimeout bounds every individual provider call.
	CallTimeout time.Duration
	// HealthCheckInterval is the period of the background checker.
	HealthCheckInterval time.Duration
	// HealthCheckTimeout bounds each probe of the background checker.
	HealthCheckTimeout time.Duration
	// DisableHealthChecks keeps the background checker from starting.
	DisableHealthChecks bool
	// Metrics receives operation metrics; nil disables them.
	Metrics *metrics.Recorder
}

type member struct {
	key      string
	provider provider.Provider
	// attempted is set once InitializeAll has tried the provider; only
	// attempted members take part in operations.
	attempted bool
	// ready is set once Initialize succeeded.
	ready bool
}

// Registry is the single entry point for store, retrieve, delete, exists and list.
type Registry struct {
	mu          sync.RWMutex
	members     map[string]*member
	order       []string
	level       redundancy.Level
	preferred   string
	initialized bool
	closed      bool
	inflight    sync.WaitGroup
	// stopped is closed once in-flight operations drained and providers were closed.
	stopped  chan struct{}
	closeErr error

	policy             redundancy.Policy
	tracker            *health.Tracker
	metrics            *metrics.Recorder
	callTimeout        time.Duration
	healthCheckTimeout time.Duration
	checker            *checker
}

// New creates an empty registry.
func New(cfg Config) (*Registry, error) {
	policy := redundancy.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Level == "" {
		cfg.Level = defaultLevel
	}
	if !policy.Has(cfg.Level) {
		return nil, fmt.Errorf("%w: %q", redundancy.ErrUnknownLevel, cfg.Level)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = defaultHealthCheckTimeout
	}

	r := &Registry{
		members:            make(map[string]*member),
		level:              cfg.Level,
		preferred:          cfg.Preferred,
		policy:             policy,
		tracker:            health.NewTracker(),
		metrics:            cfg.Metrics,
		callTimeout:        cfg.CallTimeout,
		healthCheckTimeout: cfg.HealthCheckTimeout,
	}
	r.checker = newChecker(cfg.HealthCheckInterval, func(ctx context.Context) { r.CheckHealth(ctx) })
	if cfg.DisableHealthChecks {
		r.checker.disable()
	}
	return r, nil
}

// Register adds p under key. Providers registered after initialization stay
// out of every operation until InitializeAll runs again.
func (r *Registry) Register(key string, p provider.Provider) error {
	if key == "" || p == nil {
		return fmt.Errorf("%w: key %q", ErrInvalidProvider, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrShutdown
	}
	if _, exists := r.members[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateProvider, key)
	}

	r.members[key] = &member{key: key, provider: p}
	r.order = append(r.order, key)
	r.tracker.Add(key)
	r.metrics.HealthScore(key, func() float64 { return r.tracker.Score(key) })

	log.Debug().Str("provider", key).Str("kind", p.Name()).Msg("Provider registered")
	return nil
}

// InitializeAll initializes every provider that has not been initialized yet.
// Individual failures are recorded as health failures; the call only fails
// when no provider at all could be initialized.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrShutdown
	}
	total := len(r.order)
	pending := make(map[string]provider.Provider)
	var keys []string
	for _, key := range r.order {
		if m := r.members[key]; !m.ready {
			pending[key] = m.provider
			keys = append(keys, key)
		}
	}
	r.mu.RUnlock()

	if total == 0 {
		return ErrNoProviders
	}

	results := fanOut(ctx, keys, r.callTimeout, func(callCtx context.Context, key string) (struct{}, error) {
		return struct{}{}, pending[key].Initialize(callCtx)
	})

	var failures []ProviderFailure
	for _, result := range results {
		if result.Err != nil {
			failures = append(failures, ProviderFailure{Provider: result.Provider, Err: result.Err})
			log.Warn().Err(result.Err).Str("provider", result.Provider).Msg("Provider initialization failed")
		}
		r.tracker.Record(result.Provider, result.Err)
	}

	r.mu.Lock()
	for _, result := range results {
		m := r.members[result.Provider]
		m.attempted = true
		if result.Err == nil {
			m.ready = true
			r.tracker.MarkInitialized(result.Provider)
		}
	}
	ready := 0
	for _, m := range r.members {
		if m.ready {
			ready++
		}
	}
	if ready == 0 {
		r.mu.Unlock()
		return &AllProvidersFailedError{Op: "initialize", Failures: failures}
	}
	wasInitialized := r.initialized
	r.initialized = true
	r.mu.Unlock()

	if !wasInitialized {
		r.checker.start()
		log.Info().
			Int("providers", total).
			Int("ready", ready).
			Str("level", r.RedundancyLevel().String()).
			Msg("Registry initialized")
	}
	return nil
}

// IsInitialized reports whether operations are accepted.
func (r *Registry) IsInitialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized && !r.closed
}

// SetRedundancyLevel switches the active level. Operations already running
// keep the level they started with.
func (r *Registry) SetRedundancyLevel(level redundancy.Level) error {
	if !r.policy.Has(level) {
		return fmt.Errorf("%w: %q", redundancy.ErrUnknownLevel, level)
	}

	r.mu.Lock()
	previous := r.level
	r.level = level
	r.mu.Unlock()

	if previous != level {
		log.Info().Str("from", previous.String()).Str("to", level.String()).Msg("Redundancy level changed")
	}
	return nil
}

// ParseLevel converts user input into a level of the registry policy,
// custom levels included.
func (r *Registry) ParseLevel(value string) (redundancy.Level, error) {
	return r.policy.Parse(value)
}

// RedundancyLevel returns the active level.
func (r *Registry) RedundancyLevel() redundancy.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.level
}

// Requirement resolves the active level against the registered providers.
func (r *Registry) Requirement() (redundancy.Requirement, error) {
	r.mu.RLock()
	level, registered := r.level, len(r.order)
	r.mu.RUnlock()
	return r.policy.Requirement(level, registered)
}

// SetPreferred sets the provider that wins score ties. An empty key clears it.
func (r *Registry) SetPreferred(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key != "" {
		if _, ok := r.members[key]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, key)
		}
	}
	r.preferred = key
	return nil
}

// Preferred returns the tiebreak provider key.
func (r *Registry) Preferred() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.preferred
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Statuses returns a copy of every provider status in registration order.
func (r *Registry) Statuses() []models.ProviderStatus {
	return r.tracker.Snapshot()
}

// Status returns the status of one provider.
func (r *Registry) Status(key string) (models.ProviderStatus, bool) {
	return r.tracker.Status(key)
}

// Shutdown stops the health checker, waits for in-flight operations and
// closes providers that hold resources. When ctx ends first Shutdown returns
// ctx.Err() and the providers are closed as soon as the last operation
// finishes. It is safe to call more than once; later calls wait for the same
// close and return its result.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	first := !r.closed
	if first {
		r.closed = true
		r.initialized = false
		r.stopped = make(chan struct{})
	}
	stopped := r.stopped
	r.mu.Unlock()

	if first {
		r.checker.stop()
		go func() {
			r.inflight.Wait()
			r.closeErr = r.closeProviders()
			log.Info().Msg("Registry stopped")
			close(stopped)
		}()
	}

	select {
	case <-stopped:
		return r.closeErr
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("Registry shutdown gave up waiting for in-flight operations")
		return ctx.Err()
	}
}

func (r *Registry) closeProviders() error {
	r.mu.RLock()
	members := make([]*member, 0, len(r.order))
	for _, key := range r.order {
		members = append(members, r.members[key])
	}
	r.mu.RUnlock()

	var errs []error
	for _, m := range members {
		if closer, ok := m.provider.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", m.key, err))
			}
		}
	}
	return errors.Join(errs...)
}

// view is the state an operation reads once at its start.
type view struct {
	level      redundancy.Level
	preferred  string
	registered int
	providers  map[string]provider.Provider
}

// only keeps the keys that belong to the view, preserving order.
func (v view) only(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := v.providers[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

// begin admits one operation. Callers must call r.inflight.Done when finished.
func (r *Registry) begin() (view, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return view{}, ErrShutdown
	}
	if !r.initialized {
		return view{}, ErrNotInitialized
	}

	providers := make(map[string]provider.Provider, len(r.members))
	for key, m := range r.members {
		if m.attempted {
			providers[key] = m.provider
		}
	}
	r.inflight.Add(1)
	return view{
		level:      r.level,
		preferred:  r.preferred,
		registered: len(r.order),
		providers:  providers,
	}, nil
}

// record feeds one call outcome into the tracker. Calls aborted because the
// caller gave up, and payloads that could not be sealed or opened with the
// caller credential, say nothing about the provider and are not recorded.
func (r *Registry) record(ctx context.Context, key, op string, err error) {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		r.metrics.ProviderCall(key, op, "canceled")
		return
	}
	if errors.Is(err, provider.ErrEncryptionFailed) || errors.Is(err, provider.ErrDecryptionFailed) {
		r.metrics.ProviderCall(key, op, "rejected")
		return
	}

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case provider.IsNotFound(err):
		outcome = metrics.OutcomeNotFound
	case errors.Is(err, ErrLocalFallback):
		outcome = metrics.OutcomeFallback
	default:
		outcome = metrics.OutcomeError
	}
	r.metrics.ProviderCall(key, op, outcome)

	wasHealthy := true
	if status, ok := r.tracker.Status(key); ok {
		wasHealthy = status.Healthy
	}
	r.tracker.Record(key, err)

	if err != nil && wasHealthy {
		log.Warn().Err(err).Str("provider", key).Str("op", op).Msg("Provider marked unhealthy")
	} else if err == nil && !wasHealthy {
		log.Info().Str("provider", key).Str("op", op).Msg("Provider back online")
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeOK
}
