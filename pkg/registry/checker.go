package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"replicafs/pkg/log"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
)

const maxConcurrentProbes = 8

// checker runs cycle on a fixed interval until stopped. It starts at most
// once and stops at most once.
type checker struct {
	interval time.Duration
	cycle    func(ctx context.Context)

	startOnce sync.Once
	stopOnce  sync.Once
	disabled  bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func newChecker(interval time.Duration, cycle func(ctx context.Context)) *checker {
	return &checker{interval: interval, cycle: cycle, done: make(chan struct{})}
}

// disable turns start into a no-op.
func (c *checker) disable() {
	c.disabled = true
}

func (c *checker) start() {
	c.startOnce.Do(func() {
		if c.disabled {
			close(c.done)
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.loop(ctx)
		log.Debug().Dur("interval", c.interval).Msg("Health checker started")
	})
}

func (c *checker) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cycle(ctx)
		}
	}
}

// stop cancels a running cycle and waits for the loop to exit. Stopping a
// checker that never started is allowed.
func (c *checker) stop() {
	c.stopOnce.Do(func() {
		c.startOnce.Do(func() { close(c.done) })
		if c.cancel != nil {
			c.cancel()
		}
		<-c.done
		log.Debug().Msg("Health checker stopped")
	})
}

type probeTarget struct {
	key      string
	provider provider.Provider
	ready    bool
}

// CheckHealth probes every provider InitializeAll has seen and feeds the
// results into the health tracker. Providers whose initialization failed get
// another Initialize instead of a probe. No lock is held while probing.
// It returns the statuses after the cycle. After Shutdown it probes nothing.
func (r *Registry) CheckHealth(ctx context.Context) []models.ProviderStatus {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return r.tracker.Snapshot()
	}
	r.inflight.Add(1)
	defer r.inflight.Done()
	targets := make([]probeTarget, 0, len(r.order))
	for _, key := range r.order {
		if m := r.members[key]; m.attempted {
			targets = append(targets, probeTarget{key: key, provider: m.provider, ready: m.ready})
		}
	}
	r.mu.RUnlock()

	errs := make([]error, len(targets))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentProbes)
	for i, target := range targets {
		group.Go(func() error {
			result := invoke(groupCtx, target.key, r.healthCheckTimeout, func(callCtx context.Context, _ string) (struct{}, error) {
				if !target.ready {
					return struct{}{}, target.provider.Initialize(callCtx)
				}
				return struct{}{}, provider.Probe(callCtx, target.provider)
			})
			errs[i] = result.Err
			return nil
		})
	}
	_ = group.Wait()

	healthy, unhealthy := 0, 0
	for i, target := range targets {
		err := errs[i]
		if err == nil && !target.ready {
			r.markReady(target.key)
		}
		r.record(ctx, target.key, "probe", err)
		if err != nil {
			unhealthy++
		} else {
			healthy++
		}
	}

	r.metrics.HealthCheck(healthy, unhealthy)
	log.Debug().Int("healthy", healthy).Int("unhealthy", unhealthy).Msg("Health check cycle finished")
	return r.tracker.Snapshot()
}

func (r *Registry) markReady(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[key]; ok && !m.ready {
		m.ready = true
		r.tracker.MarkInitialized(key)
		log.Info().Str("provider", key).Msg("Provider initialized by health check")
	}
}
