// Package providertest provides in-memory provider doubles for tests.
package providertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"replicafs/pkg/provider"
)

// Operation names recorded in call logs.
const (
	OpInitialize = "initialize"
	OpStore      = "store"
	OpRetrieve   = "retrieve"
	OpDelete     = "delete"
	OpList       = "list"
	OpExists     = "exists"
	OpPing       = "ping"
)

// Call is one recorded invocation.
type Call struct {
	Provider string
	Op       string
	Filename string
}

// CallLog records calls across several fakes so tests can assert ordering.
type CallLog struct {
	mu    sync.Mutex
	calls []Call
}

// NewCallLog creates an empty log.
func NewCallLog() *CallLog {
	return &CallLog{}
}

func (l *CallLog) add(call Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns the recorded calls, optionally filtered by op.
func (l *CallLog) Calls(op string) []Call {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Call
	for _, call := range l.calls {
		if op == "" || call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Providers returns the provider keys of the calls for op, in call order.
func (l *CallLog) Providers(op string) []string {
	calls := l.Calls(op)
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.Provider
	}
	return out
}

// Fake is a scriptable in-memory provider.
type Fake struct {
	key string
	log *CallLog

	mu         sync.Mutex
	files      map[string][]byte
	errs       map[string]error
	delays     map[string]time.Duration
	configured bool
	placement  provider.Placement
	closed     bool
	counts     map[string]int
}

// NewFake creates a configured fake identified by key. log may be nil.
func NewFake(key string, log *CallLog) *Fake {
	if log == nil {
		log = NewCallLog()
	}
	return &Fake{
		key:        key,
		log:        log,
		files:      make(map[string][]byte),
		errs:       make(map[string]error),
		delays:     make(map[string]time.Duration),
		counts:     make(map[string]int),
		configured: true,
		placement:  provider.PlacementRemote,
	}
}

// Fail makes every following op call return err; a nil err clears it.
func (f *Fake) Fail(op string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
	} else {
		f.errs[op] = err
	}
	return f
}

// Delay makes op block for d or until its context is done.
func (f *Fake) Delay(op string, d time.Duration) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[op] = d
	return f
}

// SetConfigured controls IsConfigured.
func (f *Fake) SetConfigured(configured bool) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = configured
	return f
}

// SetPlacement controls the placement reported by Store receipts.
func (f *Fake) SetPlacement(p provider.Placement) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placement = p
	return f
}

// Put seeds an object without recording a call.
func (f *Fake) Put(filename string, data []byte) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filename] = append([]byte(nil), data...)
	return f
}

// Has reports whether filename is stored, without recording a call.
func (f *Fake) Has(filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[filename]
	return ok
}

// Count returns how often op was called on this fake.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// enter records the call, then waits out any scripted delay.
func (f *Fake) enter(ctx context.Context, op, filename string) error {
	f.mu.Lock()
	f.counts[op]++
	err := f.errs[op]
	delay := f.delays[op]
	f.mu.Unlock()

	f.log.add(Call{Provider: f.key, Op: op, Filename: filename})

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Name returns "fake".
func (f *Fake) Name() string {
	return "fake"
}

// Initialize records the call.
func (f *Fake) Initialize(ctx context.Context) error {
	return f.enter(ctx, OpInitialize, "")
}

// Store keeps a copy of data.
func (f *Fake) Store(ctx context.Context, data []byte, filename, _ string) (provider.Receipt, error) {
	if err := f.enter(ctx, OpStore, filename); err != nil {
		return provider.Receipt{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filename] = append([]byte(nil), data...)
	return provider.Receipt{
		Provider:  f.key,
		Ref:       fmt.Sprintf("%s/%s", f.key, filename),
		Size:      int64(len(data)),
		Placement: f.placement,
	}, nil
}

// Retrieve returns the stored copy or FileNotFoundError.
func (f *Fake) Retrieve(ctx context.Context, filename, _ string) ([]byte, error) {
	if err := f.enter(ctx, OpRetrieve, filename); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[filename]
	if !ok {
		return nil, provider.FileNotFoundError{Filename: filename}
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the stored copy or reports FileNotFoundError.
func (f *Fake) Delete(ctx context.Context, filename string) error {
	if err := f.enter(ctx, OpDelete, filename); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[filename]; !ok {
		return provider.FileNotFoundError{Filename: filename}
	}
	delete(f.files, filename)
	return nil
}

// List returns the stored names, sorted.
func (f *Fake) List(ctx context.Context) ([]string, error) {
	if err := f.enter(ctx, OpList, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether filename is stored; scripted errors yield false.
func (f *Fake) Exists(ctx context.Context, filename string) bool {
	if err := f.enter(ctx, OpExists, filename); err != nil {
		return false
	}
	return f.Has(filename)
}

// IsConfigured returns the scripted flag.
func (f *Fake) IsConfigured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Pingable is a Fake that also implements provider.Pinger.
type Pingable struct {
	*Fake
}

// NewPingable creates a pingable fake.
func NewPingable(key string, log *CallLog) *Pingable {
	return &Pingable{Fake: NewFake(key, log)}
}

// Ping returns the error scripted for OpPing.
func (p *Pingable) Ping(ctx context.Context) error {
	return p.enter(ctx, OpPing, "")
}
