package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// callResult is the outcome of one provider call.
type callResult[T any] struct {
	Provider string
	Data     T
	Err      error
	Elapsed  time.Duration
}

// providerCall performs one operation against the provider registered under key.
type providerCall[T any] func(ctx context.Context, key string) (T, error)

// invoke runs call bounded by timeout. An adapter that ignores its context is
// abandoned when the deadline passes; its late result is discarded.
func invoke[T any](ctx context.Context, key string, timeout time.Duration, call providerCall[T]) callResult[T] {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan callResult[T], 1)
	go func() {
		data, err := call(callCtx, key)
		done <- callResult[T]{Provider: key, Data: data, Err: err}
	}()

	var result callResult[T]
	select {
	case result = <-done:
	case <-callCtx.Done():
		result = callResult[T]{Provider: key, Err: callCtx.Err()}
	}
	result.Elapsed = time.Since(start)

	// Only our own deadline is a timeout; a caller that gave up is not.
	if result.Err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		result.Err = fmt.Errorf("%w after %s: %w", ErrProviderTimeout, timeout, result.Err)
	}
	return result
}

// fanOut calls every key in parallel, each bounded by timeout, and waits for
// all of them. Results keep the order of keys.
func fanOut[T any](ctx context.Context, keys []string, timeout time.Duration, call providerCall[T]) []callResult[T] {
	results := make([]callResult[T], len(keys))
	if len(keys) == 0 {
		return results
	}

	var waitGroup sync.WaitGroup
	for i, key := range keys {
		waitGroup.Add(1)
		go func(idx int, backend string) {
			defer waitGroup.Done()
			results[idx] = invoke(ctx, backend, timeout, call)
		}(i, key)
	}
	waitGroup.Wait()

	return results
}
