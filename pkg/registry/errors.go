package registry

import (
	"errors"
	"fmt"

	"replicafs/pkg/models"
	"replicafs/pkg/provider"
)

var (
	// ErrNotInitialized is returned when an operation runs before InitializeAll succeeded.
	ErrNotInitialized = errors.New("registry not initialized")

	// ErrInsufficientProviders is matched by InsufficientProvidersError.
	ErrInsufficientProviders = errors.New("insufficient healthy providers")

	// ErrRedundancyNotMet is matched by RedundancyNotMetError.
	ErrRedundancyNotMet = errors.New("redundancy not met")

	// ErrAllProvidersFailed is matched by AllProvidersFailedError, and by a
	// RedundancyNotMetError in which no write succeeded.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrNoProviders is returned by InitializeAll when nothing is registered.
	ErrNoProviders = errors.New("no providers registered")

	// ErrDuplicateProvider is returned when a key is registered twice.
	ErrDuplicateProvider = errors.New("provider already registered")

	// ErrUnknownProvider is returned for keys that are not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidProvider is returned for an empty key or a nil provider.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrShutdown is returned once Shutdown has been called.
	ErrShutdown = errors.New("registry shut down")

	// ErrProviderTimeout is reported for calls that exceeded the call timeout.
	ErrProviderTimeout = errors.New("provider call timed out")

	// ErrLocalFallback is recorded against a provider that could only keep a
	// write in its local fallback area.
	ErrLocalFallback = errors.New("object kept in provider local fallback")
)

// ProviderFailure carries one provider's error for diagnostics.
type ProviderFailure struct {
	Provider string
	Err      error
}

func (f ProviderFailure) Error() string {
	return f.Provider + ": " + f.Err.Error()
}

func (f ProviderFailure) Unwrap() error {
	return f.Err
}

func unwrapFailures(failures []ProviderFailure) []error {
	errs := make([]error, len(failures))
	for i, failure := range failures {
		errs[i] = failure
	}
	return errs
}

func failureModels(failures []ProviderFailure) []models.ProviderFailure {
	if len(failures) == 0 {
		return nil
	}
	out := make([]models.ProviderFailure, len(failures))
	for i, failure := range failures {
		out[i] = models.ProviderFailure{Provider: failure.Provider, Error: failure.Err.Error()}
	}
	return out
}

// InsufficientProvidersError is returned before any provider is touched when
// fewer providers are healthy than the write minimum.
type InsufficientProvidersError struct {
	Required  int
	Available int
}

func (e *InsufficientProvidersError) Error() string {
	return fmt.Sprintf("insufficient healthy providers: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientProvidersError) Is(target error) bool {
	return target == ErrInsufficientProviders
}

// RedundancyNotMetError is returned when a write reached fewer providers than
// the minimum. Writes that did succeed are left in place.
type RedundancyNotMetError struct {
	Achieved int
	Required int
	Failures []ProviderFailure
}

func (e *RedundancyNotMetError) Error() string {
	return fmt.Sprintf("redundancy not met: achieved %d of %d required", e.Achieved, e.Required)
}

func (e *RedundancyNotMetError) Is(target error) bool {
	return target == ErrRedundancyNotMet || (e.Achieved == 0 && target == ErrAllProvidersFailed)
}

func (e *RedundancyNotMetError) Unwrap() []error {
	return unwrapFailures(e.Failures)
}

// AllProvidersFailedError is returned when every candidate of an operation failed.
type AllProvidersFailedError struct {
	Op       string
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s: all providers failed: no healthy provider available", e.Op)
	}
	return fmt.Sprintf("%s: all providers failed (%d attempted)", e.Op, len(e.Failures))
}

func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

func (e *AllProvidersFailedError) Unwrap() []error {
	return unwrapFailures(e.Failures)
}

// NotFound reports whether at least one provider was asked and every one of
// them reported the object as absent.
func (e *AllProvidersFailedError) NotFound() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, failure := range e.Failures {
		if !provider.IsNotFound(failure.Err) {
			return false
		}
	}
	return true
}
