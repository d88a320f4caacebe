package models

import "time"

// ProviderStatus represents the rolling health state of one registered provider.
type ProviderStatus struct {
	Key                 string    `json:"key"`
	Healthy             bool      `json:"healthy"`
	Score               float64   `json:"score"`
	LastChecked         time.Time `json:"last_checked"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	Initialized         bool      `json:"initialized"`
}
