package models

// ProviderFailure describes why a single provider failed within an operation.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// WriteReport summarizes a quorum write.
type WriteReport struct {
	Filename  string            `json:"filename"`
	Level     string            `json:"level"`
	Required  int               `json:"required"`
	Attempted []string          `json:"attempted"`
	Succeeded []string          `json:"succeeded"`
	Fallbacks []string          `json:"fallbacks,omitempty"`
	Failures  []ProviderFailure `json:"failures,omitempty"`
}

// DeleteReport summarizes a delete fan-out. Providers that no longer had the
// file are listed in Absent and count as deleted.
type DeleteReport struct {
	Filename string            `json:"filename"`
	Deleted  []string          `json:"deleted"`
	Absent   []string          `json:"absent,omitempty"`
	Failures []ProviderFailure `json:"failures,omitempty"`
}

// ListResponse is the body returned by file listing endpoints.
type ListResponse struct {
	Files []string `json:"files"`
}

// RedundancyResponse is the body of the redundancy endpoints.
type RedundancyResponse struct {
	Level     string `json:"level"`
	Attempt   int    `json:"attempt"`
	Minimum   int    `json:"minimum"`
	Preferred string `json:"preferred,omitempty"`
}
