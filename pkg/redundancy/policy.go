// Package redundancy maps redundancy levels to how many providers a write
// attempts and how many of those attempts must succeed.
package redundancy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLevel is returned for a level the policy has no entry for.
	ErrUnknownLevel = errors.New("unknown redundancy level")

	// ErrInvalidRequirement is returned when a table entry violates Attempt >= Minimum >= 1.
	ErrInvalidRequirement = errors.New("invalid redundancy requirement")
)

// Level selects a redundancy policy entry.
type Level string

const (
	Single  Level = "single"
	Dual    Level = "dual"
	Triple  Level = "triple"
	Maximum Level = "maximum"
)

// Levels lists the built-in levels from weakest to strongest.
func Levels() []Level {
	return []Level{Single, Dual, Triple, Maximum}
}

// ParseLevel converts user input into one of the built-in levels.
func ParseLevel(value string) (Level, error) {
	return DefaultPolicy().Parse(value)
}

func (l Level) String() string {
	return string(l)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Requirement is the resolved write rule for one operation.
type Requirement struct {
	// Attempt is the number of providers a write is dispatched to.
	Attempt int
	// Minimum is the number of successful writes that makes the write durable.
	Minimum int
}

func (r Requirement) valid() bool {
	return r.Minimum >= 1 && r.Attempt >= r.Minimum
}

// Policy is an immutable level table.
type Policy struct {
	table map[Level]Requirement
}

// DefaultPolicy returns the built-in table:
// single→(1,1), dual→(2,1), triple→(3,2), maximum→(4,2).
func DefaultPolicy() Policy {
	return Policy{table: map[Level]Requirement{
		Single:  {Attempt: 1, Minimum: 1},
		Dual:    {Attempt: 2, Minimum: 1},
		Triple:  {Attempt: 3, Minimum: 2},
		Maximum: {Attempt: 4, Minimum: 2},
	}}
}

// NewPolicy builds a policy from a custom table. Every entry must satisfy
// Attempt >= Minimum >= 1.
func NewPolicy(table map[Level]Requirement) (Policy, error) {
	copied := make(map[Level]Requirement, len(table))
	for level, req := range table {
		if !req.valid() {
			return Policy{}, fmt.Errorf("%w: %s wants attempt=%d minimum=%d",
				ErrInvalidRequirement, level, req.Attempt, req.Minimum)
		}
		copied[level] = req
	}
	return Policy{table: copied}, nil
}

// Has reports whether the policy knows level.
func (p Policy) Has(level Level) bool {
	_, ok := p.table[level]
	return ok
}

// Parse converts user input into a level of this policy. Input is trimmed
// and matched case-insensitively.
func (p Policy) Parse(value string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(value)))
	if !p.Has(level) {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, value)
	}
	return level, nil
}

// Lookup returns the raw table entry for level.
func (p Policy) Lookup(level Level) (Requirement, error) {
	req, ok := p.table[level]
	if !ok {
		return Requirement{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	return req, nil
}

// Requirement resolves level against the number of registered providers.
// Attempt never exceeds registered; Minimum is never lowered, so a level that
// cannot be satisfied fails the pre-flight check instead of silently weakening.
func (p Policy) Requirement(level Level, registered int) (Requirement, error) {
	req, err := p.Lookup(level)
	if err != nil {
		return Requirement{}, err
	}
	if registered < req.Attempt {
		req.Attempt = max(registered, 0)
	}
	return req, nil
}
