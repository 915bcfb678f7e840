package scoring

import (
	"errors"
	"strings"
)

// SentinelComponentKey is the fallback component for classifications that
// name no configured code area. It always scores with multiplier 1.
const SentinelComponentKey = "other"

var (
	ErrNoComponents = errors.New("no components configured")
	ErrNoSeverities = errors.New("no severity levels configured")
)

type Component struct {
	Key        string
	Name       string
	Multiplier float64
}

// SeverityLevel is a ranked contribution tier. Rank 0 is the most severe;
// the highest rank value is the least severe and doubles as the fallback.
type SeverityLevel struct {
	Key        string
	Name       string
	BasePoints float64
	Rank       int
}

// Catalog is the scoring configuration of one organization under one
// ruleset. It is loaded once per evaluation and never mutated.
type Catalog struct {
	Components []Component
	Severities []SeverityLevel
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ResolveComponent maps a classifier-proposed component key onto the
// configured table: exact key match first, sentinel fallback second. An
// empty component table is a configuration error, not a fallback case.
func (c Catalog) ResolveComponent(key string) (Component, error) {
	if len(c.Components) == 0 {
		return Component{}, ErrNoComponents
	}

	wanted := normalizeKey(key)
	for _, comp := range c.Components {
		if normalizeKey(comp.Key) == wanted && wanted != "" {
			return comp, nil
		}
	}

	for _, comp := range c.Components {
		if normalizeKey(comp.Key) == SentinelComponentKey {
			return comp, nil
		}
	}

	// The sentinel is seeded at setup and should always be present; if a
	// catalog reaches us without it, fall back to the built-in definition
	// rather than failing the evaluation.
	return Component{Key: SentinelComponentKey, Name: "Other", Multiplier: 1}, nil
}

// ResolveSeverity maps a classifier-proposed severity key onto the
// configured table: exact key match first, lowest-ranked severity second.
func (c Catalog) ResolveSeverity(key string) (SeverityLevel, error) {
	if len(c.Severities) == 0 {
		return SeverityLevel{}, ErrNoSeverities
	}

	wanted := normalizeKey(key)
	for _, sev := range c.Severities {
		if normalizeKey(sev.Key) == wanted && wanted != "" {
			return sev, nil
		}
	}

	lowest := c.Severities[0]
	for _, sev := range c.Severities[1:] {
		if sev.Rank > lowest.Rank {
			lowest = sev
			continue
		}
		if sev.Rank == lowest.Rank && normalizeKey(sev.Key) < normalizeKey(lowest.Key) {
			lowest = sev
		}
	}
	return lowest, nil
}
