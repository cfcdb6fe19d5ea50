package domain

import "maps"

// Flag is the authoritative flag definition returned by the remote source.
type Flag struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	IsEnabled bool   `json:"isEnabled"`

	// RolloutPercentage and RolloutSeed are both set or both nil in well-formed data.
	RolloutPercentage *float64 `json:"rolloutPercentage,omitempty"`
	RolloutSeed       *string  `json:"rolloutSeed,omitempty"`
}

// HasRollout reports whether the flag carries both rollout fields.
func (f Flag) HasRollout() bool {
	return f.RolloutPercentage != nil && f.RolloutSeed != nil
}

// Strategy describes how a flag resolves for a target.
type Strategy string

const (
	StrategyDisabled Strategy = "disabled"
	StrategyBinary   Strategy = "binary"
	StrategyRollout  Strategy = "rollout"
)

// StrategyOf returns the evaluation strategy implied by the flag definition.
func StrategyOf(f Flag) Strategy {
	switch {
	case !f.IsEnabled:
		return StrategyDisabled
	case !f.HasRollout():
		return StrategyBinary
	default:
		return StrategyRollout
	}
}

// CacheKey identifies one per-flag cache slot. An empty Target is the
// contextless form of the flag.
type CacheKey struct {
	Flag   string
	Target string
}

// NewCacheKey builds the composite key for a flag and optional target.
func NewCacheKey(flagKey, targetID string) CacheKey {
	return CacheKey{Flag: flagKey, Target: targetID}
}

// HasTarget reports whether the key is scoped to a target identifier.
func (k CacheKey) HasTarget() bool {
	return k.Target != ""
}

// String renders the key for logs and diagnostics.
func (k CacheKey) String() string {
	if k.Target == "" {
		return k.Flag
	}
	return k.Flag + "#" + k.Target
}

// CopyFlags returns a shallow copy of a flag catalog.
func CopyFlags(flags map[string]Flag) map[string]Flag {
	if flags == nil {
		return map[string]Flag{}
	}
	return maps.Clone(flags)
}

// Float64 and String return pointers for optional flag fields.
func Float64(v float64) *float64 { return &v }

func String(v string) *string { return &v }
