package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for gradual rollout.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature

	// Per-user overrides (user ID -> feature name -> enabled)
	userOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Percentage rollout (0-100). Only used if Enabled is true.
	RolloutPercent int

	// Specific cohorts that get the feature regardless of rollout
	TargetCohorts []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variants
	Variants []string
}

// FeatureContext carries information needed for flag evaluation.
type FeatureContext struct {
	UserID  string
	Cohort  string
	IsAdmin bool
}

// Known feature flags.
const (
	// FeatureSingleflight collapses concurrent cache misses for the
	// same key into a single computation.
	FeatureSingleflight = "cache.singleflight"

	// FeatureDegradedResponses serves partial analytics with a degraded
	// marker when an upstream signal source is unavailable, instead of
	// failing the whole request.
	FeatureDegradedResponses = "analytics.degraded_responses"

	// FeatureActivityRecommendations blends the interaction-activity
	// signal into friend recommendations (proximity-only otherwise).
	FeatureActivityRecommendations = "recommendations.activity_signal"

	// FeatureMetricsPush publishes periodic metrics snapshots to Redis
	// for external dashboards.
	FeatureMetricsPush = "metrics.push"

	// FeatureRemoteInvalidation fans cache invalidation events out to
	// other instances through the Redis event bus.
	FeatureRemoteInvalidation = "cache.remote_invalidation"

	// FeatureDeepInfluence allows influence queries beyond the default
	// BFS depth. Expensive on dense graphs.
	FeatureDeepInfluence = "experimental.deep_influence"
)

// defaultFeatures returns the built-in feature set.
func defaultFeatures() map[string]*Feature {
	return map[string]*Feature{
		FeatureSingleflight: {
			Name:           FeatureSingleflight,
			Description:    "Collapse concurrent computations of the same cache key",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureDegradedResponses: {
			Name:           FeatureDegradedResponses,
			Description:    "Serve partial analytics when a signal source is down",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureActivityRecommendations: {
			Name:           FeatureActivityRecommendations,
			Description:    "Blend interaction activity into recommendations",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureMetricsPush: {
			Name:           FeatureMetricsPush,
			Description:    "Publish metrics snapshots to Redis",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureRemoteInvalidation: {
			Name:           FeatureRemoteInvalidation,
			Description:    "Propagate cache invalidation across instances",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureDeepInfluence: {
			Name:           FeatureDeepInfluence,
			Description:    "Influence queries beyond the default BFS depth",
			Enabled:        false,
			RolloutPercent: 0,
			TargetCohorts:  []string{"beta"},
		},
	}
}

// LoadFeatureFlags creates feature flags with defaults and environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      defaultFeatures(),
		userOverrides: make(map[string]map[string]bool),
	}

	// Apply environment overrides
	// Format: FEATURE_<NAME>=true/false or FEATURE_<NAME>=<percent>
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				}
			} else if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
				feature.Enabled = pct > 0
				feature.RolloutPercent = pct
			}
		}
	}

	return ff
}

// featureNameToEnvKey converts "cache.singleflight" to "FEATURE_CACHE_SINGLEFLIGHT".
func featureNameToEnvKey(name string) string {
	upper := strings.ToUpper(name)
	upper = strings.ReplaceAll(upper, ".", "_")
	upper = strings.ReplaceAll(upper, "-", "_")
	return "FEATURE_" + upper
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(name string, fctx FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user override first
	if overrides, ok := ff.userOverrides[fctx.UserID]; ok {
		if enabled, ok := overrides[name]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[name]
	if !ok {
		return false
	}

	if !feature.Enabled {
		// Admins can still use disabled features
		return fctx.IsAdmin
	}

	// Time window check
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Cohort targeting bypasses percentage rollout
	if fctx.Cohort != "" {
		for _, c := range feature.TargetCohorts {
			if c == fctx.Cohort {
				return true
			}
		}
	}

	// Percentage rollout with consistent hashing: the same user always
	// lands in the same bucket for a given feature.
	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}

	return rolloutBucket(name, fctx.UserID) < feature.RolloutPercent
}

// IsGloballyEnabled checks a feature without user context.
// Returns true only for features rolled out to 100%.
func (ff *FeatureFlags) IsGloballyEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	if !ok {
		return false
	}
	return feature.Enabled && feature.RolloutPercent >= 100
}

// GetVariant returns the A/B variant for a user, or "" if the feature
// has no variants or is disabled.
func (ff *FeatureFlags) GetVariant(name string, fctx FeatureContext) string {
	if !ff.IsEnabled(name, fctx) {
		return ""
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	if !ok || len(feature.Variants) == 0 {
		return ""
	}

	idx := rolloutBucket(name+":variant", fctx.UserID) % len(feature.Variants)
	return feature.Variants[idx]
}

// rolloutBucket maps (feature, user) to a stable bucket in [0, 100).
func rolloutBucket(name, userID string) int {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

// SetUserOverride sets a per-user feature override.
func (ff *FeatureFlags) SetUserOverride(userID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][name] = enabled
}

// ClearUserOverride removes a per-user feature override.
func (ff *FeatureFlags) ClearUserOverride(userID, name string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if overrides, ok := ff.userOverrides[userID]; ok {
		delete(overrides, name)
		if len(overrides) == 0 {
			delete(ff.userOverrides, userID)
		}
	}
}

// SetRolloutPercent updates the rollout percentage of a feature.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Feature: name, Err: ErrInvalidRolloutPercent}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Err: ErrFeatureNotFound}
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// Enable turns a feature fully on.
func (ff *FeatureFlags) Enable(name string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Err: ErrFeatureNotFound}
	}

	feature.Enabled = true
	feature.RolloutPercent = 100
	return nil
}

// Disable turns a feature fully off.
func (ff *FeatureFlags) Disable(name string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Err: ErrFeatureNotFound}
	}

	feature.Enabled = false
	feature.RolloutPercent = 0
	return nil
}

// GetAllFeatures returns a snapshot of all feature flags.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]Feature, len(ff.features))
	for name, f := range ff.features {
		result[name] = *f
	}
	return result
}

// Feature flag errors.
var (
	ErrFeatureNotFound       = fmt.Errorf("feature not found")
	ErrInvalidRolloutPercent = fmt.Errorf("rollout percent must be 0-100")
)

// FeatureFlagError wraps an error with the feature name.
type FeatureFlagError struct {
	Feature string
	Err     error
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature %q: %v", e.Feature, e.Err)
}

func (e *FeatureFlagError) Unwrap() error {
	return e.Err
}
