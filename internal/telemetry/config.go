// Package telemetry implements the delivery pipeline between capture
// and transport: bounded per-category buffers, a weighted round-robin
// scheduler with a bounded send queue, and the add/flush boundary used
// by producers.
package telemetry

import (
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/settings"
)

// Priority is a category's scheduling tier.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Weight is how many consecutive cycle slots the tier receives.
func (p Priority) Weight(weights settings.PriorityWeights) int {
	switch p {
	case PriorityCritical:
		return weights.Critical
	case PriorityHigh:
		return weights.High
	case PriorityMedium:
		return weights.Medium
	case PriorityLow:
		return weights.Low
	default:
		return 0
	}
}

// CategoryConfig is one category's buffering and scheduling metadata.
type CategoryConfig struct {
	Category protocol.Category
	Priority Priority

	// Capacity bounds the category's buffer. Adding to a full buffer
	// evicts the oldest item.
	Capacity int

	// BatchSize is how many items one scheduler poll takes, and the
	// size at which a buffer becomes ready.
	BatchSize int

	// FlushTimeout makes a non-empty buffer ready once this much time
	// has passed since its last poll, even below BatchSize. Zero means
	// the buffer is only ready at BatchSize.
	FlushTimeout time.Duration
}

// defaultConfig returns the built-in sizing for a category.
//
// Unknown categories get a generic medium-priority, unbatched config so
// that a deployment can wire up additional kinds without touching this
// table.
func defaultConfig(category protocol.Category) CategoryConfig {
	switch category {
	case protocol.CategoryError:
		return CategoryConfig{
			Category:  category,
			Priority:  PriorityCritical,
			Capacity:  100,
			BatchSize: 1,
		}
	case protocol.CategoryCheckIn:
		return CategoryConfig{
			Category:  category,
			Priority:  PriorityHigh,
			Capacity:  50,
			BatchSize: 1,
		}
	case protocol.CategoryTransaction:
		return CategoryConfig{
			Category:  category,
			Priority:  PriorityMedium,
			Capacity:  100,
			BatchSize: 1,
		}
	case protocol.CategoryLog:
		return CategoryConfig{
			Category:     category,
			Priority:     PriorityLow,
			Capacity:     100,
			BatchSize:    100,
			FlushTimeout: 5 * time.Second,
		}
	default:
		return CategoryConfig{
			Category:  category,
			Priority:  PriorityMedium,
			Capacity:  100,
			BatchSize: 1,
		}
	}
}

// ConfigFor returns a category's config with settings overrides applied.
func ConfigFor(
	category protocol.Category,
	s *settings.Settings,
) CategoryConfig {
	config := defaultConfig(category)

	override, ok := s.BufferOverride(category)
	if !ok {
		return config
	}

	if override.Capacity > 0 {
		config.Capacity = override.Capacity
	}
	if override.BatchSize > 0 {
		config.BatchSize = override.BatchSize
	}
	if override.FlushTimeout > 0 {
		config.FlushTimeout = override.FlushTimeout
	}
	return config
}

// EnabledConfigs returns the configs for the enabled categories, in
// settings order.
func EnabledConfigs(s *settings.Settings) []CategoryConfig {
	var configs []CategoryConfig
	for _, category := range s.EnabledCategories() {
		configs = append(configs, ConfigFor(category, s))
	}
	return configs
}
