package telemetry

import (
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/settings"
)

// BuildCycle precomputes the scheduler's category visit order.
//
// Each category appears weight(priority) consecutive times, with higher
// priority blocks first; within a tier, categories keep their order of
// first appearance in configs. The cycle's length is the sum of the
// participating categories' weights.
//
// A tier with weight zero is deliberately starved: its categories do
// not participate at all and only drain on flush.
func BuildCycle(
	configs []CategoryConfig,
	weights settings.PriorityWeights,
) []protocol.Category {
	tiers := []Priority{
		PriorityCritical,
		PriorityHigh,
		PriorityMedium,
		PriorityLow,
	}

	var cycle []protocol.Category
	for _, tier := range tiers {
		weight := tier.Weight(weights)
		if weight <= 0 {
			continue
		}

		for _, config := range configs {
			if config.Priority != tier {
				continue
			}
			for range weight {
				cycle = append(cycle, config.Category)
			}
		}
	}
	return cycle
}
