package orchestrator

import (
	"github.com/stackconsult/interfaceAgent/pkg/models"
)

// MergeOutputs folds the outputs of succeeded steps into the execution
// output. Steps must already be sorted by order; outputs is keyed by step id
// and only contains succeeded steps.
//
// The last strategy keeps the value written by the latest step for each key.
// The collect strategy gathers every value written for a key into a slice,
// in step order, so no step's contribution is lost.
func MergeOutputs(strategy models.MergeStrategy, steps []*models.PipelineStep, outputs map[string]map[string]any) map[string]any {
	if strategy == models.MergeStrategyCollect {
		return mergeCollect(steps, outputs)
	}

	return mergeLast(steps, outputs)
}

func mergeLast(steps []*models.PipelineStep, outputs map[string]map[string]any) map[string]any {
	merged := make(map[string]any)

	for _, step := range steps {
		for key, value := range outputs[step.ID] {
			merged[key] = value
		}
	}

	return merged
}

func mergeCollect(steps []*models.PipelineStep, outputs map[string]map[string]any) map[string]any {
	collected := make(map[string][]any)

	for _, step := range steps {
		for key, value := range outputs[step.ID] {
			collected[key] = append(collected[key], value)
		}
	}

	merged := make(map[string]any, len(collected))

	for key, values := range collected {
		if len(values) == 1 {
			merged[key] = values[0]

			continue
		}

		merged[key] = values
	}

	return merged
}
