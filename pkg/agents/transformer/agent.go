// Package transformer provides the built-in field mapping agent.
package transformer

import (
	"context"
	"log/slog"

	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) ID() string {
	return "transformer"
}

func (f *Factory) Create(config map[string]any) (protocol.Agent, error) {
	agent := &Agent{mappings: make(map[string]string)}

	if mappings, ok := config["mappings"].(map[string]any); ok {
		for source, target := range mappings {
			if targetField, isString := target.(string); isString {
				agent.mappings[source] = targetField
			}
		}
	}

	copyUnmapped, _ := config["copy_unmapped"].(bool)
	agent.copyUnmapped = copyUnmapped

	return agent, nil
}

// Agent renames fields according to configured source→target mappings.
// Unmapped fields are dropped unless copy_unmapped is set.
type Agent struct {
	mappings     map[string]string
	copyUnmapped bool
}

func (a *Agent) ValidateInput(_ context.Context, data map[string]any) bool {
	return data != nil
}

func (a *Agent) Execute(_ context.Context, data map[string]any, logger *slog.Logger) (map[string]any, error) {
	transformed := make(map[string]any, len(data))

	for source, target := range a.mappings {
		if value, ok := data[source]; ok {
			transformed[target] = value
		}
	}

	if a.copyUnmapped {
		for key, value := range data {
			if _, mapped := a.mappings[key]; mapped {
				continue
			}

			if _, taken := transformed[key]; !taken {
				transformed[key] = value
			}
		}
	}

	logger.Debug("Transformation completed", "fields_out", len(transformed))

	return transformed, nil
}

func (a *Agent) OnError(_ context.Context, _ error, _ map[string]any) error {
	return nil
}
