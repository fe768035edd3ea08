// Package enricher provides the built-in data enrichment agent.
package enricher

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

const agentVersion = "1.0.0"

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) ID() string {
	return "enricher"
}

func (f *Factory) Create(config map[string]any) (protocol.Agent, error) {
	agent := &Agent{}

	if rules, ok := config["rules"].([]any); ok {
		agent.rules = rules
	}

	return agent, nil
}

// Agent copies the input and augments it with enrichment metadata plus any
// configured add-field rules. The input map itself is never mutated.
type Agent struct {
	rules []any
}

func (a *Agent) ValidateInput(_ context.Context, data map[string]any) bool {
	return data != nil
}

func (a *Agent) Execute(_ context.Context, data map[string]any, logger *slog.Logger) (map[string]any, error) {
	enriched := make(map[string]any, len(data)+1)
	for key, value := range data {
		enriched[key] = value
	}

	enriched["_enrichment"] = map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"agent":     "enricher",
		"version":   agentVersion,
	}

	applied := 0

	for _, raw := range a.rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		field, _ := rule["add_field"].(string)
		value := rule["value"]

		if field != "" && value != nil {
			enriched[field] = value
			applied++
		}
	}

	logger.Debug("Enrichment completed", "rules_applied", applied)

	return enriched, nil
}

func (a *Agent) OnError(_ context.Context, _ error, _ map[string]any) error {
	return nil
}
