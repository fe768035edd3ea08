// Package analyzer provides the built-in data analysis agent.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) ID() string {
	return "analyzer"
}

func (f *Factory) Create(_ map[string]any) (protocol.Agent, error) {
	return &Agent{}, nil
}

// Agent extracts structural insights from the input: missing values and a
// summary of numeric fields.
type Agent struct{}

func (a *Agent) ValidateInput(_ context.Context, data map[string]any) bool {
	return data != nil
}

func (a *Agent) Execute(_ context.Context, data map[string]any, logger *slog.Logger) (map[string]any, error) {
	insights := make([]map[string]any, 0)

	missing := make([]string, 0)
	numeric := make([]string, 0)

	for key, value := range data {
		if value == nil || value == "" {
			missing = append(missing, key)
		}

		switch value.(type) {
		case int, int64, float32, float64:
			numeric = append(numeric, key)
		}
	}

	if len(missing) > 0 {
		insights = append(insights, map[string]any{
			"type":   "missing_data",
			"fields": missing,
		})
	}

	if len(numeric) > 0 {
		insights = append(insights, map[string]any{
			"type":   "numeric_summary",
			"fields": numeric,
			"count":  len(numeric),
		})
	}

	logger.Debug("Analysis completed", "insights", len(insights))

	return map[string]any{
		"analysis": map[string]any{
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
			"data_size":    len(fmt.Sprint(data)),
			"fields_count": len(data),
			"insights":     insights,
		},
		"data": data,
	}, nil
}

func (a *Agent) OnError(_ context.Context, _ error, _ map[string]any) error {
	return nil
}
