// Package validator provides the built-in rule and schema validation agent.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) ID() string {
	return "validator"
}

func (f *Factory) Create(config map[string]any) (protocol.Agent, error) {
	agent := &Agent{}

	if rules, ok := config["rules"].([]any); ok {
		agent.rules = rules
	}

	if schema, ok := config["schema"].(map[string]any); ok {
		loader := gojsonschema.NewGoLoader(schema)

		compiled, err := gojsonschema.NewSchema(loader)
		if err != nil {
			return nil, fmt.Errorf("validator: invalid schema: %w", err)
		}

		agent.schema = compiled
	}

	return agent, nil
}

// Agent validates input data against configured rules and an optional JSON
// schema. Its output reports violations instead of failing the step, so
// downstream steps can branch on the result.
type Agent struct {
	rules  []any
	schema *gojsonschema.Schema
}

func (a *Agent) ValidateInput(_ context.Context, data map[string]any) bool {
	return data != nil
}

func (a *Agent) Execute(_ context.Context, data map[string]any, logger *slog.Logger) (map[string]any, error) {
	errs := make([]string, 0)

	for _, raw := range a.rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		errs = append(errs, applyRule(rule, data)...)
	}

	if a.schema != nil {
		result, err := a.schema.Validate(gojsonschema.NewGoLoader(data))
		if err != nil {
			return nil, fmt.Errorf("schema validation: %w", err)
		}

		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
	}

	logger.Debug("Validation completed", "violations", len(errs))

	return map[string]any{
		"valid":  len(errs) == 0,
		"errors": errs,
		"data":   data,
	}, nil
}

func (a *Agent) OnError(_ context.Context, _ error, _ map[string]any) error {
	return nil
}

func applyRule(rule, data map[string]any) []string {
	field, _ := rule["field"].(string)
	ruleType, _ := rule["type"].(string)

	value, present := data[field]
	if !present {
		return []string{fmt.Sprintf("missing required field: %s", field)}
	}

	switch ruleType {
	case "required":
		if value == nil || value == "" {
			return []string{fmt.Sprintf("field %s is required", field)}
		}
	case "type":
		expected, _ := rule["expected"].(string)

		return checkType(field, expected, value)
	case "range":
		return checkRange(field, rule, value)
	}

	return nil
}

func checkType(field, expected string, value any) []string {
	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			return []string{fmt.Sprintf("field %s must be a string", field)}
		}
	case "number":
		if _, ok := asNumber(value); !ok {
			return []string{fmt.Sprintf("field %s must be a number", field)}
		}
	}

	return nil
}

func checkRange(field string, rule map[string]any, value any) []string {
	number, ok := asNumber(value)
	if !ok {
		return nil
	}

	var errs []string

	if minVal, hasMin := asNumber(rule["min"]); hasMin && number < minVal {
		errs = append(errs, fmt.Sprintf("field %s must be >= %v", field, minVal))
	}

	if maxVal, hasMax := asNumber(rule["max"]); hasMax && number > maxVal {
		errs = append(errs, fmt.Sprintf("field %s must be <= %v", field, maxVal))
	}

	return errs
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
