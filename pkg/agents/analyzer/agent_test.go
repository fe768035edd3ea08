package analyzer

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_ID(t *testing.T) {
	assert.Equal(t, "analyzer", NewFactory().ID())
}

func TestAgent_ReportsInsights(t *testing.T) {
	agent, err := NewFactory().Create(nil)
	require.NoError(t, err)

	output, err := agent.Execute(t.Context(), map[string]any{
		"name":  "",
		"score": 10.5,
		"count": 3,
	}, slog.Default())
	require.NoError(t, err)

	analysis, ok := output["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, analysis["fields_count"])

	insights, ok := analysis["insights"].([]map[string]any)
	require.True(t, ok)

	types := make([]string, 0, len(insights))
	for _, insight := range insights {
		insightType, _ := insight["type"].(string)
		types = append(types, insightType)
	}

	assert.Contains(t, types, "missing_data")
	assert.Contains(t, types, "numeric_summary")
}

func TestAgent_EmptyInput(t *testing.T) {
	agent, err := NewFactory().Create(nil)
	require.NoError(t, err)

	output, err := agent.Execute(t.Context(), map[string]any{}, slog.Default())
	require.NoError(t, err)

	analysis, ok := output["analysis"].(map[string]any)
	require.True(t, ok)

	insights, ok := analysis["insights"].([]map[string]any)
	require.True(t, ok)
	assert.Empty(t, insights)
}
