package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipeline_IsExecutable(t *testing.T) {
	for status, executable := range map[PipelineStatus]bool{
		PipelineStatusDraft:    false,
		PipelineStatusActive:   true,
		PipelineStatusPaused:   false,
		PipelineStatusArchived: false,
	} {
		pipeline := &Pipeline{Status: status}
		assert.Equal(t, executable, pipeline.IsExecutable(), string(status))
	}
}

func TestPipeline_MergeStrategyOrDefault(t *testing.T) {
	pipeline := &Pipeline{}
	assert.Equal(t, MergeStrategyLast, pipeline.MergeStrategyOrDefault())

	pipeline.Configuration = map[string]any{"merge_strategy": ""}
	assert.Equal(t, MergeStrategyLast, pipeline.MergeStrategyOrDefault())

	pipeline.Configuration = map[string]any{"merge_strategy": "collect"}
	assert.Equal(t, MergeStrategyCollect, pipeline.MergeStrategyOrDefault())
}

func TestPipelineStep_IsCritical(t *testing.T) {
	explicitTrue := true
	explicitFalse := false

	assert.True(t, (&PipelineStep{}).IsCritical())
	assert.True(t, (&PipelineStep{Critical: &explicitTrue}).IsCritical())
	assert.False(t, (&PipelineStep{Critical: &explicitFalse}).IsCritical())
}

func TestPipeline_SnapshotIsolatesEdits(t *testing.T) {
	pipeline := &Pipeline{
		ID:            "p-1",
		Name:          "orders",
		Status:        PipelineStatusActive,
		Configuration: map[string]any{"merge_strategy": "last"},
		Steps: []*PipelineStep{
			{ID: "s-1", AgentID: "a-1", Order: 0, Configuration: map[string]any{"k": "v"}},
		},
	}

	snapshot := pipeline.Snapshot()

	nonCritical := false
	pipeline.Steps[0].Configuration["k"] = "mutated"
	pipeline.Steps[0].Order = 99
	pipeline.Steps[0].Critical = &nonCritical
	pipeline.Configuration["merge_strategy"] = "collect"
	pipeline.Steps = append(pipeline.Steps, &PipelineStep{ID: "s-2"})

	assert.Equal(t, "v", snapshot.Steps[0].Configuration["k"])
	assert.Equal(t, 0, snapshot.Steps[0].Order)
	assert.True(t, snapshot.Steps[0].IsCritical())
	assert.Equal(t, MergeStrategyLast, snapshot.MergeStrategyOrDefault())
	assert.Len(t, snapshot.Steps, 1)
}

func TestExecution_IsTerminal(t *testing.T) {
	for status, terminal := range map[ExecutionStatus]bool{
		ExecutionStatusPending:         false,
		ExecutionStatusRunning:         false,
		ExecutionStatusSucceeded:       true,
		ExecutionStatusFailed:          true,
		ExecutionStatusPartiallyFailed: true,
	} {
		execution := &PipelineExecution{Status: status}
		assert.Equal(t, terminal, execution.IsTerminal(), string(status))
	}
}

func TestAgent_IsActive(t *testing.T) {
	assert.True(t, (&Agent{Status: AgentStatusActive}).IsActive())
	assert.False(t, (&Agent{Status: AgentStatusInactive}).IsActive())
	assert.False(t, (&Agent{Status: AgentStatusMaintenance}).IsActive())
}
