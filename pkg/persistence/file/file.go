// Package file provides file-based persistence for agents, pipelines,
// executions and audit records.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// Each entity is one JSON document under a typed subdirectory.
type Persistence struct {
	root       string
	agents     *AgentRepository
	pipelines  *PipelineRepository
	executions *ExecutionRepository
	audit      *AuditRepository
}

// NewPersistence creates a file persistence rooted at root (a plain path or a
// file:// URL).
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		agents:     &AgentRepository{root: cleanRoot},
		pipelines:  &PipelineRepository{root: cleanRoot},
		executions: &ExecutionRepository{root: cleanRoot},
		audit:      &AuditRepository{root: cleanRoot},
	}
}

func (fp *Persistence) AgentRepository() persistence.AgentRepository {
	return fp.agents
}

func (fp *Persistence) PipelineRepository() persistence.PipelineRepository {
	return fp.pipelines
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executions
}

func (fp *Persistence) AuditRepository() persistence.AuditRepository {
	return fp.audit
}

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// writeMu serializes writes; repositories are read-mostly.
var writeMu sync.Mutex

func writeEntity(dir, id string, entity any) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", id, err)
	}

	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func readEntity(dir, id string, entity any) (bool, error) {
	path := filepath.Join(dir, id+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

func listEntityIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

func removeEntity(dir, id string) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	path := filepath.Join(dir, id+".json")

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}
