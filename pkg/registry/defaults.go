package registry

import (
	"github.com/stackconsult/interfaceAgent/pkg/agents/analyzer"
	"github.com/stackconsult/interfaceAgent/pkg/agents/enricher"
	"github.com/stackconsult/interfaceAgent/pkg/agents/transformer"
	"github.com/stackconsult/interfaceAgent/pkg/agents/validator"
	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

// RegisterBuiltinAgents binds the four built-in agent factories under their
// canonical type names.
func (r *Registry) RegisterBuiltinAgents() error {
	builtins := []protocol.AgentFactory{
		validator.NewFactory(),
		analyzer.NewFactory(),
		enricher.NewFactory(),
		transformer.NewFactory(),
	}

	for _, factory := range builtins {
		if err := r.Register(factory.ID(), factory); err != nil {
			return err
		}
	}

	return nil
}
