package registry

import (
	"errors"
	"fmt"
	"os"
	"plugin"
	"sync"

	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

var (
	// ErrPluginNotFound indicates the shared object or the symbol could not be resolved.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginContractViolation indicates the resolved symbol does not implement
	// the agent factory contract.
	ErrPluginContractViolation = errors.New("plugin does not satisfy the agent contract")

	// ErrPluginLoadError indicates the shared object could not be opened.
	ErrPluginLoadError = errors.New("plugin load failed")
)

// pluginCache memoizes resolved factories by (path, symbol). Entries are
// invalidated only by an explicit reload, never automatically; operators must
// know a plugin on disk has been replaced.
type pluginCache struct {
	mu      sync.RWMutex
	entries map[pluginKey]protocol.AgentFactory
}

type pluginKey struct {
	path   string
	symbol string
}

func newPluginCache() *pluginCache {
	return &pluginCache{entries: make(map[pluginKey]protocol.AgentFactory)}
}

func (c *pluginCache) get(key pluginKey) (protocol.AgentFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, ok := c.entries[key]

	return factory, ok
}

func (c *pluginCache) put(key pluginKey, factory protocol.AgentFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = factory
}

func (c *pluginCache) drop(key pluginKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// LoadAgentPlugin resolves an AgentFactory from a shared object and registers it
// under typeName. Repeated loads of the same (path, symbol) are served from the
// cache. A failed load never disturbs existing registrations.
func (r *Registry) LoadAgentPlugin(path, symbol, typeName string) error {
	factory, err := r.resolvePluginFactory(path, symbol)
	if err != nil {
		return err
	}

	return r.Register(typeName, factory)
}

// ReloadAgentPlugin drops the cache entry for (path, symbol) and resolves the
// shared object again. The registration under typeName is replaced only when
// the fresh resolution succeeds.
func (r *Registry) ReloadAgentPlugin(path, symbol, typeName string) error {
	key := pluginKey{path: path, symbol: symbol}
	r.plugins.drop(key)

	factory, err := r.resolvePluginFactory(path, symbol)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.factories[typeName] = factory
	r.mu.Unlock()

	r.logger.Info("Reloaded agent plugin", "path", path, "symbol", symbol, "type_name", typeName)

	return nil
}

func (r *Registry) resolvePluginFactory(path, symbol string) (protocol.AgentFactory, error) {
	key := pluginKey{path: path, symbol: symbol}

	if factory, ok := r.plugins.get(key); ok {
		return factory, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("plugin %q: %w", path, ErrPluginNotFound)
	}

	plg, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %w: %v", path, ErrPluginLoadError, err)
	}

	sym, err := plg.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %q symbol %q: %w", path, symbol, ErrPluginNotFound)
	}

	factory, ok := sym.(protocol.AgentFactory)
	if !ok {
		// Plugins may export the factory as a pointer to the interface value.
		if ptr, isPtr := sym.(*protocol.AgentFactory); isPtr && ptr != nil {
			factory = *ptr
			ok = true
		}
	}

	if !ok {
		return nil, fmt.Errorf("plugin %q symbol %q: %w", path, symbol, ErrPluginContractViolation)
	}

	r.plugins.put(key, factory)
	r.logger.Info("Loaded agent plugin", "path", path, "symbol", symbol, "type", factory.ID())

	return factory, nil
}

// LoadedPlugins returns a snapshot of cached (path, symbol) pairs.
func (r *Registry) LoadedPlugins() []string {
	r.plugins.mu.RLock()
	defer r.plugins.mu.RUnlock()

	loaded := make([]string, 0, len(r.plugins.entries))
	for key := range r.plugins.entries {
		loaded = append(loaded, key.path+"#"+key.symbol)
	}

	return loaded
}
