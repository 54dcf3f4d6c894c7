package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/internal/config"
	"github.com/woxQAQ/completion-bridge/internal/wasm"
)

// Manager loads Wasm providers and registers them.
type Manager struct {
	cfg         *config.ServerConfig
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	base        *zap.Logger
	logger      *zap.Logger

	mu      sync.RWMutex
	loaded  bool
	plugins map[string]*Plugin
}

// NewManager creates a new provider manager registering into registry.
func NewManager(
	cfg *config.ServerConfig,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	registry *Registry,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    registry,
		instanceMgr: wasm.NewInstanceManager(runtime, hostFuncs, logger),
		base:        logger,
		logger:      logger.With(zap.String("component", "provider-manager")),
		plugins:     make(map[string]*Plugin),
	}
}

// LoadAll discovers, instantiates and registers every provider found in
// the configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("providers already loaded")
	}

	m.logger.Info("Loading providers",
		zap.Strings("paths", m.cfg.ProviderPaths),
	)

	plugins, err := m.loader.DiscoverPlugins(ctx, m.cfg.ProviderPaths)
	if err != nil {
		var notFound *NoProvidersFoundError
		if errors.As(err, &notFound) {
			m.logger.Warn("No providers found in configured paths",
				zap.Strings("paths", m.cfg.ProviderPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, plugin := range plugins {
		if err := m.register(ctx, plugin); err != nil {
			m.logger.Error("Failed to register provider",
				zap.String("name", plugin.Name()),
				zap.Error(err),
			)
			continue
		}
		m.plugins[plugin.Name()] = plugin
	}

	m.loaded = true

	m.logger.Info("Providers loaded successfully",
		zap.Int("count", len(m.plugins)),
	)

	return nil
}

func (m *Manager) register(ctx context.Context, plugin *Plugin) error {
	p, err := wasm.NewProvider(ctx, m.instanceMgr, plugin.Name(), m.cfg.Wasm.Timeout(), m.base)
	if err != nil {
		return &ProviderLoadError{ProviderName: plugin.Name(), Stage: StageInstance, Err: err}
	}
	plugin.provider = p

	shortcut := plugin.Manifest.Shortcut
	if shortcut == "" {
		shortcut = m.cfg.Completion.ShortcutDefault
	}

	handle, err := m.registry.Register(plugin.Name(), shortcut, plugin.Manifest.Languages, p, plugin.Manifest.TriggerCharacters...)
	if err != nil {
		_ = plugin.close(ctx)
		return err
	}
	plugin.handle = handle
	return nil
}

// Get retrieves a loaded provider plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, &ProviderNotFoundError{ProviderName: name}
	}
	return plugin, nil
}

// Plugins returns the loaded plugins.
func (m *Manager) Plugins() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		result = append(result, plugin)
	}
	return result
}

// Shutdown unregisters every loaded provider and closes the runtime.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down provider manager")

	m.mu.Lock()
	for name, plugin := range m.plugins {
		if err := plugin.close(ctx); err != nil {
			m.logger.Warn("Failed to close provider", zap.String("name", name), zap.Error(err))
		}
		delete(m.plugins, name)
	}
	m.mu.Unlock()

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Provider manager shutdown complete")
	return nil
}

// Registry returns the registry providers are registered into.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether providers have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
