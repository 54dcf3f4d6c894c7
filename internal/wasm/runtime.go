package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Runtime owns the wazero runtime shared by every completion provider module.
type Runtime struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache

	// Compiled module cache (key: module name/path -> value: *CompiledModule)
	modules sync.Map

	// Live instances, closed on shutdown (key: instance ID -> value: *Instance)
	instances sync.Map

	// host module is instantiated once, on first use
	hostOnce sync.Once
	hostErr  error

	config *RuntimeConfig
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig is the wasm section of the server config.
type RuntimeConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32

	// Enable debug logging of guest calls.
	DebugEnabled bool

	// Compilation cache directory. Empty keeps compiled code in memory only.
	CacheDir string

	// Maximum number of concurrently live instances. Zero means unlimited.
	MaxInstances int
}

// CompiledModule is a provider module compiled once and instantiated on
// demand.
type CompiledModule struct {
	Module wazero.CompiledModule

	Name      string
	Source    string // File path or identifier
	SizeBytes int64

	CompiledAt int64
}

// HasExport reports whether the compiled module exports a function called name.
func (c *CompiledModule) HasExport(name string) bool {
	if c.Module == nil {
		return false
	}
	_, ok := c.Module.ExportedFunctions()[name]
	return ok
}

// NewRuntime creates the wazero runtime and instantiates WASI so that
// providers built with standard toolchains can run.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	// Guest calls run under a timeout context; a call that outlives it is
	// aborted and its instance closed.
	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}

	var cache wazero.CompilationCache
	if config.CacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache '%s': %w", config.CacheDir, err)
		}
		cache = c
		rc = rc.WithCompilationCache(cache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	runtime := &Runtime{
		runtime: r,
		cache:   cache,
		config:  config,
		logger:  logger.With(zap.String("component", "wasm-runtime")),
		closed:  make(chan struct{}),
	}

	runtime.logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
	)

	return runtime, nil
}

// DefaultRuntimeConfig mirrors the wasm defaults of the server config.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:  256, // 16MB
		DebugEnabled: false,
		CacheDir:     "",
		MaxInstances: 100,
	}
}

// Close shuts the runtime down. Safe to call multiple times.
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Closing provider runtime", zap.Int("live_instances", r.InstanceCount()))

		r.instances.Range(func(key, value any) bool {
			if inst, ok := value.(*Instance); ok {
				if closeErr := inst.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close provider instance",
						zap.String("instance_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			return true
		})

		err = r.runtime.Close(ctx)
		if r.cache != nil {
			if cacheErr := r.cache.Close(ctx); cacheErr != nil && err == nil {
				err = cacheErr
			}
		}

		close(r.closed)
		r.logger.Info("Provider runtime closed")
	})

	return err
}

// GetCompiledModule looks up a module compiled under name.
func (r *Runtime) GetCompiledModule(name string) (*CompiledModule, bool) {
	if val, ok := r.modules.Load(name); ok {
		if mod, ok := val.(*CompiledModule); ok {
			return mod, true
		}
	}
	return nil, false
}

// StoreCompiledModule caches module under its name, replacing any
// earlier module of that name.
func (r *Runtime) StoreCompiledModule(module *CompiledModule) {
	r.modules.Store(module.Name, module)
}

// GetInstance retrieves a live instance.
func (r *Runtime) GetInstance(instanceID string) (*Instance, bool) {
	val, ok := r.instances.Load(instanceID)
	if !ok {
		return nil, false
	}
	inst, ok := val.(*Instance)
	return inst, ok
}

// StoreInstance tracks a live instance.
func (r *Runtime) StoreInstance(instance *Instance) {
	r.instances.Store(instance.ID, instance)
}

// DeleteInstance stops tracking an instance.
func (r *Runtime) DeleteInstance(instanceID string) {
	r.instances.Delete(instanceID)
}

// InstanceCount returns the number of live instances.
func (r *Runtime) InstanceCount() int {
	n := 0
	r.instances.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// IsClosed reports whether Close has run.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
