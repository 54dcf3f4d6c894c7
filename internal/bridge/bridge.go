// Package bridge wires the provider runtime, the completion sources and
// the host server into one process.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/internal/config"
	"github.com/woxQAQ/completion-bridge/internal/provider"
	"github.com/woxQAQ/completion-bridge/internal/server"
	"github.com/woxQAQ/completion-bridge/internal/telemetry"
	"github.com/woxQAQ/completion-bridge/internal/wasm"
	"github.com/woxQAQ/completion-bridge/internal/workspace"
)

type Bridge struct {
	cfg    *config.ServerConfig
	logger *zap.Logger

	tracing  *telemetry.Tracing
	gatherer *prometheus.Registry
	metrics  *telemetry.MetricsServer
	manager  *provider.Manager
	server   *server.Server
}

// New builds the bridge and loads every provider found in the configured
// paths. Providers that fail to load are logged and skipped.
func New(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (*Bridge, error) {
	tracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{Exporter: cfg.Tracing})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		MaxInstances: cfg.Wasm.MaxInstances,
	})
	if err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	docs := workspace.NewStore(logger)
	editor := server.NewEditor()
	registry := provider.NewRegistry(completion.Host{
		Documents: docs,
		Editor:    editor,
		Metrics:   completion.NewMetrics(gatherer),
	}, logger)

	manager := provider.NewManager(cfg, wasmRuntime, wasm.NewHostFunctions(logger), registry, logger)
	if err := manager.LoadAll(ctx); err != nil {
		_ = manager.Shutdown(ctx)
		_ = tracing.Shutdown(ctx)
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}

	b := &Bridge{
		cfg:      cfg,
		logger:   logger,
		tracing:  tracing,
		gatherer: gatherer,
		manager:  manager,
		server: server.New(server.Options{
			Registry:  registry,
			Documents: docs,
			Editor:    editor,
		}, logger),
	}
	if cfg.MetricsEnabled {
		b.metrics = telemetry.NewMetricsServer(cfg.MetricsPort, gatherer, logger)
	}

	logger.Info("Completion bridge initialized",
		zap.Int("providers", registry.Count()),
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
		zap.Bool("metrics", cfg.MetricsEnabled),
		zap.Bool("tracing", tracing.Enabled()),
	)

	return b, nil
}

// Serve talks to the host on stdio, or on TCP when a port is configured,
// until the host exits or ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context) error {
	if b.metrics != nil {
		b.metrics.Start()
	}

	if b.cfg.Port > 0 {
		return b.server.ServeTCP(ctx, b.cfg.Port)
	}
	return b.server.ServeStdio(ctx)
}

// Providers returns the loaded provider plugins.
func (b *Bridge) Providers() []*provider.Plugin {
	return b.manager.Plugins()
}

// Gatherer returns the registry completion metrics are recorded in.
func (b *Bridge) Gatherer() prometheus.Gatherer {
	return b.gatherer
}

// Close gracefully shuts down the bridge.
func (b *Bridge) Close(ctx context.Context) error {
	b.logger.Info("Shutting down completion bridge")

	var errs []error
	if b.metrics != nil {
		if err := b.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if err := b.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("providers: %w", err))
	}
	if err := b.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		b.logger.Error("Shutdown completed with errors", zap.Error(err))
		return err
	}

	b.logger.Info("Completion bridge shutdown complete")
	return nil
}
