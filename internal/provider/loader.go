package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/internal/wasm"
)

// Loader handles loading provider plugins from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new plugin loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "provider-loader")),
	}
}

// LoadPlugin parses the manifest in dir and compiles its module.
func (l *Loader) LoadPlugin(ctx context.Context, dir string) (*Plugin, error) {
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading provider",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Strings("languages", manifest.Languages),
	)

	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.Name, manifest.WasmPath())
	if err != nil {
		return nil, &ProviderLoadError{
			ProviderName: manifest.Name,
			Stage:        StageCompile,
			Err:          err,
		}
	}

	if !compiled.HasExport(wasm.ExportComplete) {
		return nil, &ProviderLoadError{
			ProviderName: manifest.Name,
			Stage:        StageExports,
			Err:          &wasm.FunctionNotFoundError{ModuleName: manifest.Name, FunctionName: wasm.ExportComplete},
		}
	}

	plugin := &Plugin{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Provider loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.Bool("resolve", plugin.CanResolve()),
	)

	return plugin, nil
}

// DiscoverPlugins loads every subdirectory of paths holding a manifest.
// Broken plugins are logged and skipped.
func (l *Loader) DiscoverPlugins(ctx context.Context, paths []string) ([]*Plugin, error) {
	var plugins []*Plugin
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning provider directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Provider path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			pluginDir := filepath.Join(basePath, entry.Name())

			plugin, err := l.LoadPlugin(ctx, pluginDir)
			if err != nil {
				l.logger.Error("Failed to load provider",
					zap.String("dir", pluginDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			plugins = append(plugins, plugin)
		}
	}

	if len(plugins) > 0 && len(errs) > 0 {
		l.logger.Warn("Some providers failed to load",
			zap.Int("loaded", len(plugins)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(plugins) == 0 {
		return nil, &NoProvidersFoundError{Paths: paths}
	}

	return plugins, nil
}
