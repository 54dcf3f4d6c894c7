package provider

import (
	"context"
	"time"

	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/internal/wasm"
)

// Plugin is a provider loaded from a manifest directory.
type Plugin struct {
	// Manifest is the parsed provider metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the plugin was loaded
	LoadedAt time.Time

	provider completion.Provider
	handle   *Handle
}

// Name returns the provider name.
func (p *Plugin) Name() string {
	return p.Manifest.Name
}

// Version returns the provider version.
func (p *Plugin) Version() string {
	return p.Manifest.Version
}

// Languages returns the languages the provider serves.
func (p *Plugin) Languages() LanguageSet {
	return p.Manifest.Languages
}

// CanResolve reports whether the module exports resolve.
func (p *Plugin) CanResolve() bool {
	return p.Compiled != nil && p.Compiled.HasExport(wasm.ExportResolve)
}

// RegistrationID returns the registry id, empty before registration.
func (p *Plugin) RegistrationID() string {
	if p.handle == nil {
		return ""
	}
	return p.handle.ID()
}

// close disposes the registration and releases the provider's instance.
func (p *Plugin) close(ctx context.Context) error {
	if p.handle != nil {
		p.handle.Dispose()
	}
	if c, ok := p.provider.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
