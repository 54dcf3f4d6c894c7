// Package provider keeps track of registered completion providers and
// loads WebAssembly providers from disk.
package provider

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woxQAQ/completion-bridge/internal/completion"
)

// Registration is one registered provider.
type Registration struct {
	ID                string
	Source            *completion.Source
	LanguageIDs       LanguageSet
	TriggerCharacters []string
}

// Registry holds completion sources in registration order.
type Registry struct {
	sync.RWMutex
	registrations []*Registration
	host          completion.Host
	base          *zap.Logger
	logger        *zap.Logger
}

// NewRegistry creates a registry whose sources share host.
func NewRegistry(host completion.Host, logger *zap.Logger) *Registry {
	return &Registry{
		host:   host,
		base:   logger,
		logger: logger.With(zap.String("component", "provider-registry")),
	}
}

// Handle removes its registration when disposed.
type Handle struct {
	id       string
	registry *Registry
	once     sync.Once
}

// ID returns the registration id.
func (h *Handle) ID() string {
	return h.id
}

// Dispose unregisters the provider. Later calls do nothing.
func (h *Handle) Dispose() {
	h.once.Do(func() {
		h.registry.Unregister(h.id)
	})
}

// Register wraps p in a completion source and stores it. Names must be
// unique since resolve requests are routed by source name.
func (r *Registry) Register(name, shortcut string, languageIDs LanguageSet, p completion.Provider, triggerCharacters ...string) (*Handle, error) {
	languageIDs = Languages(languageIDs...)

	source, err := completion.NewSource(completion.SourceConfig{
		Name:              name,
		Shortcut:          shortcut,
		LanguageIDs:       languageIDs,
		TriggerCharacters: triggerCharacters,
		Provider:          p,
	}, r.host, r.base)
	if err != nil {
		return nil, err
	}

	r.Lock()
	defer r.Unlock()

	for _, reg := range r.registrations {
		if reg.Source.Name() == name {
			source.Close()
			return nil, &ProviderAlreadyRegisteredError{ProviderName: name}
		}
	}

	reg := &Registration{
		ID:                uuid.NewString(),
		Source:            source,
		LanguageIDs:       languageIDs,
		TriggerCharacters: append([]string(nil), triggerCharacters...),
	}
	r.registrations = append(r.registrations, reg)

	r.logger.Info("Provider registered",
		zap.String("name", name),
		zap.String("id", reg.ID),
		zap.Strings("languages", languageIDs),
		zap.Bool("resolve", source.CanResolve()),
	)

	return &Handle{id: reg.ID, registry: r}, nil
}

// Lookup returns the first registered source serving languageID.
func (r *Registry) Lookup(languageID string) (*completion.Source, bool) {
	r.RLock()
	defer r.RUnlock()

	for _, reg := range r.registrations {
		if reg.LanguageIDs.Contains(languageID) {
			return reg.Source, true
		}
	}
	return nil, false
}

// Get retrieves a registration by id.
func (r *Registry) Get(id string) (*Registration, bool) {
	r.RLock()
	defer r.RUnlock()

	for _, reg := range r.registrations {
		if reg.ID == id {
			return reg, true
		}
	}
	return nil, false
}

// Sources returns every registered source in registration order.
func (r *Registry) Sources() []*completion.Source {
	r.RLock()
	defer r.RUnlock()

	result := make([]*completion.Source, 0, len(r.registrations))
	for _, reg := range r.registrations {
		result = append(result, reg.Source)
	}
	return result
}

// Unregister removes the registration with id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.Lock()
	defer r.Unlock()

	for i, reg := range r.registrations {
		if reg.ID != id {
			continue
		}
		r.registrations = append(r.registrations[:i], r.registrations[i+1:]...)
		reg.Source.Close()

		r.logger.Info("Provider unregistered",
			zap.String("name", reg.Source.Name()),
			zap.String("id", id),
		)
		return
	}
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.registrations)
}

// Close does nothing; registrations are disposed by their owners.
func (r *Registry) Close() {}
