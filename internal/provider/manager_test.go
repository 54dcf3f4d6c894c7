package provider

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/completion-bridge/internal/completion"
	"github.com/woxQAQ/completion-bridge/internal/config"
	"github.com/woxQAQ/completion-bridge/internal/wasm"
	"github.com/woxQAQ/completion-bridge/internal/wasm/wasmtest"
	"github.com/woxQAQ/completion-bridge/internal/workspace"
	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

type testEnv struct {
	manager *Manager
	runtime *wasm.Runtime
	docs    *workspace.Store
}

func newTestManager(t *testing.T, paths ...string) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	runtime, err := wasm.NewRuntime(ctx, logger, wasm.DefaultRuntimeConfig())
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { runtime.Close(context.Background()) })

	cfg := &config.ServerConfig{
		ProviderPaths: paths,
		Completion:    config.CompletionConfig{ShortcutDefault: "LS"},
		Wasm:          config.WasmConfig{ExecutionTimeout: 5},
	}

	docs := workspace.NewStore(logger)
	registry := NewRegistry(completion.Host{Documents: docs}, logger)

	return &testEnv{
		manager: NewManager(cfg, runtime, wasm.NewHostFunctions(logger), registry, logger),
		runtime: runtime,
		docs:    docs,
	}
}

func TestManager_NewManager(t *testing.T) {
	env := newTestManager(t, "/tmp/providers")

	if env.manager.IsLoaded() {
		t.Error("Manager should not be loaded initially")
	}

	if env.manager.Registry().Count() != 0 {
		t.Error("Registry should start empty")
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	env := newTestManager(t)

	_, err := env.manager.Get("nonexistent")
	var notFound *ProviderNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ProviderNotFoundError, got %v", err)
	}
}

func TestManager_LoadAll_NoProviders(t *testing.T) {
	env := newTestManager(t, filepath.Join(t.TempDir(), "missing"), t.TempDir())
	ctx := context.Background()

	if err := env.manager.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() should not fail without providers: %v", err)
	}
	if !env.manager.IsLoaded() {
		t.Error("Manager should be marked loaded")
	}

	if err := env.manager.LoadAll(ctx); err == nil {
		t.Error("second LoadAll() should fail")
	}
}

func TestManager_LoadAll(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "gopls-lite", validManifest, wasmtest.Guest{
		Complete: `{"isIncomplete":false,"items":[{"label":"Println","kind":3,"detail":"func"},{"label":"Sprintf","kind":3}]}`,
		Resolve:  `{"label":"Println","detail":"func Println(a ...any)"}`,
	}.Build())
	writePlugin(t, dir, "words", `
name: words
version: 0.1.0
languages: text
wasm:
  file: provider.wasm
`, wasmtest.Guest{Complete: `[]`}.Build())
	writePlugin(t, dir, "no-complete", `
name: no-complete
version: 0.1.0
languages: text
wasm:
  file: provider.wasm
`, wasmtest.Guest{NoComplete: true}.Build())
	writePlugin(t, dir, "broken", "name: [", nil)

	env := newTestManager(t, dir)
	ctx := context.Background()

	if err := env.manager.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}

	registry := env.manager.Registry()
	if registry.Count() != 2 {
		t.Fatalf("expected 2 registered providers, got %d", registry.Count())
	}
	if len(env.manager.Plugins()) != 2 {
		t.Errorf("expected 2 plugins, got %d", len(env.manager.Plugins()))
	}

	plugin, err := env.manager.Get("gopls-lite")
	if err != nil {
		t.Fatal(err)
	}
	if !plugin.CanResolve() {
		t.Error("gopls-lite exports resolve")
	}
	if plugin.RegistrationID() == "" {
		t.Error("plugin should carry its registration id")
	}

	source, ok := registry.Lookup("gomod")
	if !ok || source.Name() != "gopls-lite" {
		t.Fatalf("Lookup(gomod) = %v, %v", source, ok)
	}
	if source.Shortcut() != "GO" || !source.CanResolve() {
		t.Errorf("unexpected source shortcut %q resolve %v", source.Shortcut(), source.CanResolve())
	}
	if !source.ShouldTrigger(".", "go") {
		t.Error("manifest trigger character should start completion")
	}

	words, ok := registry.Lookup("text")
	if !ok {
		t.Fatal("Lookup(text) should find words")
	}
	if words.Shortcut() != "LS" {
		t.Errorf("default shortcut = %q, want LS", words.Shortcut())
	}
	if words.CanResolve() {
		t.Error("words has no resolve export")
	}

	// A request travels through the registered source into the guest.
	env.docs.Open(1, protocol.TextDocumentItem{URI: "file:///main.go", LanguageID: "go", Version: 1, Text: "fmt.P"})
	result, err := source.DoComplete(ctx, completion.Request{Bufnr: 1, Line: "fmt.P", Linenr: 1, Colnr: 6, Input: "P"})
	if err != nil {
		t.Fatalf("DoComplete() failed: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected prefix filter to keep 1 item, got %d", len(result.Items))
	}
	if result.Items[0].Word != "Println" || result.Items[0].Menu != "func [GO]" || result.Items[0].Kind != "Function" {
		t.Errorf("unexpected item %+v", result.Items[0])
	}
}

func TestManager_Shutdown(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "gopls-lite", validManifest, wasmtest.Guest{Complete: `[]`}.Build())

	env := newTestManager(t, dir)
	ctx := context.Background()

	if err := env.manager.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}
	if env.runtime.InstanceCount() != 1 {
		t.Fatalf("expected 1 live instance, got %d", env.runtime.InstanceCount())
	}

	if err := env.manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	if env.manager.Registry().Count() != 0 {
		t.Errorf("Shutdown() should unregister providers, %d left", env.manager.Registry().Count())
	}
	if !env.runtime.IsClosed() {
		t.Error("Shutdown() should close the runtime")
	}
	if env.runtime.InstanceCount() != 0 {
		t.Errorf("expected no live instances, got %d", env.runtime.InstanceCount())
	}
}

func TestLoader_LoadPlugin(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	runtime, err := wasm.NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewLoader(runtime, logger)

	dir := writePlugin(t, t.TempDir(), "gopls-lite", validManifest, wasmtest.Guest{Complete: `[]`}.Build())
	plugin, err := loader.LoadPlugin(ctx, dir)
	if err != nil {
		t.Fatalf("LoadPlugin() failed: %v", err)
	}
	if plugin.Name() != "gopls-lite" || plugin.Version() != "1.0.0" {
		t.Errorf("unexpected plugin %s@%s", plugin.Name(), plugin.Version())
	}
	if plugin.CanResolve() {
		t.Error("module has no resolve export")
	}
	if plugin.LoadedAt.IsZero() {
		t.Error("LoadedAt should be set")
	}

	bad := writePlugin(t, t.TempDir(), "bad", "name: bad\nversion: 1.0.0\nlanguages: go\nwasm:\n  file: provider.wasm\n", []byte("not wasm"))
	_, err = loader.LoadPlugin(ctx, bad)
	var loadErr *ProviderLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ProviderLoadError, got %v", err)
	}
	if loadErr.Stage != StageCompile {
		t.Errorf("Stage = %q, want %q", loadErr.Stage, StageCompile)
	}
}

func TestLoader_DiscoverPlugins_None(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	runtime, err := wasm.NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	_, err = NewLoader(runtime, logger).DiscoverPlugins(ctx, []string{t.TempDir()})
	var none *NoProvidersFoundError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoProvidersFoundError, got %v", err)
	}
}
