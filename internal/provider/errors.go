package provider

import (
	"fmt"
	"strings"
)

// Stages of loading a provider, reported by ProviderLoadError.
const (
	StageCompile  = "compile"
	StageExports  = "exports"
	StageInstance = "instantiate"
)

// ManifestNotFoundError reports a provider directory whose manifest.yaml
// could not be read.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("read provider manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError reports a manifest that is not valid YAML or does not
// fit the manifest schema.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("decode provider manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError reports a manifest field with a missing or
// unusable value.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("provider manifest %s: %s: %s", e.Path, e.Field, e.Message)
	}
	return fmt.Sprintf("provider manifest %s: %s", e.Path, e.Message)
}

// WasmNotFoundError reports a wasm.file entry that names no file next to
// the manifest.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("provider manifest %s: wasm.file %s does not exist", e.ManifestPath, e.WasmFile)
}

// ProviderLoadError reports a provider whose manifest was valid but whose
// module could not be turned into a completion source. Stage is one of the
// Stage constants.
type ProviderLoadError struct {
	ProviderName string
	Stage        string
	Err          error
}

func (e *ProviderLoadError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("load provider %s: %v", e.ProviderName, e.Err)
	}
	return fmt.Sprintf("load provider %s (%s): %v", e.ProviderName, e.Stage, e.Err)
}

func (e *ProviderLoadError) Unwrap() error {
	return e.Err
}

type ProviderNotFoundError struct {
	ProviderName string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider %s is not loaded", e.ProviderName)
}

// ProviderAlreadyRegisteredError reports a second completion source under a
// name that is already in the registry.
type ProviderAlreadyRegisteredError struct {
	ProviderName string
}

func (e *ProviderAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("completion source %s is already registered", e.ProviderName)
}

// NoProvidersFoundError reports provider paths that hold no directory with
// a manifest.
type NoProvidersFoundError struct {
	Paths []string
}

func (e *NoProvidersFoundError) Error() string {
	return fmt.Sprintf("no provider manifests under %s", strings.Join(e.Paths, ", "))
}
