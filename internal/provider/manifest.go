package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name looked up in each provider directory.
const ManifestFile = "manifest.yaml"

// Manifest represents the provider manifest.yaml structure.
type Manifest struct {
	Name              string      `yaml:"name"`
	Version           string      `yaml:"version"`
	Shortcut          string      `yaml:"shortcut"`
	Languages         LanguageSet `yaml:"languages"`
	TriggerCharacters []string    `yaml:"trigger_characters"`
	Wasm              WasmConfig  `yaml:"wasm"`
	Author            string      `yaml:"author"`
	License           string      `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	if len(m.Languages) == 0 {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "languages",
			Message: "at least one language is required",
		}
	}

	for _, c := range m.TriggerCharacters {
		if utf8.RuneCountInString(c) != 1 {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "trigger_characters",
				Message: fmt.Sprintf("trigger characters must be single characters, got %q", c),
			}
		}
	}

	if m.Wasm.File == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "wasm.file is required",
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
