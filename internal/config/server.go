package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. COMPLETION_BRIDGE_LOG_LEVEL.
const EnvPrefix = "COMPLETION_BRIDGE"

type ServerConfig struct {
	ProviderPaths  []string         `mapstructure:"provider_paths"`
	LogLevel       string           `mapstructure:"log_level"`
	MetricsEnabled bool             `mapstructure:"metrics_enabled"`
	MetricsPort    int              `mapstructure:"metrics_port"`
	Tracing        string           `mapstructure:"tracing"`
	Port           int              `mapstructure:"port"`
	Completion     CompletionConfig `mapstructure:"completion"`
	Wasm           WasmConfig       `mapstructure:"wasm"`
}

// CompletionConfig holds defaults applied to registered providers.
type CompletionConfig struct {
	// Menu label for providers whose manifest sets no shortcut.
	ShortcutDefault string `mapstructure:"shortcut_default"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Guest call timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

// Timeout returns the guest call timeout, zero when disabled.
func (w WasmConfig) Timeout() time.Duration {
	if w.ExecutionTimeout <= 0 {
		return 0
	}
	return time.Duration(w.ExecutionTimeout) * time.Second
}

// New returns a viper instance with defaults and environment binding set.
// Callers may bind command line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	// Set defaults
	v.SetDefault("provider_paths", []string{"./providers"})
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("tracing", "none")
	v.SetDefault("port", 0)
	v.SetDefault("completion.shortcut_default", "LS")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 5)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configPath (if set) into v and decodes the result.
func Load(v *viper.Viper, configPath string) (*ServerConfig, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadServerConfig(configPath string) (*ServerConfig, error) {
	return Load(New(), configPath)
}
