// Package config handles configuration loading for polyflow.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// Config holds all configuration for polyflow.
type Config struct {
	Inference InferenceConfig `mapstructure:"inference"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Selector  SelectorConfig  `mapstructure:"selector"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	History   HistoryConfig   `mapstructure:"history"`
}

// InferenceConfig addresses the external inference services.
type InferenceConfig struct {
	// Provider selects the inference backend: "vllm" or "anthropic".
	Provider string `mapstructure:"provider"`
	// SmallEndpoint is the base URL serving small-variant models.
	SmallEndpoint string `mapstructure:"small_endpoint"`
	// LargeEndpoint is the base URL serving large-variant models.
	LargeEndpoint string `mapstructure:"large_endpoint"`
	// RouterModel is the model used for task decomposition.
	RouterModel string `mapstructure:"router_model"`
	// EvaluatorModel is the model used for result evaluation.
	EvaluatorModel string `mapstructure:"evaluator_model"`
	// Adapters maps each domain to its served adapter/model name.
	Adapters map[string]string `mapstructure:"adapters"`
	// Timeout bounds a single model call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries bounds transient-failure retries per model call.
	MaxRetries int `mapstructure:"max_retries"`
}

// Endpoint returns the base URL for a model variant.
func (c InferenceConfig) Endpoint(variant models.Variant) string {
	if variant == models.VariantLarge {
		return c.LargeEndpoint
	}
	return c.SmallEndpoint
}

// AdapterModel returns the served model name for a domain, falling back to
// the evaluator model when no adapter is configured.
func (c InferenceConfig) AdapterModel(domain models.Domain) string {
	if name, ok := c.Adapters[string(domain)]; ok && name != "" {
		return name
	}
	return c.EvaluatorModel
}

// AnthropicConfig holds settings for the alternate Anthropic provider.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	SmallModel    string `mapstructure:"small_model"`
	LargeModel    string `mapstructure:"large_model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// SelectorConfig configures model-variant selection.
type SelectorConfig struct {
	// Mode is "static" or "remote".
	Mode string `mapstructure:"mode"`
	// URL is the remote classifier base URL (remote mode only).
	URL string `mapstructure:"url"`
	// Timeout bounds a single classifier call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Default is the variant used in static mode and on classifier failure.
	Default string `mapstructure:"default"`
}

// LoopConfig bounds the orchestration loop.
type LoopConfig struct {
	// MaxRetry is the decompose-schedule-evaluate retry budget.
	MaxRetry int `mapstructure:"max_retry"`
	// MaxInflight caps concurrent node dispatches within one scheduler run.
	MaxInflight int `mapstructure:"max_inflight"`
	// DecomposeAttempts bounds structured-output attempts per decomposition.
	DecomposeAttempts int `mapstructure:"decompose_attempts"`
}

// RegistryConfig points at an optional domain registry override file.
type RegistryConfig struct {
	// Path is a registry YAML file overlaid on the built-in defaults.
	Path string `mapstructure:"path"`
	// Watch enables hot reload of the registry file.
	Watch bool `mapstructure:"watch"`
}

// HistoryConfig controls the optional local run history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
//  1. Environment variables (ANTHROPIC_API_KEY, POLYFLOW_*)
//  2. Project config (.polyflow.yaml in the current directory or a parent)
//  3. User config (~/.config/polyflow/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("POLYFLOW")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("inference.small_endpoint", "VLLM_SMALL_ENDPOINT")
	v.BindEnv("inference.large_endpoint", "VLLM_LARGE_ENDPOINT")
	v.BindEnv("selector.url", "ROUTER_SERVICE_URL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("inference.provider", "vllm")
	v.SetDefault("inference.small_endpoint", "http://localhost:8000/v1")
	v.SetDefault("inference.large_endpoint", "http://localhost:8001/v1")
	v.SetDefault("inference.router_model", "meta-llama/Llama-3.1-8B")
	v.SetDefault("inference.evaluator_model", "meta-llama/Llama-3.1-8B")
	v.SetDefault("inference.adapters", map[string]string{
		"commonsense": "csqa-lora",
		"medical":     "medqa-lora",
		"law":         "casehold-lora",
		"math":        "mathqa-lora",
	})
	v.SetDefault("inference.timeout", 60*time.Second)
	v.SetDefault("inference.max_retries", 2)

	v.SetDefault("anthropic.small_model", "claude-3-5-haiku-20241022")
	v.SetDefault("anthropic.large_model", "claude-sonnet-4-20250514")

	v.SetDefault("selector.mode", "static")
	v.SetDefault("selector.url", "http://localhost:8002")
	v.SetDefault("selector.timeout", 5*time.Second)
	v.SetDefault("selector.default", string(models.VariantSmall))

	v.SetDefault("loop.max_retry", 3)
	v.SetDefault("loop.max_inflight", 4)
	v.SetDefault("loop.decompose_attempts", 3)

	v.SetDefault("registry.watch", false)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", defaultHistoryPath())
}

// getUserConfigDir returns the XDG config directory for polyflow.
func getUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "polyflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".polyflow"
	}
	return filepath.Join(home, ".config", "polyflow")
}

// defaultHistoryPath returns the XDG data path for the run history database.
func defaultHistoryPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "polyflow", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".polyflow", "history.db")
	}
	return filepath.Join(home, ".local", "share", "polyflow", "history.db")
}

// findProjectConfig walks up from the current directory looking for
// .polyflow.yaml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".polyflow.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnv expands ${VAR} references in a config value.
func expandEnv(value string) string {
	return os.Expand(value, func(name string) string {
		return os.Getenv(name)
	})
}
