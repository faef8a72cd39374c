// Package config loads and validates the YAML-shaped configuration that
// drives an analysis run.
//
// # Overview
//
// Configuration is a plain struct decoded with gopkg.in/yaml.v3 and then
// checked with github.com/go-playground/validator/v10. The one
// environment indirection supported is `model.api_key_env` (e.g.
// `api_key_env: OPENAI_API_KEY`), resolved from the process environment
// at load time; a name that resolves to an empty value aborts startup
// with a ConfigError. No other key has an `_env` form.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider enumerates the supported LLM backends (spec.md §6.1).
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGroq      Provider = "groq"
	ProviderOllama    Provider = "ollama"
)

// ExecutionMode enumerates the cognitive-style fan-out strategy (spec.md §4.7).
type ExecutionMode string

const (
	ModeStandard   ExecutionMode = "standard"
	ModeEnhanced   ExecutionMode = "enhanced"
	ModeDreamTeam  ExecutionMode = "dream_team"
)

// InputType enumerates how input.path/inputs is interpreted.
type InputType string

const (
	InputTypeFile      InputType = "file"
	InputTypeDirectory InputType = "directory"
	InputTypeInputs    InputType = "inputs"
)

// AnalysisConfig holds the `analysis.*` section.
type AnalysisConfig struct {
	Name      string `yaml:"name" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`
}

// ModelConfig holds the `model.*` section.
//
// Exactly one of APIKey or APIKeyEnv should be set; APIKeyEnv takes
// precedence and is resolved by Parse before validation runs, so
// everything after it sees the resolved value, never the env var name.
// APIKey itself carries no validation tag.
type ModelConfig struct {
	Provider   Provider `yaml:"provider" validate:"required,oneof=openai anthropic groq ollama"`
	APIKey     string   `yaml:"api_key"`
	APIKeyEnv  string   `yaml:"api_key_env"`
	BaseURL    string   `yaml:"base_url"`
	Name       string   `yaml:"name" validate:"required"`
}

// InputSource is one element of `input.inputs[]`.
type InputSource struct {
	Path string `yaml:"path" validate:"required"`
	Type string `yaml:"type"`
}

// InputConfig holds the `input.*` section.
type InputConfig struct {
	Type    InputType     `yaml:"type" validate:"required,oneof=file directory inputs"`
	Path    string        `yaml:"path"`
	Inputs  []InputSource `yaml:"inputs"`
	Exclude []string      `yaml:"exclude"`
}

// ExecutionConfig holds the `execution.*` section.
type ExecutionConfig struct {
	Mode ExecutionMode `yaml:"mode" validate:"required,oneof=standard enhanced dream_team"`
}

// TelemetryConfig holds the `telemetry.*` section controlling the
// OpenTelemetry tracer provider (internal/telemetry). Absent entirely,
// tracing stays a no-op, matching Init's safe-default for one-off runs.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Config is the top-level decoded YAML document.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis" validate:"required"`
	Model     ModelConfig     `yaml:"model" validate:"required"`
	Input     InputConfig     `yaml:"input" validate:"required"`
	Execution ExecutionConfig `yaml:"execution"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ConfigError signals a missing required key or an unresolvable
// environment-variable indirection; it is fatal at startup (spec.md §7).
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and decodes a YAML config file at path, resolves any
// `_env` indirections, fills in defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw YAML bytes the same way Load does, useful for tests
// and for embedding config inline.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	applyDefaults(&cfg)

	if err := resolveEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, &ConfigError{Key: "(struct)", Msg: err.Error()}
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Execution.Mode == "" {
		cfg.Execution.Mode = ModeStandard
	}
	if cfg.Analysis.OutputDir == "" {
		cfg.Analysis.OutputDir = "./stpasec-output"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "stpasec-engine"
	}
}

// resolveEnv redirects `model.api_key_env` to the named environment
// variable. A name that resolves to an empty value is a ConfigError.
func resolveEnv(cfg *Config) error {
	if cfg.Model.APIKeyEnv == "" {
		return nil
	}
	val := os.Getenv(cfg.Model.APIKeyEnv)
	if val == "" {
		return &ConfigError{
			Key: "model.api_key_env",
			Msg: fmt.Sprintf("environment variable %q is unset or empty", cfg.Model.APIKeyEnv),
		}
	}
	cfg.Model.APIKey = val
	return nil
}

// Strip returns a copy of cfg with the API key removed, for writing to
// the persisted `analysis-config.yaml` sidecar (spec.md §6.3: "secrets
// stripped").
func (c Config) Strip() Config {
	stripped := c
	stripped.Model.APIKey = ""
	return stripped
}
