// Package config defines the application configuration and its loader.
package config

// Config represents the full application configuration.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider"`
	HTTP          HTTPConfig          `yaml:"http"`
	Review        ReviewConfig        `yaml:"review"`
	Git           GitConfig           `yaml:"git"`
	Store         StoreConfig         `yaml:"store"`
	Output        OutputConfig        `yaml:"output"`
	Redaction     RedactionConfig     `yaml:"redaction"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProviderConfig configures the LLM provider.
type ProviderConfig struct {
	// Name selects the provider implementation: "openai" or "static".
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseURL"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	Timeout string `yaml:"timeout"`
}

// ReviewConfig tunes the review pipeline.
type ReviewConfig struct {
	// TokenLimit caps the size of one packed request to the model.
	TokenLimit int `yaml:"tokenLimit"`

	// LLMConcurrency bounds concurrent files in flight.
	LLMConcurrency int `yaml:"llmConcurrency"`

	// ScmConcurrency bounds concurrent source-control calls.
	ScmConcurrency int `yaml:"scmConcurrency"`

	// Resume continues a previously interrupted review of the same commit.
	Resume bool `yaml:"resume"`
}

type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type OutputConfig struct {
	Directory string `yaml:"directory"`
}

type RedactionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, error
	Format string `yaml:"format"` // json, human, or auto (human on a terminal)
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}
