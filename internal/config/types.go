package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Env            string                `yaml:"env"` // "development" | "production"
	JWTSecret      string                `yaml:"jwt_secret"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	AI             AIConfig              `yaml:"ai"`
	Pipeline       PipelineConfig        `yaml:"pipeline"`
}

// DatabaseRuntimeConfig lets deployments specify connection parts instead
// of a full DSN.
type DatabaseRuntimeConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// AIConfig configures the oracle provider pool.
type AIConfig struct {
	Providers       []AIProvider       `yaml:"providers"`
	AssessModel     *AIModelAssignment `yaml:"assess_model,omitempty"`
	MaxOutputTokens int                `yaml:"max_output_tokens"`
}

// AIModelAssignment pins an operation to a provider/model pair.
type AIModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

// AIProvider describes one configured inference provider.
type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic | OpenRouter
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// PipelineConfig tunes the remediation pipeline.
type PipelineConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window"` // skip re-analysis inside this window
	OracleTimeout   time.Duration `yaml:"oracle_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RunInterval     time.Duration `yaml:"run_interval"` // cron interval for scheduled runs
}
