package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "seopilot"
	defaultDBCharset  = "utf8mb4"
	defaultRedisURL   = "redis://localhost:6379/0"

	defaultFreshnessWindow = 24 * time.Hour
	defaultOracleTimeout   = 60 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultRunInterval     = 6 * time.Hour
	defaultMaxOutputTokens = 1024
)

// Load reads and normalizes the YAML config at path. A missing file is not
// an error; defaults apply.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.ToLower(strings.TrimSpace(c.Env)) != "production"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("SEOPILOT_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("SEOPILOT_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("SEOPILOT_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SEOPILOT_ENV"); v != "" {
		cfg.Env = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.DSN == "" {
		cfg.DSN = resolveDSN(cfg.Database)
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = defaultRedisURL
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.Pipeline.FreshnessWindow <= 0 {
		cfg.Pipeline.FreshnessWindow = defaultFreshnessWindow
	}
	if cfg.Pipeline.OracleTimeout <= 0 {
		cfg.Pipeline.OracleTimeout = defaultOracleTimeout
	}
	if cfg.Pipeline.WriteTimeout <= 0 {
		cfg.Pipeline.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Pipeline.RunInterval <= 0 {
		cfg.Pipeline.RunInterval = defaultRunInterval
	}
}

func resolveDSN(db DatabaseRuntimeConfig) string {
	if strings.TrimSpace(db.DSN) != "" {
		return db.DSN
	}

	host := orDefault(db.Host, defaultDBHost)
	port := db.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := orDefault(db.User, defaultDBUser)
	password := orDefault(db.Password, defaultDBPassword)
	name := orDefault(db.Name, defaultDBName)
	charset := orDefault(db.Charset, defaultDBCharset)

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		user, password, host, port, name, charset)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
