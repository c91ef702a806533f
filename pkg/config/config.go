// Package config loads the function's settings from defaults, an optional
// YAML file and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdhe/bedrock-inference-function/pkg/provider"
)

// Config is the complete function configuration.
type Config struct {
	Bedrock  BedrockConfig  `yaml:"bedrock"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// BedrockConfig selects the region and model the function calls.
type BedrockConfig struct {
	Region      string `yaml:"region"`
	ModelID     string `yaml:"model_id"`
	Endpoint    string `yaml:"endpoint"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// DefaultsConfig holds values applied when the request omits them.
type DefaultsConfig struct {
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	PreviewLength int     `yaml:"preview_length"`
}

// CacheConfig holds Redis response cache settings.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Address     string        `yaml:"address"`
	PasswordEnv string        `yaml:"password_env"`
	Password    string        `yaml:"-"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`
	KeyPrefix   string        `yaml:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig is used by the local HTTP harness only.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Bedrock: BedrockConfig{
			Region:  provider.DefaultRegion,
			ModelID: provider.DefaultModelID,
		},
		Defaults: DefaultsConfig{
			MaxTokens:     1000,
			Temperature:   0.7,
			PreviewLength: 100,
		},
		Cache: CacheConfig{
			Address:   "localhost:6379",
			TTL:       time.Hour,
			KeyPrefix: "bedrock_cache:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load builds the configuration in layers:
//  1. Built-in defaults
//  2. YAML file (explicit path, INFERENCE_CONFIG env, ./config.yaml)
//  3. Environment variable overrides
//  4. Validation
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if filePath := discoverConfigFile(path); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if cfg.Cache.PasswordEnv != "" && cfg.Cache.Password == "" {
		cfg.Cache.Password = os.Getenv(cfg.Cache.PasswordEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func discoverConfigFile(path string) string {
	if path != "" {
		return path
	}
	if envPath := os.Getenv("INFERENCE_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("BEDROCK_ENDPOINT"); v != "" {
		cfg.Bedrock.Endpoint = v
	}
	if v := os.Getenv("BEDROCK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BEDROCK_MAX_ATTEMPTS: %w", err)
		}
		cfg.Bedrock.MaxAttempts = n
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Address = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Cache.DB = n
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = n
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Bedrock.Region == "" {
		return fmt.Errorf("bedrock.region is required")
	}
	if c.Bedrock.ModelID == "" {
		return fmt.Errorf("bedrock.model_id is required")
	}
	if c.Bedrock.MaxAttempts < 0 {
		return fmt.Errorf("bedrock.max_attempts must not be negative")
	}
	if c.Defaults.MaxTokens <= 0 {
		return fmt.Errorf("defaults.max_tokens must be positive")
	}
	if c.Defaults.PreviewLength <= 0 {
		return fmt.Errorf("defaults.preview_length must be positive")
	}
	if c.Cache.Enabled {
		if c.Cache.Address == "" {
			return fmt.Errorf("cache.address is required when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
		}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
