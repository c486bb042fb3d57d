// Package config handles configuration loading for metaexpert.
// Values come from built-in defaults, an optional YAML file and environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. METAEXPERT_RUN_MAX_STEPS.
const EnvPrefix = "METAEXPERT"

// Config holds all configuration for metaexpert.
type Config struct {
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// ModelConfig selects and tunes the generator.
type ModelConfig struct {
	// Provider is one of openai, anthropic, gemini or mock. OpenAI-compatible
	// servers (ollama, vllm, groq) use openai with a BaseURL.
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Name        string  `mapstructure:"name" yaml:"name"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Bedrock routes anthropic requests through AWS Bedrock.
	Bedrock bool   `mapstructure:"bedrock" yaml:"bedrock"`
	Region  string `mapstructure:"region" yaml:"region,omitempty"`
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`
}

// SearchConfig selects the search backend.
type SearchConfig struct {
	// Provider is serper or duckduckgo.
	Provider   string `mapstructure:"provider" yaml:"provider"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results"`
}

// FetchConfig tunes page retrieval.
type FetchConfig struct {
	MaxLength int    `mapstructure:"max_length" yaml:"max_length"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// RunConfig bounds a single run.
type RunConfig struct {
	MaxSteps        int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxConcurrent   int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" yaml:"generate_timeout"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
}

// CacheConfig enables tool result caching.
type CacheConfig struct {
	// Backend is none, memory or redis.
	Backend string        `mapstructure:"backend" yaml:"backend"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Size    int           `mapstructure:"size" yaml:"size"`
}

// RedisConfig is used by the redis cache and the distributed run guard.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	// Guard uses redis for run id locking instead of the in-process guard.
	Guard bool `mapstructure:"guard" yaml:"guard"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// Backend is slog or zap.
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// providerKeys lists the conventional environment variables per provider.
var providerKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Load reads configuration. With an empty path it looks for metaexpert.yaml
// in the working directory and the user config directory; a missing file is
// not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("metaexpert")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(userConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Model.APIKey = os.ExpandEnv(cfg.Model.APIKey)
	cfg.Search.APIKey = os.ExpandEnv(cfg.Search.APIKey)

	if cfg.Model.APIKey == "" {
		if env, ok := providerKeys[cfg.Model.Provider]; ok {
			cfg.Model.APIKey = os.Getenv(env)
		}
	}
	if cfg.Search.APIKey == "" && cfg.Search.Provider == "serper" {
		cfg.Search.APIKey = os.Getenv("SERPER_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.temperature", d.Model.Temperature)
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.bedrock", false)
	v.SetDefault("model.region", "")
	v.SetDefault("model.profile", "")

	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.max_results", d.Search.MaxResults)

	v.SetDefault("fetch.max_length", d.Fetch.MaxLength)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)

	v.SetDefault("run.max_steps", d.Run.MaxSteps)
	v.SetDefault("run.max_concurrent", d.Run.MaxConcurrent)
	v.SetDefault("run.generate_timeout", d.Run.GenerateTimeout.String())
	v.SetDefault("run.tool_timeout", d.Run.ToolTimeout.String())

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())
	v.SetDefault("cache.size", d.Cache.Size)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("redis.guard", false)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.backend", d.Log.Backend)

	v.SetDefault("server.addr", d.Server.Addr)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o",
			Temperature: 0,
		},
		Search: SearchConfig{
			Provider:   "serper",
			MaxResults: 5,
		},
		Fetch: FetchConfig{
			MaxLength: 20000,
			UserAgent: "metaexpert/1.0",
		},
		Run: RunConfig{
			MaxSteps:        10,
			MaxConcurrent:   4,
			GenerateTimeout: 60 * time.Second,
			ToolTimeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     15 * time.Minute,
			Size:    256,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "metaexpert:",
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "text",
			Backend: "slog",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Validate rejects unknown enum values and non-positive limits.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Model.Provider, "openai", "anthropic", "gemini", "mock") {
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}
	if !oneOf(c.Search.Provider, "serper", "duckduckgo") {
		errs = append(errs, fmt.Errorf("search.provider: unknown provider %q", c.Search.Provider))
	}
	if !oneOf(c.Cache.Backend, "none", "memory", "redis") {
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if !oneOf(c.Log.Backend, "slog", "zap") {
		errs = append(errs, fmt.Errorf("log.backend: unknown backend %q", c.Log.Backend))
	}
	if c.Run.MaxSteps <= 0 {
		errs = append(errs, errors.New("run.max_steps must be positive"))
	}
	if c.Run.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("run.max_concurrent must be positive"))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, errors.New("search.max_results must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Dump renders the configuration as YAML with secrets masked.
func (c *Config) Dump() (string, error) {
	masked := *c
	masked.Model.APIKey = mask(c.Model.APIKey)
	masked.Search.APIKey = mask(c.Search.APIKey)
	masked.Redis.Password = mask(c.Redis.Password)

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// userConfigDir returns the XDG config directory for metaexpert.
func userConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "metaexpert")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "metaexpert")
	}
	return filepath.Join(home, ".config", "metaexpert")
}
