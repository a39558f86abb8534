package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Images     ImagesConfig     `mapstructure:"images"`
	Variants   VariantsConfig   `mapstructure:"variants"`
	Storage    StorageConfig    `mapstructure:"storage"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// ExtractionConfig holds pipeline and merge configuration
type ExtractionConfig struct {
	DefaultMode       string        `mapstructure:"default_mode"` // rules, ai or assist
	DefaultProvider   string        `mapstructure:"default_provider"`
	ExternalTimeout   time.Duration `mapstructure:"external_timeout"`
	NameMinWords      int           `mapstructure:"name_min_words"`
	MinRuleConfidence float64       `mapstructure:"min_rule_confidence"`
	SampleSize        int           `mapstructure:"sample_size"`
	SampleConcurrency int           `mapstructure:"sample_concurrency"`
}

// ProvidersConfig holds the external extraction backends. A backend is
// registered only when it is configured.
type ProvidersConfig struct {
	FieldMap   FieldMapConfig   `mapstructure:"fieldmap"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
}

// FieldMapConfig configures the field-map HTTP backend
type FieldMapConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Path              string        `mapstructure:"path"`
	LegacyPath        string        `mapstructure:"legacy_path"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// Enabled reports whether the backend has an address
func (c FieldMapConfig) Enabled() bool {
	return c.BaseURL != ""
}

// OpenRouterConfig configures the OpenRouter chat backend
type OpenRouterConfig struct {
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// Enabled reports whether the backend has credentials
func (c OpenRouterConfig) Enabled() bool {
	return c.APIKey != ""
}

// CacheConfig holds hint cache configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "redis"
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
	TextCap       int           `mapstructure:"text_cap"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

// ImagesConfig controls where product photos may be loaded from
type ImagesConfig struct {
	AllowRemote     bool          `mapstructure:"allow_remote"`
	AllowedHosts    []string      `mapstructure:"allowed_hosts"`
	AllowLocalFiles bool          `mapstructure:"allow_local_files"`
	BaseDir         string        `mapstructure:"base_dir"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// VariantsConfig holds SKU synthesis configuration
type VariantsConfig struct {
	SeedLength       int  `mapstructure:"seed_length"`
	TokenLength      int  `mapstructure:"token_length"`
	EnsureUniqueSKUs bool `mapstructure:"ensure_unique_skus"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	MaxDrafts int    `mapstructure:"max_drafts"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; empty path searches the
// default locations
func LoadFile(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/draftlens/")
	}

	// DRAFTLENS_CACHE_REDIS_ADDR -> cache.redis_addr
	v.SetEnvPrefix("DRAFTLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present. Existing
// environment variables win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 20<<20)

	// Extraction defaults
	v.SetDefault("extraction.default_mode", "assist")
	v.SetDefault("extraction.default_provider", "")
	v.SetDefault("extraction.external_timeout", "30s")
	v.SetDefault("extraction.name_min_words", 6)
	v.SetDefault("extraction.min_rule_confidence", 0.5)
	v.SetDefault("extraction.sample_size", 64)
	v.SetDefault("extraction.sample_concurrency", 4)

	// Provider defaults
	v.SetDefault("providers.fieldmap.base_url", "")
	v.SetDefault("providers.fieldmap.path", "/v1/extract")
	v.SetDefault("providers.fieldmap.legacy_path", "/v1/extract/legacy")
	v.SetDefault("providers.fieldmap.api_key", "")
	v.SetDefault("providers.fieldmap.timeout", "30s")
	v.SetDefault("providers.fieldmap.requests_per_second", 5)
	v.SetDefault("providers.fieldmap.burst", 10)
	v.SetDefault("providers.fieldmap.max_retries", 2)
	v.SetDefault("providers.openrouter.url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("providers.openrouter.api_key", "")
	v.SetDefault("providers.openrouter.model", "google/gemini-2.5-flash")
	v.SetDefault("providers.openrouter.timeout", "60s")
	v.SetDefault("providers.openrouter.requests_per_second", 1)
	v.SetDefault("providers.openrouter.burst", 5)
	v.SetDefault("providers.openrouter.max_retries", 3)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "168h") // 7 days
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.text_cap", 2000)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "draftlens:")

	// Image defaults
	v.SetDefault("images.allow_remote", false)
	v.SetDefault("images.allowed_hosts", []string{})
	v.SetDefault("images.allow_local_files", false)
	v.SetDefault("images.base_dir", "")
	v.SetDefault("images.max_bytes", 10<<20)
	v.SetDefault("images.timeout", "10s")

	// Variant defaults
	v.SetDefault("variants.seed_length", 8)
	v.SetDefault("variants.token_length", 3)
	v.SetDefault("variants.ensure_unique_skus", false)

	// Storage defaults
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.max_drafts", 1000)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Extraction.DefaultMode {
	case "rules", "ai", "assist":
	default:
		return fmt.Errorf("extraction mode must be 'rules', 'ai' or 'assist', got: %s", config.Extraction.DefaultMode)
	}

	switch config.Extraction.DefaultProvider {
	case "":
	case "fieldmap":
		if !config.Providers.FieldMap.Enabled() {
			return fmt.Errorf("default provider 'fieldmap' requires a base URL (set DRAFTLENS_PROVIDERS_FIELDMAP_BASE_URL)")
		}
	case "openrouter":
		if !config.Providers.OpenRouter.Enabled() {
			return fmt.Errorf("default provider 'openrouter' requires an API key (set DRAFTLENS_PROVIDERS_OPENROUTER_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown default provider: %s", config.Extraction.DefaultProvider)
	}

	if config.Extraction.DefaultMode == "ai" && !config.Providers.FieldMap.Enabled() && !config.Providers.OpenRouter.Enabled() {
		return fmt.Errorf("extraction mode 'ai' requires at least one configured provider")
	}

	if config.Extraction.MinRuleConfidence < 0 || config.Extraction.MinRuleConfidence > 1 {
		return fmt.Errorf("min rule confidence must be within [0,1], got: %v", config.Extraction.MinRuleConfidence)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisAddr == "" {
		return fmt.Errorf("Redis address is required when cache type is 'redis'")
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %v", config.Cache.TTL)
	}

	return nil
}
