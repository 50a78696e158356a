// Package config loads the engine's configuration via viper, replacing
// the teacher's hand-rolled yaml.Decode(os.Open(path)) loader with
// env-override support in the manner of the pack's refyne CLI
// (viper.SetEnvPrefix + AutomaticEnv), scoped down to the enumerated
// options spec.md §6 names.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CacheMode is one of CACHE_MODE's four values.
type CacheMode string

const (
	CacheDisabled CacheMode = "disabled"
	CacheEnabled  CacheMode = "enabled"
	CacheBypass   CacheMode = "bypass"
	CacheReadOnly CacheMode = "read_only"
)

// DefaultStrategy is one of DEFAULT_STRATEGY's four values.
type DefaultStrategy string

const (
	StrategySpeedFirst   DefaultStrategy = "speed_first"
	StrategyQualityFirst DefaultStrategy = "quality_first"
	StrategyCostFirst    DefaultStrategy = "cost_first"
	StrategyAdaptive     DefaultStrategy = "adaptive"
)

// CircuitBreakerConfig groups the CIRCUIT_BREAKER_* options.
type CircuitBreakerConfig struct {
	TimeoutMs         int     `mapstructure:"timeoutMs"`
	ErrorThresholdPct float64 `mapstructure:"errorThresholdPct"`
	ResetTimeoutMs    int     `mapstructure:"resetTimeoutMs"`
	MinRequests       int     `mapstructure:"minRequests"`
}

// SessionConfig groups the SESSION_* options.
type SessionConfig struct {
	StoragePath       string `mapstructure:"storagePath"`
	AutoCleanup       bool   `mapstructure:"autoCleanup"`
	CleanupIntervalMs int    `mapstructure:"cleanupIntervalMs"`
}

// RedisConfig configures the remote cache/rate-limit backend. Unlike the
// teacher's RedisConfig (a bare URL string nothing ever dialed), this one
// is actually consumed by cache.RedisBackend and ratelimit.Limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnthropicConfig configures the sole AI collaborator client this engine
// binds, replacing the teacher's three-provider LLMConfig.
type AnthropicConfig struct {
	APIKey string `mapstructure:"apiKey"`
	Model  string `mapstructure:"model"`
}

// Config is the full set of enumerated options spec.md §6 names.
type Config struct {
	MaxConcurrentJobs int `mapstructure:"maxConcurrentJobs"`
	ScrapeTimeoutMs   int `mapstructure:"scrapeTimeoutMs"`
	HTTPTimeoutMs     int `mapstructure:"httpTimeoutMs"`
	ReaderTimeoutMs   int `mapstructure:"readerTimeoutMs"`
	HeadlessTimeoutMs int `mapstructure:"headlessTimeoutMs"`
	MinContentLength  int `mapstructure:"minContentLength"`

	CacheMode CacheMode `mapstructure:"cacheMode"`
	CacheTTLS int       `mapstructure:"cacheTtlS"`

	DefaultStrategy DefaultStrategy `mapstructure:"defaultStrategy"`

	MaxRetries         int `mapstructure:"maxRetries"`
	RetryBackoffBaseMs int `mapstructure:"retryBackoffBaseMs"`

	RateLimitWindowMs int64 `mapstructure:"rateLimitWindowMs"`
	RateLimitMax      int64 `mapstructure:"rateLimitMax"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
	Session        SessionConfig        `mapstructure:"session"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Anthropic      AnthropicConfig      `mapstructure:"anthropic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("maxConcurrentJobs", 10)
	v.SetDefault("scrapeTimeoutMs", 30000)
	v.SetDefault("httpTimeoutMs", 10000)
	v.SetDefault("readerTimeoutMs", 15000)
	v.SetDefault("headlessTimeoutMs", 15000)
	v.SetDefault("minContentLength", 200)

	v.SetDefault("cacheMode", string(CacheEnabled))
	v.SetDefault("cacheTtlS", 3600)

	v.SetDefault("defaultStrategy", string(StrategySpeedFirst))

	v.SetDefault("maxRetries", 3)
	v.SetDefault("retryBackoffBaseMs", 1000)

	v.SetDefault("rateLimitWindowMs", 1000)
	v.SetDefault("rateLimitMax", 10)

	v.SetDefault("circuitBreaker.timeoutMs", 10000)
	v.SetDefault("circuitBreaker.errorThresholdPct", 50.0)
	v.SetDefault("circuitBreaker.resetTimeoutMs", 30000)
	v.SetDefault("circuitBreaker.minRequests", 4)

	v.SetDefault("session.storagePath", "./data/sessions")
	v.SetDefault("session.autoCleanup", true)
	v.SetDefault("session.cleanupIntervalMs", 3600000)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
}

// Load reads configuration from path (if non-empty) or ./config.yaml, then
// layers SCRAPEENGINE_-prefixed environment variables on top, the way the
// pack's refyne CLI layers REFYNE_-prefixed env vars over its own viper
// config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SCRAPEENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, cfg.Validate()
}

// Validate performs basic sanity checks, in the spirit of the teacher's
// Config.Validate but scoped to this engine's own enumerated options.
func (cfg *Config) Validate() error {
	switch cfg.CacheMode {
	case CacheDisabled, CacheEnabled, CacheBypass, CacheReadOnly:
	default:
		return fmt.Errorf("unsupported cacheMode: %s", cfg.CacheMode)
	}

	switch cfg.DefaultStrategy {
	case StrategySpeedFirst, StrategyQualityFirst, StrategyCostFirst, StrategyAdaptive:
	default:
		return fmt.Errorf("unsupported defaultStrategy: %s", cfg.DefaultStrategy)
	}

	if cfg.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("maxConcurrentJobs must be positive")
	}

	return nil
}

// ScrapeTimeout is ScrapeTimeoutMs as a time.Duration, a convenience the
// teacher's config never needed since its timeouts were int fields used
// directly by fiber handlers and an http.Client literal.
func (cfg *Config) ScrapeTimeout() time.Duration {
	return time.Duration(cfg.ScrapeTimeoutMs) * time.Millisecond
}
