package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
)

// Config holds all energy advisor configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Energy      EnergyConfig      `mapstructure:"energy"`
	Signals     SignalsConfig     `mapstructure:"signals"`
	Budget      BudgetConfig      `mapstructure:"budget"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnergyConfig tunes the energy model and its refresh schedule.
type EnergyConfig struct {
	TickInterval    time.Duration             `mapstructure:"tick_interval"`
	Mode            string                    `mapstructure:"mode"`
	Location        string                    `mapstructure:"location"`
	DayStart        time.Duration             `mapstructure:"day_start"`
	BaselineDrain   float64                   `mapstructure:"baseline_drain"`
	SleepTarget     time.Duration             `mapstructure:"sleep_target"`
	CriticalPenalty float64                   `mapstructure:"critical_penalty"`
	Modes           map[string]energy.Scaling `mapstructure:"modes"`
	Latitude        float64                   `mapstructure:"latitude"`
	Longitude       float64                   `mapstructure:"longitude"`
}

// SignalsConfig points at the YAML files the signal providers read.
type SignalsConfig struct {
	HealthFile      string `mapstructure:"health_file"`
	EnvironmentFile string `mapstructure:"environment_file"`
}

// BudgetConfig defines per-user remote analysis spend limits.
type BudgetConfig struct {
	DailyCapUnits        float64 `mapstructure:"daily_cap_units"`
	ExpectedOutputTokens int64   `mapstructure:"expected_output_tokens"`
	WarnFraction         float64 `mapstructure:"warn_fraction"`
}

// CacheConfig defines analysis caching.
type CacheConfig struct {
	TTL                   time.Duration `mapstructure:"ttl"`
	DegradedTTL           time.Duration `mapstructure:"degraded_ttl"`
	MemorySize            int           `mapstructure:"memory_size"`
	LevelBucket           float64       `mapstructure:"level_bucket"`
	SimilarLevelTolerance float64       `mapstructure:"similar_level_tolerance"`
	InvalidateLevelDelta  float64       `mapstructure:"invalidate_level_delta"`
	Backend               string        `mapstructure:"backend"`
	RedisURL              string        `mapstructure:"redis_url"`
}

// ReliabilityConfig defines the circuit breaker and retry policy.
type ReliabilityConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	Multiplier       float64       `mapstructure:"multiplier"`
	Jitter           float64       `mapstructure:"jitter"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	CallsPerSecond   float64       `mapstructure:"calls_per_second"`
}

// RemoteConfig selects the remote analysis backend.
type RemoteConfig struct {
	Kind     string `mapstructure:"kind"` // none, http or anthropic
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Provider string `mapstructure:"provider"`
}

// AnalysisConfig defines result validity.
type AnalysisConfig struct {
	Epoch time.Duration `mapstructure:"epoch"`
}

// PricingConfig defines pricing data settings.
type PricingConfig struct {
	Dir string `mapstructure:"dir"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".advisor"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".advisor", "advisor.db"))

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	def := energy.DefaultConfig()
	v.SetDefault("energy.tick_interval", "5m")
	v.SetDefault("energy.mode", string(energy.ModeStandard))
	v.SetDefault("energy.location", "UTC")
	v.SetDefault("energy.day_start", "4h")
	v.SetDefault("energy.baseline_drain", def.BaselineDrain)
	v.SetDefault("energy.sleep_target", def.SleepTarget.String())
	v.SetDefault("energy.critical_penalty", def.CriticalPenalty)

	v.SetDefault("budget.daily_cap_units", 0.05)
	v.SetDefault("budget.expected_output_tokens", 400)
	v.SetDefault("budget.warn_fraction", 0.8)

	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.degraded_ttl", "0s")
	v.SetDefault("cache.memory_size", 512)
	v.SetDefault("cache.level_bucket", 5.0)
	v.SetDefault("cache.similar_level_tolerance", 15.0)
	v.SetDefault("cache.invalidate_level_delta", 15.0)
	v.SetDefault("cache.backend", "sqlite")

	v.SetDefault("reliability.failure_threshold", 3)
	v.SetDefault("reliability.cooldown", "30s")
	v.SetDefault("reliability.max_attempts", 3)
	v.SetDefault("reliability.initial_backoff", "200ms")
	v.SetDefault("reliability.max_backoff", "5s")
	v.SetDefault("reliability.multiplier", 2.0)
	v.SetDefault("reliability.jitter", 0.2)
	v.SetDefault("reliability.call_timeout", "10s")
	v.SetDefault("reliability.calls_per_second", 0.0)

	v.SetDefault("remote.kind", "none")
	v.SetDefault("remote.model", "claude-haiku-4-5")
	v.SetDefault("remote.provider", "anthropic")

	v.SetDefault("analysis.epoch", "8h")
	v.SetDefault("pricing.dir", "pricing/")
	v.SetDefault("alerts.slack.channel", "#energy-advisor")
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Remote.Kind {
	case "none", "http", "anthropic":
	default:
		return fmt.Errorf("remote.kind %q: want none, http or anthropic", c.Remote.Kind)
	}
	if c.Remote.Kind == "http" && c.Remote.URL == "" {
		return fmt.Errorf("remote.url is required for remote.kind http")
	}

	switch c.Cache.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("cache.backend %q: want sqlite or redis", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required for cache.backend redis")
	}

	switch energy.Mode(c.Energy.Mode) {
	case energy.ModeStandard, energy.ModeAthlete, energy.ModeRecovery:
	default:
		if _, ok := c.Energy.Modes[c.Energy.Mode]; !ok {
			return fmt.Errorf("energy.mode %q is not defined", c.Energy.Mode)
		}
	}

	if c.Energy.DayStart < 0 || c.Energy.DayStart >= 24*time.Hour {
		return fmt.Errorf("energy.day_start must be within [0, 24h)")
	}
	if c.Budget.DailyCapUnits < 0 {
		return fmt.Errorf("budget.daily_cap_units must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves energy.location.
func (c *Config) Location() (*time.Location, error) {
	if c.Energy.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Energy.Location)
	if err != nil {
		return nil, fmt.Errorf("energy.location: %w", err)
	}
	return loc, nil
}

// EnergyModelConfig merges configured overrides onto the model defaults.
func (c *Config) EnergyModelConfig() energy.Config {
	cfg := energy.DefaultConfig()
	if loc, err := c.Location(); err == nil {
		cfg.Location = loc
	}
	cfg.DayStart = c.Energy.DayStart
	if c.Energy.BaselineDrain > 0 {
		cfg.BaselineDrain = c.Energy.BaselineDrain
	}
	if c.Energy.SleepTarget > 0 {
		cfg.SleepTarget = c.Energy.SleepTarget
	}
	if c.Energy.CriticalPenalty > 0 {
		cfg.CriticalPenalty = c.Energy.CriticalPenalty
	}
	for name, s := range c.Energy.Modes {
		cfg.Modes[energy.Mode(name)] = s
	}
	return cfg
}
