// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Verify   VerifyConfig   `yaml:"verify" mapstructure:"verify"`
	Sweep    SweepConfig    `yaml:"sweep" mapstructure:"sweep"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite", "postgres", "redis"
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
}

// ProviderConfig holds job board API credentials and endpoint settings.
// AppID/AppKey are deliberately not validated here: the engine starts without
// them and individual searches fail with a configuration error instead.
type ProviderConfig struct {
	AppID          string  `yaml:"app_id" mapstructure:"app_id"`
	AppKey         string  `yaml:"app_key" mapstructure:"app_key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	DefaultCountry string  `yaml:"default_country" mapstructure:"default_country"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// CacheConfig configures retention of cached searches and listings.
type CacheConfig struct {
	RetentionDays  int `yaml:"retention_days" mapstructure:"retention_days"`
	SweepBatchSize int `yaml:"sweep_batch_size" mapstructure:"sweep_batch_size"`
}

// SearchConfig configures the search orchestrator and query optimizer.
type SearchConfig struct {
	DailyBudget  int    `yaml:"daily_budget" mapstructure:"daily_budget"`
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
}

// VerifyConfig configures the listing verification engine.
type VerifyConfig struct {
	BasicAgeDays        int `yaml:"basic_age_days" mapstructure:"basic_age_days"`
	AdvancedAgeDays     int `yaml:"advanced_age_days" mapstructure:"advanced_age_days"`
	BasicTimeoutSecs    int `yaml:"basic_timeout_secs" mapstructure:"basic_timeout_secs"`
	AdvancedTimeoutSecs int `yaml:"advanced_timeout_secs" mapstructure:"advanced_timeout_secs"`
	MaxConcurrentProbes int `yaml:"max_concurrent_probes" mapstructure:"max_concurrent_probes"`
}

// SweepConfig configures periodic expiry sweeping in serve mode.
type SweepConfig struct {
	IntervalHours int `yaml:"interval_hours" mapstructure:"interval_hours"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "jobscout.db")
	// Empty defaults register the keys so env-only values survive Unmarshal.
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("provider.app_id", "")
	v.SetDefault("provider.app_key", "")
	v.SetDefault("search.taxonomy_path", "")
	v.SetDefault("provider.base_url", "https://api.adzuna.com/v1/api/jobs")
	v.SetDefault("provider.default_country", "us")
	v.SetDefault("provider.rate_per_sec", 2.0)
	v.SetDefault("cache.retention_days", 20)
	v.SetDefault("cache.sweep_batch_size", 100)
	v.SetDefault("search.daily_budget", 250)
	v.SetDefault("search.page_size", 10)
	v.SetDefault("verify.basic_age_days", 10)
	v.SetDefault("verify.advanced_age_days", 15)
	v.SetDefault("verify.basic_timeout_secs", 5)
	v.SetDefault("verify.advanced_timeout_secs", 10)
	v.SetDefault("verify.max_concurrent_probes", 8)
	v.SetDefault("sweep.interval_hours", 6)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
