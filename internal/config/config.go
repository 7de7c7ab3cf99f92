// Package config handles configuration loading for ratesd.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Feed    FeedConfig    `mapstructure:"feed"    yaml:"feed"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	Refresh RefreshConfig `mapstructure:"refresh" yaml:"refresh"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// FeedConfig holds upstream feed settings.
type FeedConfig struct {
	URL     string        `mapstructure:"url"     yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig holds local snapshot settings.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RefreshConfig holds the daily refresh schedule.
type RefreshConfig struct {
	MinuteOfDay int `mapstructure:"minute_of_day" yaml:"minute_of_day"` // minutes after midnight CET
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.ratesd/config.yaml (home directory)
//  3. /etc/ratesd/config.yaml (system)
//
// Environment variables override config file values.
// Format: RATESD_<SECTION>_<KEY>, e.g., RATESD_REFRESH_MINUTE_OF_DAY.
// A .env file in the working directory is loaded first so dev shells can
// keep their overrides next to the checkout.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".ratesd"))
	v.AddConfigPath("/etc/ratesd")

	// Environment variable settings
	v.SetEnvPrefix("RATESD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("RATESD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.url", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist.xml")
	v.SetDefault("feed.timeout", "30s")

	// Cache defaults
	v.SetDefault("cache.path", "data/eurofxref-hist.xml")

	// Refresh defaults: 16:30 CET, after the ECB's ~16:00 publication
	v.SetDefault("refresh.minute_of_day", 16*60+30)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url must not be empty")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive, got %s", c.Feed.Timeout)
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path must not be empty")
	}
	if c.Refresh.MinuteOfDay < 0 || c.Refresh.MinuteOfDay > 1439 {
		return fmt.Errorf("refresh.minute_of_day must be within [0, 1439], got %d", c.Refresh.MinuteOfDay)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be within (0, 65535], got %d", c.API.Port)
	}
	return nil
}

// Addr returns the host:port the API server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
