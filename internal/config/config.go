// Package config loads configuration from environment variables and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FetchConfig controls the open-data source fetcher.
type FetchConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	MaxRecords     int           `mapstructure:"max_records"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BaseURL        string        `mapstructure:"base_url"`
	AppToken       string        `mapstructure:"app_token"`
}

// GeoclientConfig controls the optional external geocoder. The geocoder is
// capability-gated on AppKey presence.
type GeoclientConfig struct {
	AppKey            string  `mapstructure:"app_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// PipelineConfig controls orchestrator behavior.
type PipelineConfig struct {
	SummaryMaxAge    time.Duration `mapstructure:"summary_max_age"`
	Recent311Window  time.Duration `mapstructure:"recent_311_window"`
	TransitGridCells int           `mapstructure:"transit_grid_cells"`
	AmenityGridCells int           `mapstructure:"amenity_grid_cells"`
}

// Config is the root configuration.
type Config struct {
	Env      string          `mapstructure:"env"`
	LogLevel string          `mapstructure:"log_level"`
	DBPath   string          `mapstructure:"db_path"`
	HTTPAddr string          `mapstructure:"http_addr"`
	Fetch    FetchConfig     `mapstructure:"fetch"`
	Geo      GeoclientConfig `mapstructure:"geoclient"`
	Pipeline PipelineConfig  `mapstructure:"pipeline"`
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from the environment, applying defaults. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is fine; env vars win either way
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PROPSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "data/propsignal.db")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("fetch.page_size", 1000)
	v.SetDefault("fetch.max_records", 50000)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.request_timeout", 30*time.Second)
	v.SetDefault("fetch.base_url", "https://data.cityofnewyork.us/resource")
	v.SetDefault("fetch.app_token", "")

	v.SetDefault("geoclient.app_key", "")
	v.SetDefault("geoclient.base_url", "https://api.nyc.gov/geoclient/v2")
	v.SetDefault("geoclient.requests_per_second", 8.0)
	v.SetDefault("geoclient.max_concurrent", 10)

	v.SetDefault("pipeline.summary_max_age", 24*time.Hour)
	v.SetDefault("pipeline.recent_311_window", 90*24*time.Hour)
	v.SetDefault("pipeline.transit_grid_cells", 5)
	v.SetDefault("pipeline.amenity_grid_cells", 10)
}

func validate(cfg *Config) error {
	if cfg.Fetch.PageSize <= 0 {
		return fmt.Errorf("fetch.page_size must be positive, got %d", cfg.Fetch.PageSize)
	}
	if cfg.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be positive, got %d", cfg.Fetch.MaxAttempts)
	}
	if cfg.Geo.RequestsPerSecond <= 0 {
		return fmt.Errorf("geoclient.requests_per_second must be positive, got %f", cfg.Geo.RequestsPerSecond)
	}
	if cfg.Geo.MaxConcurrent <= 0 {
		return fmt.Errorf("geoclient.max_concurrent must be positive, got %d", cfg.Geo.MaxConcurrent)
	}
	return nil
}
