// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	DB      DBConfig       `mapstructure:"db"`
	Fetch   FetchConfig    `mapstructure:"fetch"`
	Ingest  IngestConfig   `mapstructure:"ingest"`
	Sched   SchedConfig    `mapstructure:"sched"`
	Report  ReportConfig   `mapstructure:"report"`
	Scraper ScraperConfig  `mapstructure:"scraper"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Sources []SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store, which is only suitable for development.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// FetchConfig configures the HTTP fetch layer shared by all extractors.
type FetchConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	MaxBodyBytes     int    `mapstructure:"max_body_bytes"`
	// PerHostRPS throttles requests against a single host; zero disables.
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// IngestConfig governs the ingestion cycle.
type IngestConfig struct {
	Workers int `mapstructure:"workers"`
}

// SchedConfig controls the periodic ingestion schedule.
type SchedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// ReportConfig controls the run report sinks.
type ReportConfig struct {
	JSONLDir string `mapstructure:"jsonl_dir"`
}

// ScraperConfig controls the ad hoc site scrapers.
type ScraperConfig struct {
	CacheDir string `mapstructure:"cache_dir"`
	Workers  int    `mapstructure:"workers"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig seeds one source when the sources table is empty.
type SourceConfig struct {
	Name         string `mapstructure:"name"`
	URL          string `mapstructure:"url"`
	Type         string `mapstructure:"type"`
	Jurisdiction string `mapstructure:"jurisdiction"`
	Active       bool   `mapstructure:"active"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("fetch.user_agent", "DocBridge/1.0 (+https://github.com/regdata/docbridge)")
	v.SetDefault("fetch.timeout_seconds", 25)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 500)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)
	v.SetDefault("fetch.per_host_rps", 2.0)
	v.SetDefault("fetch.per_host_burst", 4)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("sched.enabled", true)
	v.SetDefault("sched.spec", "0 */3 * * *")
	v.SetDefault("report.jsonl_dir", "reports")
	v.SetDefault("scraper.cache_dir", ".scraper-cache")
	v.SetDefault("scraper.workers", 8)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be > 0")
	}
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	for i, src := range c.Sources {
		if src.Name == "" || src.URL == "" {
			return fmt.Errorf("sources[%d]: name and url are required", i)
		}
		if src.Type != "feed" && src.Type != "html" {
			return fmt.Errorf("sources[%d]: type must be feed or html, got %q", i, src.Type)
		}
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// FetchBackoff converts the initial backoff into a duration.
func (c Config) FetchBackoff() time.Duration {
	return time.Duration(c.Fetch.BackoffInitialMs) * time.Millisecond
}

// DBConnLifetime converts the pool lifetime into a duration.
func (c Config) DBConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeMin) * time.Minute
}
