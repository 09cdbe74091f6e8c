// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs fetching and traversal defaults.
type CrawlerConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxDepthDefault   int    `mapstructure:"max_depth_default"`
	MaxPagesDefault   int    `mapstructure:"max_pages_default"`
	MaxPagesLimit     int    `mapstructure:"max_pages_limit"`
	MaxDepthLimit     int    `mapstructure:"max_depth_limit"`
	MaxLinksPerPage   int    `mapstructure:"max_links_per_page"`
	MaxScriptsPerPage int    `mapstructure:"max_scripts_per_page"`
}

// SummarizerConfig points at an OpenAI-compatible completion endpoint. An
// empty endpoint disables the AI path entirely; heuristics take over.
type SummarizerConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// JobsConfig controls job registry housekeeping.
type JobsConfig struct {
	TTLMinutes           int `mapstructure:"ttl_minutes"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `mapstructure:"backend"`
}

// SnapshotConfig controls raw page archiving.
type SnapshotConfig struct {
	// Backend is "none", "memory", or "gcs".
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int    `mapstructure:"max_conns"`
	MinConns           int    `mapstructure:"min_conns"`
	ConnLifetimeMinute int    `mapstructure:"conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for job completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("crawler.user_agent", "doc-harvester/0.1")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.max_depth_default", 1)
	v.SetDefault("crawler.max_pages_default", 10)
	v.SetDefault("crawler.max_pages_limit", 100)
	v.SetDefault("crawler.max_depth_limit", 5)
	v.SetDefault("crawler.max_links_per_page", 3)
	v.SetDefault("crawler.max_scripts_per_page", 5)
	v.SetDefault("summarizer.model", "gpt-4o-mini")
	v.SetDefault("summarizer.timeout_seconds", 30)
	v.SetDefault("jobs.ttl_minutes", 60)
	v.SetDefault("jobs.sweep_interval_minutes", 5)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("snapshot.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 || c.Crawler.MaxPagesDefault > c.Crawler.MaxPagesLimit {
		return fmt.Errorf("crawler.max_pages_default must be in 1..%d", c.Crawler.MaxPagesLimit)
	}
	if c.Crawler.MaxDepthDefault < 0 || c.Crawler.MaxDepthDefault > c.Crawler.MaxDepthLimit {
		return fmt.Errorf("crawler.max_depth_default must be in 0..%d", c.Crawler.MaxDepthLimit)
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when storage.backend is postgres")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or postgres, got %q", c.Storage.Backend)
	}
	switch c.Snapshot.Backend {
	case "none", "memory":
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set when snapshot.backend is gcs")
		}
	default:
		return fmt.Errorf("snapshot.backend must be none, memory, or gcs, got %q", c.Snapshot.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout returns the per-page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// SummarizeTimeout returns the per-call AI completion budget.
func (c Config) SummarizeTimeout() time.Duration {
	return time.Duration(c.Summarizer.TimeoutSeconds) * time.Second
}

// JobTTL returns how long finished job records stay queryable.
func (c Config) JobTTL() time.Duration {
	return time.Duration(c.Jobs.TTLMinutes) * time.Minute
}

// SweepInterval returns the eviction sweep cadence.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Jobs.SweepIntervalMinutes) * time.Minute
}
