// Package config provides YAML-based configuration loading for Pitradio.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Pitradio configuration, loaded from pitradio.yaml.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	DB      DBConfig      `yaml:"db"`
	Poll    PollConfig    `yaml:"poll"`
	HTTP    HTTPConfig    `yaml:"http"`
	Slack   SlackConfig   `yaml:"slack"`
}

// DiscordConfig holds the export source settings.
type DiscordConfig struct {
	ChannelID string `yaml:"channel_id"`
	Token     string `yaml:"token"`
	// Fetcher selects the export implementation: "exporter" (DiscordChatExporter
	// CLI, the default) or "api" (direct Discord REST paging).
	Fetcher      string `yaml:"fetcher"`
	ExporterPath string `yaml:"exporter_path"`
	ExportDir    string `yaml:"export_dir"`
}

// DBConfig holds connection settings for the message database.
type DBConfig struct {
	// Driver is "mysql" or "sqlite".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path"`
}

// PollConfig drives the ingestion scheduler. Interval governs both the poll
// cadence and the trailing-window size used by ingestion and state resolution;
// the resolver's window definition assumes the two match, so there is a single
// knob on purpose.
type PollConfig struct {
	IntervalSeconds     int    `yaml:"interval_seconds"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	BackfillCron        string `yaml:"backfill_cron"`
}

// HTTPConfig holds the read API server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// SlackConfig enables best-effort ingest notifications when a bot token and
// channel are set.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Interval returns the poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// FetchTimeout returns the export fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Poll.FetchTimeoutSeconds) * time.Second
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Discord.Fetcher == "" {
		c.Discord.Fetcher = "exporter"
	}
	if c.Discord.ExporterPath == "" {
		c.Discord.ExporterPath = "DiscordChatExporter.Cli"
	}
	if c.Discord.ExportDir == "" {
		c.Discord.ExportDir = os.TempDir()
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" {
		c.DB.Database = "pitradio"
	}
	if c.DB.Path == "" {
		c.DB.Path = "pitradio.db"
	}
	if c.Poll.IntervalSeconds == 0 {
		c.Poll.IntervalSeconds = 30
	}
	if c.Poll.FetchTimeoutSeconds == 0 {
		// A stuck export call must not starve later ticks indefinitely.
		c.Poll.FetchTimeoutSeconds = 3 * c.Poll.IntervalSeconds
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Discord.ChannelID == "" {
		errs = append(errs, "discord.channel_id is required")
	}
	switch c.Discord.Fetcher {
	case "exporter", "api":
	default:
		errs = append(errs, fmt.Sprintf("discord.fetcher %q is not one of exporter, api", c.Discord.Fetcher))
	}
	switch c.DB.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not one of mysql, sqlite", c.DB.Driver))
	}
	if c.Poll.IntervalSeconds < 0 {
		errs = append(errs, "poll.interval_seconds must be positive")
	}
	if c.Slack.BotToken != "" && c.Slack.ChannelID == "" {
		errs = append(errs, "slack.channel_id is required when slack.bot_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
