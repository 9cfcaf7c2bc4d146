// Package config provides YAML-based configuration loading for Floorwatch.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Floorwatch configuration, loaded from
// floorwatch.yaml.
type Config struct {
	ListenPort int            `yaml:"listen_port"`
	DB         DBConfig       `yaml:"db"`
	Presence   PresenceConfig `yaml:"presence"`
	Notify     NotifyConfig   `yaml:"notify"`
	Digest     DigestConfig   `yaml:"digest"`
}

// DBConfig selects and configures the session store backend.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite only
}

// PresenceConfig holds the liveness timing knobs. The timeout is
// deliberately a deployment parameter, not a constant: floors with flaky
// wifi run it higher.
type PresenceConfig struct {
	HeartbeatSeconds       int `yaml:"heartbeat_seconds"`
	LivenessTimeoutSeconds int `yaml:"liveness_timeout_seconds"`
	MonitorTickSeconds     int `yaml:"monitor_tick_seconds"`
}

// HeartbeatInterval is the expected client heartbeat cadence.
func (p PresenceConfig) HeartbeatInterval() time.Duration {
	return time.Duration(p.HeartbeatSeconds) * time.Second
}

// LivenessTimeout is the silence threshold after which a session is
// reclaimed.
func (p PresenceConfig) LivenessTimeout() time.Duration {
	return time.Duration(p.LivenessTimeoutSeconds) * time.Second
}

// MonitorTick is the sweep interval of the liveness monitor.
func (p PresenceConfig) MonitorTick() time.Duration {
	return time.Duration(p.MonitorTickSeconds) * time.Second
}

// NotifyConfig configures supervisor alert delivery. Either platform may be
// left unconfigured.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack alert settings.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord alert settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DigestConfig schedules the daily floor summary.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // 5-field cron expression
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

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = 8090
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Database == "" {
			c.DB.Database = "floorwatch"
		}
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "floorwatch.db"
	}
	if c.Presence.HeartbeatSeconds == 0 {
		c.Presence.HeartbeatSeconds = 5
	}
	if c.Presence.LivenessTimeoutSeconds == 0 {
		c.Presence.LivenessTimeoutSeconds = 45
	}
	if c.Presence.MonitorTickSeconds == 0 {
		c.Presence.MonitorTickSeconds = 10
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 19 * * 1-5"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "mysql":
		if c.DB.User == "" {
			errs = append(errs, "db.user is required for mysql")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported", c.DB.Driver))
	}
	if c.Presence.HeartbeatSeconds < 1 {
		errs = append(errs, "presence.heartbeat_seconds must be at least 1")
	}
	// A timeout below twice the heartbeat interval would reclaim live
	// sessions on a single dropped packet.
	if c.Presence.LivenessTimeoutSeconds < 2*c.Presence.HeartbeatSeconds {
		errs = append(errs, "presence.liveness_timeout_seconds must be at least twice heartbeat_seconds")
	}
	if c.Presence.MonitorTickSeconds < 1 {
		errs = append(errs, "presence.monitor_tick_seconds must be at least 1")
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a slack token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a discord token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
