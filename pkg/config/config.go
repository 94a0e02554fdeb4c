// Package config loads the service configuration from a YAML file with
// environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kass/go-proximity-index/pkg/tracker"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Tracker struct {
		Precision         int     `yaml:"precision"`
		ThresholdMeters   float64 `yaml:"threshold_meters"`
		TimeWindowSeconds float64 `yaml:"time_window_seconds"`
		RelaxRatio        float64 `yaml:"relax_ratio"`
		HistoryCapacity   int     `yaml:"history_capacity"`
	} `yaml:"tracker"`
	Notify struct {
		DiscordWebhookURL string `yaml:"discord_webhook_url"`
		Redis             struct {
			Addr    string `yaml:"addr"`
			Channel string `yaml:"channel"`
		} `yaml:"redis"`
	} `yaml:"notify"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var c Config
	c.Server.Addr = ":5003"
	c.Tracker.Precision = tracker.DefaultPrecision
	c.Tracker.ThresholdMeters = tracker.DefaultThresholdMeters
	c.Tracker.TimeWindowSeconds = tracker.DefaultTimeWindow.Seconds()
	c.Tracker.RelaxRatio = tracker.DefaultRelaxRatio
	c.Tracker.HistoryCapacity = tracker.DefaultHistoryCapacity
	c.Notify.Redis.Channel = "proximity.encounters"
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Load reads path (if it exists) over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed
// one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.TrackerConfig().Validate(); err != nil {
		return cfg, fmt.Errorf("invalid tracker config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PROXIMITY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.DiscordWebhookURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Notify.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_CHANNEL"); v != "" {
		c.Notify.Redis.Channel = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("PROXIMITY_THRESHOLD_M"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracker.ThresholdMeters = f
		}
	}
	if v := os.Getenv("PROXIMITY_TIME_WINDOW_S"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracker.TimeWindowSeconds = f
		}
	}
}

// TrackerConfig converts the file representation into the engine config.
func (c Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		Precision:       c.Tracker.Precision,
		ThresholdMeters: c.Tracker.ThresholdMeters,
		TimeWindow:      time.Duration(c.Tracker.TimeWindowSeconds * float64(time.Second)),
		RelaxRatio:      c.Tracker.RelaxRatio,
		HistoryCapacity: c.Tracker.HistoryCapacity,
	}
}
