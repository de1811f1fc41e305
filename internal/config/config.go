// Package config defines all configuration for the market-data gateway.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via MDG_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Venues  []VenueConfig `mapstructure:"venues"`
	Publish PublishConfig `mapstructure:"publish"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// VenueConfig describes one venue-symbol pair and the transport used to
// reach it. Each venue owns its own transport — there is no multiplexing
// of multiple symbols over one connection.
type VenueConfig struct {
	Name                 string        `mapstructure:"name"`
	Kind                 string        `mapstructure:"kind"` // "websocket" or "tcp"
	Host                 string        `mapstructure:"host"`
	Port                 string        `mapstructure:"port"`
	Market               string        `mapstructure:"market"`
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

// PublishConfig controls the aggregated book the venues feed into.
type PublishConfig struct {
	Symbol string        `mapstructure:"symbol"`
	Period time.Duration `mapstructure:"period"`
	Levels int           `mapstructure:"levels"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with MDG_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MDG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("publish.period", 20*time.Millisecond)
	v.SetDefault("publish.levels", 80)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for i := range cfg.Venues {
		if cfg.Venues[i].ConnectTimeout == 0 {
			cfg.Venues[i].ConnectTimeout = 5 * time.Second
		}
		if cfg.Venues[i].MaxReconnectAttempts == 0 {
			cfg.Venues[i].MaxReconnectAttempts = 10
		}
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Venues) == 0 {
		return fmt.Errorf("at least one venue is required")
	}
	for _, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("venue name is required")
		}
		if v.Kind != "websocket" && v.Kind != "tcp" {
			return fmt.Errorf("venue %s: kind must be \"websocket\" or \"tcp\", got %q", v.Name, v.Kind)
		}
		if v.Host == "" || v.Port == "" {
			return fmt.Errorf("venue %s: host and port are required", v.Name)
		}
		if v.Market == "" {
			return fmt.Errorf("venue %s: market is required", v.Name)
		}
	}
	if c.Publish.Symbol == "" {
		return fmt.Errorf("publish.symbol is required")
	}
	if c.Publish.Levels <= 0 {
		return fmt.Errorf("publish.levels must be > 0")
	}
	return nil
}
