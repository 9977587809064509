// Package config loads server configuration from YAML with environment
// overrides and supports live reload of safe-to-change values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Match   MatchConfig   `mapstructure:"match"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig configures the WebSocket listener.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	WSPath          string        `mapstructure:"ws_path"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MatchConfig configures match rules and the reconnection window.
type MatchConfig struct {
	GracePeriod     time.Duration `mapstructure:"grace_period"`
	StartingHealth  int           `mapstructure:"starting_health"`
	ManaCap         int           `mapstructure:"mana_cap"`
	OpeningHandSize int           `mapstructure:"opening_hand_size"`
	DeckSize        int           `mapstructure:"deck_size"`
	BoardSlots      int           `mapstructure:"board_slots"`
	JournalDepth    int           `mapstructure:"journal_depth"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.ping_interval", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("match.grace_period", 120*time.Second)
	v.SetDefault("match.starting_health", 30)
	v.SetDefault("match.mana_cap", 10)
	v.SetDefault("match.opening_hand_size", 4)
	v.SetDefault("match.deck_size", 30)
	v.SetDefault("match.board_slots", 5)
	v.SetDefault("match.journal_depth", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads configuration from the given path. A missing file is not an
// error: defaults plus environment overrides (DUEL_ prefix) apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and invokes onChange with the
// fresh configuration. Only values the caller chooses to re-apply (the
// grace period, log level) take effect at runtime.
func Watch(path string, onChange func(*Config)) error {
	if path == "" || onChange == nil {
		return nil
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		if err := cfg.validate(); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()
	return nil
}

func (c *Config) validate() error {
	if c.Match.GracePeriod <= 0 {
		return fmt.Errorf("match.grace_period must be positive, got %s", c.Match.GracePeriod)
	}
	if c.Match.BoardSlots < 1 {
		return fmt.Errorf("match.board_slots must be at least 1, got %d", c.Match.BoardSlots)
	}
	if c.Match.DeckSize < c.Match.OpeningHandSize {
		return fmt.Errorf("match.deck_size %d smaller than opening hand %d",
			c.Match.DeckSize, c.Match.OpeningHandSize)
	}
	return nil
}
