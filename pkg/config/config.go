package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type BackendConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ChannelConfig struct {
	Reconnect                bool `mapstructure:"reconnect"`
	ReconnectIntervalSeconds int  `mapstructure:"reconnect_interval_seconds"`
}

func (c ChannelConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSeconds) * time.Second
}

type PanelConfig struct {
	Listen string `mapstructure:"listen"`
}

type RecordingConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Channel   ChannelConfig   `mapstructure:"channel"`
	Panel     PanelConfig     `mapstructure:"panel"`
	Recording RecordingConfig `mapstructure:"recording"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Load reads the YAML config at path, with COCKPIT_* environment overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COCKPIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend.url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout_seconds", 10)
	v.SetDefault("channel.reconnect", false)
	v.SetDefault("channel.reconnect_interval_seconds", 5)
	v.SetDefault("panel.listen", ":8080")
	v.SetDefault("recording.path", "flights.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Backend.TimeoutSeconds < 1 {
		cfg.Backend.TimeoutSeconds = 10
	}
	if cfg.Channel.ReconnectIntervalSeconds < 1 {
		cfg.Channel.ReconnectIntervalSeconds = 5
	}
	return &cfg, nil
}

func InitLogging(cfg LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
