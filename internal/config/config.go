// Package config materialises the dashboard configuration from file,
// environment, and defaults. Configuration is read once at process start.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Alert     AlertConfig     `mapstructure:"alert"`
	History   HistoryConfig   `mapstructure:"history"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// AppConfig holds general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// UpstreamConfig points at the price API and the asset set to fetch.
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Assets         []string      `mapstructure:"assets"`
	Currency       string        `mapstructure:"currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertConfig defines the threshold-alert behaviour. Watch lists the assets
// whose crossings alert; tracking more assets than are watched is fine.
type AlertConfig struct {
	DefaultThreshold float64  `mapstructure:"default_threshold"`
	Watch            []string `mapstructure:"watch"`
}

// HistoryConfig selects the history store. An empty DSN runs the in-memory
// degraded mode. RecordMode is "alert" (write only when an alert fires) or
// "all" (write every sample).
type HistoryConfig struct {
	DSN        string `mapstructure:"dsn"`
	RecordMode string `mapstructure:"record_mode"`
	QueryLimit int    `mapstructure:"query_limit"`
}

// MessagingConfig covers the NATS notification topic. An empty URL disables
// the sink.
type MessagingConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// RedisConfig covers the optional price cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// NotifyConfig lists webhook delivery targets.
type NotifyConfig struct {
	WebhookURLs []string `mapstructure:"webhook_urls"`
}

// AuthConfig gates the dashboard API. Users map email to bcrypt hash.
type AuthConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	SessionTTL time.Duration     `mapstructure:"session_ttl"`
	Users      map[string]string `mapstructure:"users"`
}

// RecordOnAlertOnly reports whether history writes happen only on alerts.
func (h HistoryConfig) RecordOnAlertOnly() bool {
	return h.RecordMode == "alert"
}

// Load builds the configuration. A missing config file is not an error;
// defaults plus DASHBOARD_* environment variables then apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v, path != ""); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crypto-dashboard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("logging.level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("upstream.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("upstream.assets", []string{"bitcoin", "ethereum", "dogecoin"})
	v.SetDefault("upstream.currency", "usd")
	v.SetDefault("upstream.request_timeout", 10*time.Second)
	v.SetDefault("alert.default_threshold", 30000.0)
	v.SetDefault("alert.watch", []string{"bitcoin"})
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.record_mode", "alert")
	v.SetDefault("history.query_limit", 50)
	v.SetDefault("messaging.url", "")
	v.SetDefault("messaging.subject", "alerts.triggered")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.cache_ttl", 30*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.session_ttl", 12*time.Hour)
}

func readConfig(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !explicit && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Alert.DefaultThreshold <= 0 || math.IsNaN(c.Alert.DefaultThreshold) || math.IsInf(c.Alert.DefaultThreshold, 0) {
		return fmt.Errorf("config: alert.default_threshold must be a positive number, got %v", c.Alert.DefaultThreshold)
	}
	if len(c.Upstream.Assets) == 0 {
		return fmt.Errorf("config: upstream.assets must not be empty")
	}
	if c.Upstream.Currency == "" {
		return fmt.Errorf("config: upstream.currency must not be empty")
	}
	if len(c.Alert.Watch) == 0 {
		return fmt.Errorf("config: alert.watch must not be empty")
	}

	tracked := make(map[string]struct{}, len(c.Upstream.Assets))
	for _, asset := range c.Upstream.Assets {
		tracked[asset] = struct{}{}
	}
	for _, asset := range c.Alert.Watch {
		if _, ok := tracked[asset]; !ok {
			return fmt.Errorf("config: watched asset %q is not in upstream.assets", asset)
		}
	}

	switch c.History.RecordMode {
	case "alert", "all":
	default:
		return fmt.Errorf("config: history.record_mode must be \"alert\" or \"all\", got %q", c.History.RecordMode)
	}
	if c.History.QueryLimit <= 0 {
		return fmt.Errorf("config: history.query_limit must be positive")
	}
	return nil
}
