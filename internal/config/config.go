// Package config holds the portal server configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jackielii/heritage/internal/qr"
)

// EnvPrefix is prepended to every environment override, e.g.
// HERITAGE_ADDR or HERITAGE_QR_WIDTH.
const EnvPrefix = "HERITAGE"

type Config struct {
	Addr            string        `mapstructure:"addr"`
	PublicURL       string        `mapstructure:"public_url"` // the address encoded into the QR code
	ContentPath     string        `mapstructure:"content_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Log             LogConfig     `mapstructure:"log"`
	QR              qr.Options    `mapstructure:"qr"`
	QRCacheTTL      time.Duration `mapstructure:"qr_cache_ttl"`
	Session         SessionConfig `mapstructure:"session"`
	Tracing         TracingConfig `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type SessionConfig struct {
	Lifetime    time.Duration `mapstructure:"lifetime"`
	CookieName  string        `mapstructure:"cookie_name"`
	Secure      bool          `mapstructure:"secure"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type TracingConfig struct {
	Exporter    string `mapstructure:"exporter"` // none, stdout or otlp
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		PublicURL:       "http://localhost:8080/",
		ShutdownTimeout: 5 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		QR:         qr.DefaultOptions(),
		QRCacheTTL: 0,
		Session: SessionConfig{
			Lifetime:    24 * time.Hour,
			CookieName:  "heritage_session",
			IdleTimeout: 2 * time.Hour,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "heritage",
		},
	}
}

// SetDefaults registers every default on v so environment overrides are
// picked up by Unmarshal even for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("public_url", d.PublicURL)
	v.SetDefault("content_path", d.ContentPath)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("qr.width", d.QR.Width)
	v.SetDefault("qr.margin", d.QR.Margin)
	v.SetDefault("qr.dark_color", d.QR.DarkColor)
	v.SetDefault("qr.light_color", d.QR.LightColor)
	v.SetDefault("qr_cache_ttl", d.QRCacheTTL)
	v.SetDefault("session.lifetime", d.Session.Lifetime)
	v.SetDefault("session.cookie_name", d.Session.CookieName)
	v.SetDefault("session.secure", d.Session.Secure)
	v.SetDefault("session.idle_timeout", d.Session.IdleTimeout)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// NewViper returns a viper instance with defaults and HERITAGE_*
// environment overrides wired up.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and returns the validated
// configuration. An empty path only uses defaults and the environment.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("public_url %q must be an absolute URL", c.PublicURL))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if err := c.QR.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("qr: %w", err))
	}
	if c.Session.Lifetime <= 0 {
		errs = append(errs, errors.New("session.lifetime must be positive"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("tracing.endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q must be none, stdout or otlp", c.Tracing.Exporter))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}
