// Package config loads the arworld runtime configuration from the
// environment.
package config

import (
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// Device kinds.
const (
	DeviceSim       = "sim"
	DeviceWebSocket = "ws"
)

// Surface kinds.
const (
	SurfaceHeadless = "headless"
	SurfaceEbiten   = "ebiten"
)

// Config holds the configuration of an arworld process. Every field can be
// set through the environment.
type Config struct {
	// Base URL of the content gateway serving /ipfs/<cid>.
	Gateway string `env:"ARWORLD_GATEWAY" envDefault:"https://w3s.link"`

	// Target ticks per second of the headless surface.
	FrameRate int `env:"ARWORLD_FRAME_RATE" envDefault:"60"`

	LogLevel  string `env:"ARWORLD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ARWORLD_LOG_FORMAT" envDefault:"pretty"`

	// Redis address of the content cache. Empty disables caching.
	RedisAddr string        `env:"ARWORLD_REDIS_ADDR"`
	CacheTTL  time.Duration `env:"ARWORLD_CACHE_TTL" envDefault:"24h"`

	FetchTimeout time.Duration `env:"ARWORLD_FETCH_TIMEOUT" envDefault:"30s"`
	RetryInitial time.Duration `env:"ARWORLD_RETRY_INITIAL" envDefault:"1s"`
	RetryMax     time.Duration `env:"ARWORLD_RETRY_MAX" envDefault:"30s"`

	// Device is "sim" or "ws". DeviceAddr is where the ws device listens.
	Device     string `env:"ARWORLD_DEVICE" envDefault:"sim"`
	DeviceAddr string `env:"ARWORLD_DEVICE_ADDR" envDefault:":8089"`

	// Surface is "headless" or "ebiten".
	Surface string `env:"ARWORLD_SURFACE" envDefault:"headless"`
}

// Load parses the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// Validate checks field values. It is exported so flag overrides can be
// checked again after parsing.
func (cfg *Config) Validate() error {
	u, err := url.Parse(cfg.Gateway)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return eris.Errorf("gateway must be an http(s) URL, got %q", cfg.Gateway)
	}
	if cfg.FrameRate <= 0 {
		return eris.New("frame rate must be positive")
	}
	if cfg.LogFormat != "pretty" && cfg.LogFormat != "json" {
		return eris.Errorf("log format must be pretty or json, got %q", cfg.LogFormat)
	}
	if cfg.CacheTTL < 0 {
		return eris.New("cache TTL cannot be negative")
	}
	if cfg.FetchTimeout <= 0 {
		return eris.New("fetch timeout must be positive")
	}
	if cfg.RetryInitial <= 0 || cfg.RetryMax < cfg.RetryInitial {
		return eris.New("retry delays must be positive and max must not be below initial")
	}
	if cfg.Device != DeviceSim && cfg.Device != DeviceWebSocket {
		return eris.Errorf("device must be %s or %s, got %q", DeviceSim, DeviceWebSocket, cfg.Device)
	}
	if cfg.Device == DeviceWebSocket && cfg.DeviceAddr == "" {
		return eris.New("device address cannot be empty")
	}
	if cfg.Surface != SurfaceHeadless && cfg.Surface != SurfaceEbiten {
		return eris.Errorf("surface must be %s or %s, got %q", SurfaceHeadless, SurfaceEbiten, cfg.Surface)
	}
	return nil
}

// FrameInterval is the tick interval matching FrameRate.
func (cfg *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(cfg.FrameRate)
}
