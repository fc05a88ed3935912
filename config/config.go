// Package config loads process configuration: defaults, then an optional
// TOML file, then environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/pelletier/go-toml/v2"

	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/source"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the server configuration. Every field can be set in the TOML
// file under its toml key or through the environment variable in its env tag.
type Config struct {
	// Host and Port form the TCP listen address. ENV: CCV_HOST, CCV_PORT
	Host string `toml:"host" env:"CCV_HOST"`
	Port int    `toml:"port" env:"CCV_PORT"`
	// Socket, when set, listens on a unix socket instead of Host:Port.
	Socket string `toml:"socket" env:"CCV_SOCKET"`

	LogLevel  string `toml:"log_level" env:"CCV_LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"CCV_LOG_FORMAT"`

	// CloudConfigSchema and NetworkConfigSchema name a file or http(s) URL.
	// Empty selects the embedded schema.
	CloudConfigSchema   string `toml:"cloud_config_schema" env:"CCV_CLOUD_CONFIG_SCHEMA"`
	NetworkConfigSchema string `toml:"network_config_schema" env:"CCV_NETWORK_CONFIG_SCHEMA"`

	UnknownKeys   string `toml:"unknown_keys" env:"CCV_UNKNOWN_KEYS"`
	DuplicateKeys string `toml:"duplicate_keys" env:"CCV_DUPLICATE_KEYS"`
	MaxErrors     int    `toml:"max_errors" env:"CCV_MAX_ERRORS"`

	// MaxConcurrency bounds validations running at once.
	MaxConcurrency int `toml:"max_concurrency" env:"CCV_MAX_CONCURRENCY"`
	// BodyLimit bounds request bodies in bytes.
	BodyLimit int64 `toml:"body_limit" env:"CCV_BODY_LIMIT"`

	Cache       string   `toml:"cache" env:"CCV_CACHE"`
	CacheSize   int      `toml:"cache_size" env:"CCV_CACHE_SIZE"`
	CacheTTL    Duration `toml:"cache_ttl" env:"CCV_CACHE_TTL"`
	RedisAddr   string   `toml:"redis_addr" env:"REDIS_ADDR"`
	CachePrefix string   `toml:"cache_prefix" env:"CCV_CACHE_PREFIX"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           3000,
		LogLevel:       "info",
		LogFormat:      "text",
		UnknownKeys:    "ignore",
		DuplicateKeys:  "error",
		MaxConcurrency: 64,
		BodyLimit:      4 << 20,
		Cache:          CacheNone,
		CacheSize:      1024,
		CacheTTL:       Duration(10 * time.Minute),
		RedisAddr:      "localhost:6379",
		CachePrefix:    "ccv:report:",
	}
}

// Load returns the configuration from path (skipped when empty) and the
// environment, on top of Default. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode applies TOML data on top of cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Socket == "" && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, ok := schema.ParseUnknownKeys(c.UnknownKeys); !ok {
		return fmt.Errorf("unknown_keys must be \"ignore\" or \"annotate\", got %q", c.UnknownKeys)
	}
	if _, err := source.ParseDuplicatePolicy(c.DuplicateKeys); err != nil {
		return err
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max_errors must not be negative")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.BodyLimit <= 0 {
		return fmt.Errorf("body_limit must be positive, got %d", c.BodyLimit)
	}
	switch c.Cache {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache must be one of none, memory, redis; got %q", c.Cache)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	return nil
}

// Addr returns the TCP listen address.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(b []byte) error { return d.Decode(string(b)) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Decode implements envdecode.Decoder.
func (d *Duration) Decode(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
