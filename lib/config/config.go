// Package config loads respool settings from a TOML file with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/go-i2p/respool/lib/dbconn"
	apperrors "github.com/go-i2p/respool/lib/errors"
	"github.com/go-i2p/respool/lib/pool"
	"github.com/go-i2p/respool/lib/ratelimit"
	"github.com/go-i2p/respool/lib/resilience"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Default configuration values
const (
	DefaultPoolName      = "default"
	DefaultDriver        = DriverMemory
	DefaultMetricsListen = "127.0.0.1:9464"
)

// Duration is a time.Duration written as a string such as "10s" in TOML.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. A bare integer is read
// as seconds.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Config holds all configuration for a respool process.
type Config struct {
	Pool     PoolConfig     `toml:"pool"`
	Database DatabaseConfig `toml:"database"`
	Factory  FactoryConfig  `toml:"factory"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// PoolConfig contains resource pool settings.
type PoolConfig struct {
	// Name identifies the pool in logs and String output
	Name string `toml:"name"`
	// Capacity is the maximum number of resources that may exist at once
	Capacity int `toml:"capacity"`
	// AcquireTimeout is how long Acquire waits for a resource; 0 never waits
	AcquireTimeout Duration `toml:"acquire_timeout"`
}

// DatabaseConfig selects the factory and configures its connections.
type DatabaseConfig struct {
	// Driver is one of "mysql", "postgres" or "memory"
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password,omitempty"`
	// MaxIdleTime is how long a connection may idle before the driver
	// replaces it
	MaxIdleTime    Duration `toml:"max_idle_time"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	TimeZone       string   `toml:"time_zone"`
	Charset        string   `toml:"charset"`
	SQLMode        string   `toml:"sql_mode"`
	AutoCommit     bool     `toml:"auto_commit"`
	// Params are extra driver parameters
	Params map[string]string `toml:"params,omitempty"`
}

// FactoryConfig guards the database factory.
type FactoryConfig struct {
	// FailureThreshold is the number of consecutive connect failures that
	// opens the circuit breaker; 0 disables it
	FailureThreshold int `toml:"failure_threshold"`
	// Cooldown is how long an open circuit rejects connects
	Cooldown Duration `toml:"cooldown"`
	// CreateRate limits new connections per second; 0 is unlimited
	CreateRate float64 `toml:"create_rate"`
	// CreateBurst is how many connections may be opened back to back
	CreateBurst int `toml:"create_burst"`
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	// Enabled controls whether the metrics listener is started
	Enabled bool `toml:"enabled"`
	// Listen is the address to bind the metrics server to
	Listen string `toml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	db := dbconn.DefaultOptions()
	breaker := resilience.DefaultConfig()
	return &Config{
		Pool: PoolConfig{
			Name:           DefaultPoolName,
			Capacity:       pool.DefaultCapacity,
			AcquireTimeout: Duration(pool.DefaultAcquireTimeout),
		},
		Database: DatabaseConfig{
			Driver:         DefaultDriver,
			MaxIdleTime:    Duration(db.MaxIdleTime),
			ConnectTimeout: Duration(db.ConnectTimeout),
			TimeZone:       db.TimeZone,
			Charset:        db.Charset,
			SQLMode:        db.SQLMode,
			AutoCommit:     db.AutoCommit,
		},
		Factory: FactoryConfig{
			FailureThreshold: breaker.FailureThreshold,
			Cooldown:         Duration(breaker.Cooldown),
			CreateRate:       0,
			CreateBurst:      1,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  DefaultMetricsListen,
		},
	}
}

// LoadConfig reads configuration from a TOML file and applies environment
// overrides. If the file doesn't exist, the defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfiguration, "parsing config file", err)
		}
	case os.IsNotExist(err):
		log.WithField("path", path).Debug("config file not found, using defaults")
	default:
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, "reading config file", err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pool.Capacity < 1 {
		return apperrors.ErrInvalidCapacity
	}
	if c.Pool.AcquireTimeout < 0 {
		return apperrors.New(apperrors.CodeConfiguration, "pool.acquire_timeout must not be negative")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverMySQL, DriverPostgres:
		if c.Database.Host == "" {
			return apperrors.ErrMissingHost
		}
		if c.Database.Database == "" {
			return apperrors.ErrMissingDatabase
		}
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownDriver, c.Database.Driver)
	}
	if c.Database.MaxIdleTime < 0 {
		return apperrors.New(apperrors.CodeConfiguration, "database.max_idle_time must not be negative")
	}
	if c.Database.ConnectTimeout < 0 {
		return apperrors.New(apperrors.CodeConfiguration, "database.connect_timeout must not be negative")
	}

	if c.Factory.FailureThreshold < 0 || c.Factory.Cooldown < 0 {
		return apperrors.New(apperrors.CodeConfiguration, "factory.failure_threshold and factory.cooldown must not be negative")
	}
	if c.Factory.CreateRate < 0 || c.Factory.CreateBurst < 0 {
		return apperrors.New(apperrors.CodeConfiguration, "factory.create_rate and factory.create_burst must not be negative")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return apperrors.New(apperrors.CodeConfiguration, "metrics.listen is required when metrics are enabled")
	}
	return nil
}

// PoolConfig converts the [pool] section to a pool.Config.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		Name:           c.Pool.Name,
		Capacity:       c.Pool.Capacity,
		AcquireTimeout: c.Pool.AcquireTimeout.Std(),
	}
}

// DatabaseOptions converts the [database] section to dbconn.Options.
func (c *Config) DatabaseOptions() dbconn.Options {
	var params map[string]string
	if len(c.Database.Params) > 0 {
		params = make(map[string]string, len(c.Database.Params))
		for k, v := range c.Database.Params {
			params[k] = v
		}
	}
	return dbconn.Options{
		Host:           c.Database.Host,
		Database:       c.Database.Database,
		User:           c.Database.User,
		Password:       c.Database.Password,
		MaxIdleTime:    c.Database.MaxIdleTime.Std(),
		ConnectTimeout: c.Database.ConnectTimeout.Std(),
		TimeZone:       c.Database.TimeZone,
		Charset:        c.Database.Charset,
		SQLMode:        c.Database.SQLMode,
		AutoCommit:     c.Database.AutoCommit,
		Params:         params,
	}
}

// Breaker returns the circuit breaker for the database factory, or nil when
// failure_threshold is 0.
func (c *Config) Breaker() *resilience.CircuitBreaker {
	if c.Factory.FailureThreshold == 0 {
		return nil
	}
	return resilience.NewCircuitBreaker(c.Pool.Name+"-"+c.Database.Driver, resilience.Config{
		FailureThreshold: c.Factory.FailureThreshold,
		Cooldown:         c.Factory.Cooldown.Std(),
	})
}

// Limiter returns the connection creation rate limiter, or nil when
// create_rate is 0.
func (c *Config) Limiter() *ratelimit.Limiter {
	if c.Factory.CreateRate == 0 {
		return nil
	}
	return ratelimit.New(c.Factory.CreateRate, c.Factory.CreateBurst)
}
