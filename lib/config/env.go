package config

import (
	"os"
	"strconv"

	"github.com/go-i2p/logger"

	apperrors "github.com/go-i2p/respool/lib/errors"
)

var log = logger.GetGoI2PLogger()

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESPOOL_"

// ApplyEnvOverrides overwrites fields from RESPOOL_* environment variables.
// Durations accept Go syntax ("1m30s") or a bare number of seconds.
func (c *Config) ApplyEnvOverrides() error {
	setString(&c.Pool.Name, "POOL_NAME")
	if err := setInt(&c.Pool.Capacity, "POOL_CAPACITY"); err != nil {
		return err
	}
	if err := setDuration(&c.Pool.AcquireTimeout, "ACQUIRE_TIMEOUT"); err != nil {
		return err
	}

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.TimeZone, "DB_TIME_ZONE")
	setString(&c.Database.Charset, "DB_CHARSET")
	setString(&c.Database.SQLMode, "DB_SQL_MODE")
	if err := setBool(&c.Database.AutoCommit, "DB_AUTO_COMMIT"); err != nil {
		return err
	}
	if err := setDuration(&c.Database.MaxIdleTime, "DB_MAX_IDLE_TIME"); err != nil {
		return err
	}
	if err := setDuration(&c.Database.ConnectTimeout, "DB_CONNECT_TIMEOUT"); err != nil {
		return err
	}

	if err := setInt(&c.Factory.FailureThreshold, "FACTORY_FAILURE_THRESHOLD"); err != nil {
		return err
	}
	if err := setDuration(&c.Factory.Cooldown, "FACTORY_COOLDOWN"); err != nil {
		return err
	}
	if err := setFloat(&c.Factory.CreateRate, "FACTORY_CREATE_RATE"); err != nil {
		return err
	}
	if err := setInt(&c.Factory.CreateBurst, "FACTORY_CREATE_BURST"); err != nil {
		return err
	}

	if err := setBool(&c.Metrics.Enabled, "METRICS_ENABLED"); err != nil {
		return err
	}
	setString(&c.Metrics.Listen, "METRICS_LISTEN")
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if ok && v != "" {
		log.WithField("var", EnvPrefix+name).Debug("applying environment override")
		return v, true
	}
	return "", false
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return envError(name, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return envError(name, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return envError(name, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *Duration, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return envError(name, err)
	}
	*dst = Duration(d)
	return nil
}

func envError(name string, err error) error {
	return apperrors.Wrap(apperrors.CodeConfiguration, "invalid "+EnvPrefix+name, err)
}
