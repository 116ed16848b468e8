// Package dbconn provides resource factories that open database
// connections for lib/pool: MySQL through go-sql-driver/mysql and
// PostgreSQL through pgx.
//
// Each factory call opens exactly one server connection. Session settings
// (time zone, character set, SQL mode, autocommit) are applied when the
// connection is established. MaxIdleTime is handed to the driver layer,
// which reconnects a connection left idle too long; the pool itself never
// expires resources.
package dbconn

import (
	"net"
	"strconv"
	"time"

	apperrors "github.com/go-i2p/respool/lib/errors"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Default connection settings.
const (
	DefaultMaxIdleTime    = 7 * time.Hour
	DefaultConnectTimeout = 30 * time.Second
	DefaultTimeZone       = "+8:00"
	DefaultCharset        = "utf8mb4"
	DefaultSQLMode        = "TRADITIONAL"
	DefaultMySQLPort      = 3306
	DefaultPostgresPort   = 5432
)

// Options describes how to open one database connection.
type Options struct {
	// Host is host or host:port. The driver default port is used if omitted.
	Host     string
	Database string
	User     string
	Password string
	// MaxIdleTime is how long a connection may sit unused before the
	// driver layer replaces it on next use.
	MaxIdleTime time.Duration
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// TimeZone is the session time zone, e.g. "+8:00".
	TimeZone string
	// Charset is the connection character set.
	Charset string
	// SQLMode is the MySQL sql_mode. Ignored by PostgreSQL.
	SQLMode string
	// AutoCommit enables autocommit for the session.
	AutoCommit bool
	// Params are extra driver parameters passed through unchanged.
	Params map[string]string
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleTime:    DefaultMaxIdleTime,
		ConnectTimeout: DefaultConnectTimeout,
		TimeZone:       DefaultTimeZone,
		Charset:        DefaultCharset,
		SQLMode:        DefaultSQLMode,
		AutoCommit:     true,
	}
}

// Validate checks that the options can produce a connection.
func (o Options) Validate() error {
	if o.Host == "" {
		return apperrors.ErrMissingHost
	}
	if o.Database == "" {
		return apperrors.ErrMissingDatabase
	}
	return nil
}

// hostPort splits Host, applying defaultPort when it has none.
func (o Options) hostPort(defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(o.Host)
	if err != nil {
		// No port present.
		return o.Host, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, apperrors.Wrap(apperrors.CodeConfiguration, "invalid database port", apperrors.ErrConfiguration)
	}
	return host, port, nil
}
