package dbconn

import (
	"context"
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	apperrors "github.com/go-i2p/respool/lib/errors"
	"github.com/go-i2p/respool/lib/pool"
)

// MySQLConn is one pooled MySQL connection. The underlying *sql.DB is
// limited to a single server connection, which database/sql re-establishes
// after MaxIdleTime.
type MySQLConn struct {
	db *sql.DB
}

// DB returns the single-connection database handle.
func (c *MySQLConn) DB() *sql.DB {
	return c.db
}

// ExecContext executes a statement that returns no rows.
func (c *MySQLConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (c *MySQLConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (c *MySQLConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on the connection.
func (c *MySQLConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// PingContext verifies the connection is alive, reconnecting if needed.
func (c *MySQLConn) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the server connection.
func (c *MySQLConn) Close() error {
	return c.db.Close()
}

// MySQLConfig builds a driver configuration from opts. Session variables
// are sent by the driver on every (re)connect.
func MySQLConfig(opts Options) (*mysql.Config, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	host, port, err := opts.hostPort(DefaultMySQLPort)
	if err != nil {
		return nil, err
	}

	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = opts.Database
	cfg.Timeout = opts.ConnectTimeout

	cfg.Params = make(map[string]string, len(opts.Params)+4)
	for k, v := range opts.Params {
		cfg.Params[k] = v
	}
	if opts.Charset != "" {
		cfg.Params["charset"] = opts.Charset
	}
	if opts.TimeZone != "" {
		cfg.Params["time_zone"] = "'" + opts.TimeZone + "'"
	}
	if opts.SQLMode != "" {
		cfg.Params["sql_mode"] = "'" + opts.SQLMode + "'"
	}
	if opts.AutoCommit {
		cfg.Params["autocommit"] = "1"
	} else {
		cfg.Params["autocommit"] = "0"
	}

	// Round trip through the DSN so driver-level keys such as charset are
	// applied as options instead of SET statements.
	parsed, err := mysql.ParseDSN(cfg.FormatDSN())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, "invalid mysql options", err)
	}
	return parsed, nil
}

// MySQLDSN returns the data source name for opts.
func MySQLDSN(opts Options) (string, error) {
	cfg, err := MySQLConfig(opts)
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// OpenMySQL opens and verifies one MySQL connection.
func OpenMySQL(ctx context.Context, opts Options) (*MySQLConn, error) {
	cfg, err := MySQLConfig(opts)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, "invalid mysql options", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if opts.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.MaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		log.WithField("addr", cfg.Addr).WithError(err).Debug("mysql connect failed")
		return nil, apperrors.Wrap(apperrors.CodeConnection, "mysql connect failed", err)
	}

	log.WithField("addr", cfg.Addr).WithField("database", cfg.DBName).Debug("mysql connection opened")
	return &MySQLConn{db: db}, nil
}

// MySQLFactory returns a pool factory opening MySQL connections.
func MySQLFactory(opts Options) pool.Factory[*MySQLConn] {
	return func(ctx context.Context) (*MySQLConn, error) {
		return OpenMySQL(ctx, opts)
	}
}
