package dbconn

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/go-i2p/respool/lib/errors"
	"github.com/go-i2p/respool/lib/pool"
)

// PGConn is one pooled PostgreSQL connection. It is backed by a pgxpool
// limited to a single connection so that a connection idle longer than
// MaxIdleTime is replaced on next use.
type PGConn struct {
	pool *pgxpool.Pool
}

// Exec executes a statement that returns no rows.
func (c *PGConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.pool.Exec(ctx, sql, args...)
}

// Query executes a query that returns rows.
func (c *PGConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.pool.Query(ctx, sql, args...)
}

// QueryRow executes a query that returns at most one row.
func (c *PGConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction.
func (c *PGConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.pool.Begin(ctx)
}

// Ping verifies the connection is alive.
func (c *PGConn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes the server connection.
func (c *PGConn) Close() error {
	c.pool.Close()
	return nil
}

// postgresEncoding maps a MySQL style charset to a client_encoding.
func postgresEncoding(charset string) string {
	switch strings.ToLower(charset) {
	case "":
		return ""
	case "utf8", "utf8mb3", "utf8mb4":
		return "UTF8"
	default:
		return strings.ToUpper(charset)
	}
}

// PostgresDSN returns a postgres:// connection URL for opts. The time zone
// and character set become the timezone and client_encoding run-time
// parameters. SQLMode and AutoCommit do not apply to PostgreSQL.
func PostgresDSN(opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	host, port, err := opts.hostPort(DefaultPostgresPort)
	if err != nil {
		return "", err
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + opts.Database,
	}
	if opts.User != "" {
		if opts.Password != "" {
			u.User = url.UserPassword(opts.User, opts.Password)
		} else {
			u.User = url.User(opts.User)
		}
	}

	q := url.Values{}
	for k, v := range opts.Params {
		q.Set(k, v)
	}
	if opts.ConnectTimeout > 0 {
		secs := int(opts.ConnectTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	if opts.TimeZone != "" {
		q.Set("timezone", opts.TimeZone)
	}
	if enc := postgresEncoding(opts.Charset); enc != "" {
		q.Set("client_encoding", enc)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// PostgresConfig builds a single-connection pgxpool configuration for opts.
func PostgresConfig(opts Options) (*pgxpool.Config, error) {
	dsn, err := PostgresDSN(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, "invalid postgres options", err)
	}
	cfg.MaxConns = 1
	cfg.MinConns = 0
	if opts.MaxIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxIdleTime
	}
	return cfg, nil
}

// OpenPostgres opens and verifies one PostgreSQL connection.
func OpenPostgres(ctx context.Context, opts Options) (*PGConn, error) {
	cfg, err := PostgresConfig(opts)
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, "invalid postgres options", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		log.WithField("host", cfg.ConnConfig.Host).WithError(err).Debug("postgres connect failed")
		return nil, apperrors.Wrap(apperrors.CodeConnection, "postgres connect failed", err)
	}

	log.WithField("host", cfg.ConnConfig.Host).WithField("database", cfg.ConnConfig.Database).Debug("postgres connection opened")
	return &PGConn{pool: p}, nil
}

// PostgresFactory returns a pool factory opening PostgreSQL connections.
func PostgresFactory(opts Options) pool.Factory[*PGConn] {
	return func(ctx context.Context) (*PGConn, error) {
		return OpenPostgres(ctx, opts)
	}
}
