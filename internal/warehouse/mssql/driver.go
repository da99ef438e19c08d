// Package mssql connects to a Microsoft Fabric SQL endpoint over TDS.
//
// Authentication uses Entra ID access tokens supplied by a TokenProvider; the
// endpoint does not accept SQL logins. The package implements warehouse.DB
// and warehouse.Provider so nothing above it depends on go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	gomssql "github.com/microsoft/go-mssqldb"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

const (
	defaultPort     = "1433"
	maxOpenConns    = 8
	connMaxIdleTime = 5 * time.Minute
)

// TokenProvider supplies a valid Entra ID access token for the SQL scope.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Provider implements warehouse.Provider for Fabric SQL endpoints.
type Provider struct {
	tokens         TokenProvider
	connectTimeout time.Duration
	log            *logger.Logger
}

// NewProvider returns a Provider that mints one handle per Acquire call.
func NewProvider(tokens TokenProvider, connectTimeout time.Duration, log *logger.Logger) *Provider {
	return &Provider{
		tokens:         tokens,
		connectTimeout: connectTimeout,
		log:            log,
	}
}

// Acquire opens and validates a handle on server/database.
// The handle is pinged before it is returned; a failed ping closes it.
func (p *Provider) Acquire(ctx context.Context, server, database string) (warehouse.DB, error) {
	if server == "" || database == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "server and database are required")
	}

	dsn := buildDSN(server, database, p.connectTimeout)

	connector, err := gomssql.NewAccessTokenConnector(dsn, func() (string, error) {
		tokenCtx, cancel := context.WithTimeout(context.Background(), p.connectTimeout)
		defer cancel()
		return p.tokens.Token(tokenCtx)
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid connection configuration", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	d := &Driver{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	if err := d.Ping(pingCtx); err != nil {
		d.Close()
		return nil, err
	}

	p.log.With().Str("server", server).Str("database", database).Logger().
		Info("mssql: connected to fabric sql endpoint")
	return d, nil
}

// buildDSN constructs the sqlserver:// connection string.
// Fabric requires encryption; the endpoint certificate is always verifiable.
func buildDSN(server, database string, connectTimeout time.Duration) string {
	query := url.Values{}
	query.Set("database", database)
	query.Set("encrypt", "true")
	query.Set("TrustServerCertificate", "false")
	query.Set("dial timeout", fmt.Sprintf("%d", int(connectTimeout.Seconds())))

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(server, defaultPort),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Driver is a Fabric SQL implementation of warehouse.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// --- warehouse.DB implementation ---

// Ping verifies the endpoint is reachable and the access token is accepted.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool.
func (d *Driver) Close() {
	_ = d.db.Close()
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, query string, args ...any) (warehouse.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqlRows{rows: rows}, nil
}

// QueryRow executes a SQL statement expected to return at most one row.
func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) warehouse.Row {
	return &sqlRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

// --- database/sql type wrappers ---

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *sqlRows) Columns() ([]string, error) {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil, mapError(err, "failed to read columns")
	}
	return cols, nil
}

func (r *sqlRows) Close() { _ = r.rows.Close() }

func (r *sqlRows) Err() error {
	return mapError(r.rows.Err(), "row iteration failed")
}

type sqlRow struct {
	row *sql.Row
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}
