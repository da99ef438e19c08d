// Package warehouse defines the contract between the assistant and the SQL
// endpoint. Upper layers (discovery, tools) talk only to these interfaces;
// they never import the mssql driver package directly.
package warehouse

import "context"

// DB is a query-execution handle on one database.
type DB interface {
	// Ping verifies the endpoint is reachable and the token is accepted.
	Ping(ctx context.Context) error

	// Close releases all resources held by the handle.
	Close()

	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Provider is the connection-provider capability: it turns a server identity
// and database name into an open, authenticated DB handle.
//
// Acquire fails with an auth_failed or connection_failed classification;
// it never returns a half-open handle.
type Provider interface {
	Acquire(ctx context.Context, server, database string) (DB, error)
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}
