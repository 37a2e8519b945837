// Package db runs the SQL queries behind sql preconditions. Only SQLite
// databases are supported.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultQueryTimeout bounds a single query when the caller's context has
// no deadline of its own.
const DefaultQueryTimeout = 30 * time.Second

// QueryResult represents the result of a database query
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// First returns the first row, or nil when the query matched nothing.
func (r *QueryResult) First() map[string]any {
	if len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Client represents a database client
type Client struct {
	db           *sql.DB
	driverName   string
	dataSource   string
	queryTimeout time.Duration
}

// NewClient opens connectionString. Relative SQLite paths are resolved
// against baseDir.
func NewClient(ctx context.Context, connectionString, baseDir string) (*Client, error) {
	driver, dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	if baseDir != "" && dsn != ":memory:" && !filepath.IsAbs(dsn) {
		dsn = filepath.Join(baseDir, dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Client{
		db:           db,
		driverName:   driver,
		dataSource:   dsn,
		queryTimeout: DefaultQueryTimeout,
	}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Query executes a SQL query and returns every row.
func (c *Client) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

// parseConnectionString parses a connection string into driver and DSN
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
// - path/to/file.db, .sqlite or .sqlite3
func parseConnectionString(connStr string) (driver string, dsn string, err error) {
	connStr = strings.TrimSpace(connStr)

	if strings.HasPrefix(connStr, "sqlite://") {
		return "sqlite3", strings.TrimPrefix(connStr, "sqlite://"), nil
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return "sqlite3", strings.TrimPrefix(connStr, "sqlite:"), nil
	}

	switch strings.ToLower(filepath.Ext(connStr)) {
	case ".db", ".sqlite", ".sqlite3":
		if !strings.Contains(connStr, "://") {
			return "sqlite3", connStr, nil
		}
	}

	if scheme, _, ok := strings.Cut(connStr, "://"); ok {
		return "", "", fmt.Errorf("unsupported database scheme: %s", scheme)
	}
	return "", "", fmt.Errorf("invalid connection string: %q", connStr)
}
