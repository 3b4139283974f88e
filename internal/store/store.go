// Package store provides the optional direct read path: read-only SQL
// queries against the external application's own database file.
//
// This is a performance variant only. It sits outside the bridge's
// correctness contract: it is never used for mutation, takes no part in
// queue ordering, and callers must tolerate it lagging the scripting
// interface (the application flushes its database on its own schedule).
// The connection is opened read-only AND query_only is set, so even a
// defective caller cannot write through it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a read-only view over the application's SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path strictly read-only.
//
// The connection is configured with:
//   - mode=ro: the file is never created or written
//   - query_only pragma: writes fail even on this same connection
//   - 5-second busy timeout: the application may hold short write locks
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty database path")
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_query_only=true", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database read-only: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Reads are cheap; a small pool lets parallel readers avoid queuing
	// behind each other.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &Store{db: db}, nil
}

// Close releases the database connections.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// QueryRows runs a SELECT and returns each row as a column→value map.
// Values are rendered as strings; NULL becomes the empty string. Only
// SELECT (and WITH ... SELECT) statements are accepted - the read-only
// contract is enforced here as well as at the connection level.
func (s *Store) QueryRows(ctx context.Context, query string, args ...any) ([]map[string]string, error) {
	if err := ensureReadOnly(query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("direct read query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []map[string]string
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]string, len(cols))
		for i, c := range cols {
			row[c] = values[i].String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// QueryValue runs a SELECT expected to yield a single value. Returns
// sql.ErrNoRows when the query matches nothing.
func (s *Store) QueryValue(ctx context.Context, query string, args ...any) (string, error) {
	if err := ensureReadOnly(query); err != nil {
		return "", err
	}
	var v sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return "", err
	}
	return v.String, nil
}

// ensureReadOnly rejects anything that is not a plain query.
func ensureReadOnly(query string) error {
	q := strings.ToLower(strings.TrimSpace(query))
	if strings.HasPrefix(q, "select") || strings.HasPrefix(q, "with") {
		return nil
	}
	return fmt.Errorf("store: refusing non-SELECT statement on read-only path")
}
