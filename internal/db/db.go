package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Store wraps the ledger database. Write transactions are serialized so the
// single-writer engines (SQLite on the device) never see nested transactions.
type Store struct {
	conn    *sql.DB
	driver  string
	writeMu sync.Mutex
}

// Open connects to the database for the given driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(time.Hour)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(10 * time.Minute)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{conn: conn, driver: driver}, nil
}

// New wraps an existing connection (used by tests with sqlmock).
func New(conn *sql.DB, driver string) *Store {
	return &Store{conn: conn, driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying connection for reads.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Driver returns the SQL dialect in use.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the connection with a short deadline.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.conn.PingContext(ctx)
}

// EnsureSchema creates tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	raw, err := schemaFS.ReadFile("schema/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %s: %w", s.driver, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, stmt := range splitStatements(string(raw)) {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside a serialized write transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func splitStatements(schema string) []string {
	out := []string{}
	for _, part := range strings.Split(schema, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
