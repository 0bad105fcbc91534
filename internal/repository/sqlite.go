package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteKV implements KVStore using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteKV struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteKV opens (or creates) the SQLite database at dbPath.
// dbPath is the path to the SQLite database file (e.g., "./data/restaurant.db")
func NewSQLiteKV(dbPath string, log logrus.FieldLogger) (*SQLiteKV, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	if err := createSQLiteTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite store initialized")
	return &SQLiteKV{db: db}, nil
}

// createSQLiteTables creates the key/value table.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Get retrieves the value stored under key.
func (r *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Put inserts or replaces the value under key.
func (r *SQLiteKV) Put(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = datetime('now')`

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *SQLiteKV) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix.
func (r *SQLiteKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	return scanKeys(rows)
}

// Stats returns statistics about the database.
func (r *SQLiteKV) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]interface{})

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv_entries").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_entries"] = count

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Ping checks the connection.
func (r *SQLiteKV) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLiteKV) Close() error {
	return r.db.Close()
}

// scanKeys drains a single-column key result set.
func scanKeys(rows *sql.Rows) ([]string, error) {
	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return keys, nil
}

// Ensure SQLiteKV implements KVStore
var _ KVStore = (*SQLiteKV)(nil)
