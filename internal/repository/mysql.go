package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLKV implements KVStore using MySQL.
type MySQLKV struct {
	db *sql.DB
}

// NewMySQLKV opens a MySQL key/value store.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLKV(dsn string, log logrus.FieldLogger) (*MySQLKV, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		` + "`key`" + ` VARCHAR(255) NOT NULL PRIMARY KEY,
		value LONGBLOB NOT NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Info("mysql store initialized")
	return &MySQLKV{db: db}, nil
}

// Get retrieves the value stored under key.
func (r *MySQLKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE `key` = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Put inserts or replaces the value under key.
func (r *MySQLKV) Put(ctx context.Context, key string, value []byte) error {
	query := "INSERT INTO kv_entries (`key`, value, updated_at) VALUES (?, ?, UTC_TIMESTAMP()) " +
		"ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = UTC_TIMESTAMP()"

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *MySQLKV) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE `key` = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix.
func (r *MySQLKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT `key` FROM kv_entries WHERE LEFT(`key`, CHAR_LENGTH(?)) = ? ORDER BY `key`", prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	return scanKeys(rows)
}

// Stats returns statistics about the database.
func (r *MySQLKV) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv_entries").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_entries"] = count

	dbStats := r.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":   dbStats.OpenConnections,
		"in_use": dbStats.InUse,
		"idle":   dbStats.Idle,
	}
	return stats, nil
}

// Ping checks the connection.
func (r *MySQLKV) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (r *MySQLKV) Close() error {
	return r.db.Close()
}

// Ensure MySQLKV implements KVStore
var _ KVStore = (*MySQLKV)(nil)
