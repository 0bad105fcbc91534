package repository

import (
	"context"
)

// KVStore is the durable key/value backing used by the record store and the backup side channel.
// Values are opaque bytes; a missing key is reported through found=false, not an error.
type KVStore interface {
	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Stats returns backend statistics for the status endpoints.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the backend connection.
	Close() error
}

// Key layout shared by every backend user.
const (
	TableKeyPrefix      = "table:"
	AuditLogKey         = "audit_log"
	BackupKeyPrefix     = "backup:"
	BackupMetaKeyPrefix = "backup_meta:"
)
