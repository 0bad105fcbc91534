package model

import "time"

// BackupKind tells a manual backup from one made by the scheduler.
type BackupKind string

const (
	BackupManual    BackupKind = "manual"
	BackupAutomatic BackupKind = "automatic"
)

// BackupSchemaVersion is stamped on every backup.
const BackupSchemaVersion = "1.0"

// BackupMetadata describes one backup blob. Immutable after creation.
type BackupMetadata struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Version   string     `json:"version"`
	Tables    []string   `json:"tables"`
	Size      int        `json:"size"`
	Checksum  string     `json:"checksum"`
	Kind      BackupKind `json:"kind"`
}

// BackupStats summarizes the retained backups.
type BackupStats struct {
	Count      int        `json:"count"`
	TotalBytes int        `json:"total_bytes"`
	Newest     *time.Time `json:"newest,omitempty"`
	Oldest     *time.Time `json:"oldest,omitempty"`
}
