package model

import "time"

// Audit operation kinds.
const (
	AuditCreate  = "create"
	AuditUpdate  = "update"
	AuditDelete  = "delete"
	AuditReplace = "replace"
)

// AuditEntry is an immutable record of one store mutation.
type AuditEntry struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Table     string    `json:"table"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"` // truncated JSON snapshot of the written value
}
