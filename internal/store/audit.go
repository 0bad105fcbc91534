package store

import (
	"sync"
	"unicode/utf8"

	"restaurant-ops-api/internal/model"
)

// Audit log bounds.
const (
	AuditCapacity     = 1000
	AuditSnapshotSize = 500 // characters
)

// AuditLog is a bounded FIFO of store mutations. Only the store appends to it.
type AuditLog struct {
	mu       sync.RWMutex
	entries  []model.AuditEntry
	capacity int
}

func newAuditLog(capacity int) *AuditLog {
	return &AuditLog{capacity: capacity}
}

// append adds an entry, evicting the oldest beyond capacity.
func (a *AuditLog) append(entry model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, entry)
	if over := len(a.entries) - a.capacity; over > 0 {
		a.entries = append([]model.AuditEntry(nil), a.entries[over:]...)
	}
}

// restore replaces the log contents with previously persisted entries.
func (a *AuditLog) restore(entries []model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if over := len(entries) - a.capacity; over > 0 {
		entries = entries[over:]
	}
	a.entries = append([]model.AuditEntry(nil), entries...)
}

// Entries returns a copy of the log, oldest first.
func (a *AuditLog) Entries() []model.AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]model.AuditEntry(nil), a.entries...)
}

// Recent returns up to limit entries, newest first.
func (a *AuditLog) Recent(limit int) []model.AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.entries) {
		limit = len(a.entries)
	}
	out := make([]model.AuditEntry, 0, limit)
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.entries[i])
	}
	return out
}

// Len returns the number of retained entries.
func (a *AuditLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
