package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/repository"
	"restaurant-ops-api/internal/store"
)

// Backup defaults.
const (
	DefaultMaxBackups     = 10
	DefaultBackupInterval = 30 * time.Minute
)

// BackupConfig configures a BackupManager.
type BackupConfig struct {
	// KeyPrefix namespaces blob and metadata keys in the side channel.
	KeyPrefix string

	// MaxBackups is the rotation cap. Default: 10
	MaxBackups int

	// Tables are captured by every backup. Default: model.BackupTables
	Tables []string
}

type backupEntry struct {
	meta model.BackupMetadata
	seq  uint64
}

// BackupManager snapshots the store tables into checksummed blobs kept in a
// durable side channel, and restores them after verifying the checksum.
type BackupManager struct {
	store  *store.Store
	side   repository.KVStore
	prefix string
	log    logrus.FieldLogger
	now    func() time.Time
	newID  func() string

	maxBackups int
	tables     []string

	mu       sync.Mutex
	registry map[string]backupEntry
	seq      uint64
}

// NewBackupManager builds a manager and reloads the metadata already in the side channel.
func NewBackupManager(ctx context.Context, st *store.Store, side repository.KVStore, log logrus.FieldLogger, cfg BackupConfig, opts ...Option) (*BackupManager, error) {
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = model.BackupTables
	}

	o := buildOptions(opts)
	m := &BackupManager{
		store:      st,
		side:       side,
		prefix:     cfg.KeyPrefix,
		log:        log.WithField("component", "backup"),
		now:        o.now,
		newID:      o.newID,
		maxBackups: cfg.MaxBackups,
		tables:     append([]string(nil), cfg.Tables...),
		registry:   make(map[string]backupEntry),
	}

	if err := m.reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BackupManager) blobKey(id string) string { return m.prefix + repository.BackupKeyPrefix + id }
func (m *BackupManager) metaKey(id string) string { return m.prefix + repository.BackupMetaKeyPrefix + id }

func (m *BackupManager) reload(ctx context.Context) error {
	keys, err := m.side.Keys(ctx, m.prefix+repository.BackupMetaKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list backup metadata: %w", err)
	}

	var metas []model.BackupMetadata
	for _, key := range keys {
		data, found, err := m.side.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read backup metadata %s: %w", key, err)
		}
		if !found {
			continue
		}
		var meta model.BackupMetadata
		if err := json.Unmarshal(data, &meta); err != nil || meta.ID == "" {
			m.log.WithField("key", key).Warn("skipping unreadable backup metadata")
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Timestamp.Equal(metas[j].Timestamp) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].Timestamp.Before(metas[j].Timestamp)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meta := range metas {
		m.register(meta)
	}
	if len(metas) > 0 {
		m.log.WithField("count", len(metas)).Info("backup registry loaded")
	}
	return nil
}

// register adds meta to the registry. Caller holds mu.
func (m *BackupManager) register(meta model.BackupMetadata) {
	m.seq++
	m.registry[meta.ID] = backupEntry{meta: meta, seq: m.seq}
}

// Checksum returns the lowercase hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CreateBackup snapshots every configured table, stores the blob and its metadata,
// then applies rotation.
func (m *BackupManager) CreateBackup(ctx context.Context, kind model.BackupKind) (model.BackupMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string][]model.Record, len(m.tables))
	for _, table := range m.tables {
		records, err := m.store.Get(ctx, table)
		if err != nil {
			return model.BackupMetadata{}, fmt.Errorf("failed to read table %s: %w", table, err)
		}
		snapshot[table] = records
	}

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return model.BackupMetadata{}, &model.StoreError{Op: "backup", Err: fmt.Errorf("serialize: %w", err)}
	}

	tables := append([]string(nil), m.tables...)
	sort.Strings(tables)

	meta := model.BackupMetadata{
		ID:        m.newID(),
		Timestamp: m.now(),
		Version:   model.BackupSchemaVersion,
		Tables:    tables,
		Size:      len(blob),
		Checksum:  Checksum(blob),
		Kind:      kind,
	}
	if err := m.persist(ctx, meta, blob); err != nil {
		return model.BackupMetadata{}, err
	}

	m.log.WithFields(logrus.Fields{
		"backup_id": meta.ID,
		"kind":      kind,
		"size":      meta.Size,
	}).Info("backup created")

	m.rotate(ctx)
	return meta, nil
}

// persist writes blob and metadata and registers the backup. Caller holds mu.
func (m *BackupManager) persist(ctx context.Context, meta model.BackupMetadata, blob []byte) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return &model.StoreError{Op: "backup", Err: fmt.Errorf("serialize metadata: %w", err)}
	}

	if err := m.side.Put(ctx, m.blobKey(meta.ID), blob); err != nil {
		return &model.StoreError{Op: "backup", Err: err}
	}
	if err := m.side.Put(ctx, m.metaKey(meta.ID), metaJSON); err != nil {
		if delErr := m.side.Delete(ctx, m.blobKey(meta.ID)); delErr != nil {
			m.log.WithError(delErr).WithField("backup_id", meta.ID).Warn("failed to remove orphaned backup blob")
		}
		return &model.StoreError{Op: "backup", Err: err}
	}

	m.register(meta)
	return nil
}

// rotate deletes the oldest backups beyond the cap. Caller holds mu.
func (m *BackupManager) rotate(ctx context.Context) {
	excess := len(m.registry) - m.maxBackups
	if excess <= 0 {
		return
	}

	entries := m.sortedLocked()
	for i := len(entries) - 1; i >= len(entries)-excess; i-- {
		e := entries[i]
		if err := m.deleteLocked(ctx, e.meta.ID); err != nil {
			m.log.WithError(err).WithField("backup_id", e.meta.ID).Warn("failed to rotate backup")
			continue
		}
		m.log.WithField("backup_id", e.meta.ID).Info("rotated old backup")
	}
}

// RestoreBackup verifies the backup checksum and replaces every table it holds.
// Nothing is written when verification fails. The restore is not atomic across tables:
// when a table write fails, the tables already replaced are put back to their previous
// contents on a best-effort basis and the write error is returned.
func (m *BackupManager) RestoreBackup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.registry[id]
	if !ok {
		return model.NotFoundError("backup", id)
	}

	blob, err := m.readBlob(ctx, id)
	if err != nil {
		return err
	}
	if sum := Checksum(blob); sum != entry.meta.Checksum {
		return fmt.Errorf("%w: backup %s checksum %s does not match %s", model.ErrCorrupted, id, sum, entry.meta.Checksum)
	}

	tables, err := decodeBlob(blob)
	if err != nil {
		return fmt.Errorf("%w: backup %s: %v", model.ErrCorrupted, id, err)
	}

	order := restoreOrder(tables)
	previous := make(map[string][]model.Record, len(order))
	for _, name := range order {
		records, err := m.store.Get(ctx, name)
		if err != nil {
			m.log.WithError(err).WithField("table", name).Warn("current table unreadable, it will not be rolled back")
			continue
		}
		previous[name] = records
	}

	for i, name := range order {
		if err := m.store.Set(ctx, name, tables[name]); err != nil {
			m.rollback(ctx, order[:i], previous)
			return fmt.Errorf("failed to restore table %s: %w", name, err)
		}
	}

	m.log.WithFields(logrus.Fields{
		"backup_id": id,
		"tables":    len(tables),
	}).Info("backup restored")
	return nil
}

// rollback puts the already restored tables back, newest write first.
func (m *BackupManager) rollback(ctx context.Context, restored []string, previous map[string][]model.Record) {
	for i := len(restored) - 1; i >= 0; i-- {
		name := restored[i]
		records, ok := previous[name]
		if !ok {
			continue
		}
		if err := m.store.Set(ctx, name, records); err != nil {
			m.log.WithError(err).WithField("table", name).Error("failed to roll back restored table")
		}
	}
}

// ExportBackup returns the stored blob verbatim.
func (m *BackupManager) ExportBackup(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registry[id]; !ok {
		return nil, model.NotFoundError("backup", id)
	}
	return m.readBlob(ctx, id)
}

// ImportBackup registers an exported blob as a new manual backup.
func (m *BackupManager) ImportBackup(ctx context.Context, blob []byte) (model.BackupMetadata, error) {
	tables, err := decodeBlob(blob)
	if err != nil {
		return model.BackupMetadata{}, fmt.Errorf("%w: %v", model.ErrInvalidImport, err)
	}
	if len(tables) == 0 {
		return model.BackupMetadata{}, fmt.Errorf("%w: backup holds no tables", model.ErrInvalidImport)
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	m.mu.Lock()
	defer m.mu.Unlock()

	meta := model.BackupMetadata{
		ID:        m.newID(),
		Timestamp: m.now(),
		Version:   model.BackupSchemaVersion,
		Tables:    names,
		Size:      len(blob),
		Checksum:  Checksum(blob),
		Kind:      model.BackupManual,
	}
	if err := m.persist(ctx, meta, blob); err != nil {
		return model.BackupMetadata{}, err
	}

	m.log.WithFields(logrus.Fields{
		"backup_id": meta.ID,
		"tables":    len(names),
	}).Info("backup imported")

	m.rotate(ctx)
	return meta, nil
}

// DeleteBackup removes a backup. Deleting an unknown id is a no-op.
func (m *BackupManager) DeleteBackup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registry[id]; !ok {
		return nil
	}
	return m.deleteLocked(ctx, id)
}

// deleteLocked removes blob and metadata, then the registration. Caller holds mu.
func (m *BackupManager) deleteLocked(ctx context.Context, id string) error {
	if err := m.side.Delete(ctx, m.blobKey(id)); err != nil {
		return fmt.Errorf("failed to delete backup blob %s: %w", id, err)
	}
	if err := m.side.Delete(ctx, m.metaKey(id)); err != nil {
		return fmt.Errorf("failed to delete backup metadata %s: %w", id, err)
	}
	delete(m.registry, id)
	return nil
}

// Backup returns the metadata of one backup.
func (m *BackupManager) Backup(id string) (model.BackupMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.registry[id]
	if !ok {
		return model.BackupMetadata{}, model.NotFoundError("backup", id)
	}
	return entry.meta, nil
}

// ListBackups returns every known backup, newest first.
func (m *BackupManager) ListBackups() []model.BackupMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.sortedLocked()
	out := make([]model.BackupMetadata, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.meta)
	}
	return out
}

// Stats summarizes the retained backups.
func (m *BackupManager) Stats() model.BackupStats {
	list := m.ListBackups()

	stats := model.BackupStats{Count: len(list)}
	for _, meta := range list {
		stats.TotalBytes += meta.Size
	}
	if len(list) > 0 {
		newest := list[0].Timestamp
		oldest := list[len(list)-1].Timestamp
		stats.Newest = &newest
		stats.Oldest = &oldest
	}
	return stats
}

// sortedLocked returns the registry newest first. Caller holds mu.
func (m *BackupManager) sortedLocked() []backupEntry {
	entries := make([]backupEntry, 0, len(m.registry))
	for _, e := range m.registry {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.meta.Timestamp.Equal(b.meta.Timestamp) {
			return a.meta.Timestamp.After(b.meta.Timestamp)
		}
		return a.seq > b.seq
	})
	return entries
}

func (m *BackupManager) readBlob(ctx context.Context, id string) ([]byte, error) {
	blob, found, err := m.side.Get(ctx, m.blobKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", id, err)
	}
	if !found {
		return nil, model.NotFoundError("backup blob", id)
	}
	return blob, nil
}

// decodeBlob parses a backup blob into its tables.
func decodeBlob(blob []byte) (map[string][]model.Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode backup: not an object")
	}

	tables := make(map[string][]model.Record, len(raw))
	for name, data := range raw {
		records, err := model.DecodeRecords(data)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		tables[name] = records
	}
	return tables, nil
}

// restoreOrder lists the blob tables in backup order, unknown tables last.
func restoreOrder(tables map[string][]model.Record) []string {
	order := make([]string, 0, len(tables))
	known := make(map[string]bool, len(model.BackupTables))
	for _, name := range model.BackupTables {
		known[name] = true
		if _, ok := tables[name]; ok {
			order = append(order, name)
		}
	}

	var extra []string
	for name := range tables {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}
