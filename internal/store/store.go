// Package store provides the record store: named tables of records persisted in a
// durable key/value backend, with per-table subscriber notification and an audit log.
//
// Every committed write replaces a whole table, appends one audit entry and then
// synchronously notifies the table's subscribers. A failed write changes nothing and
// notifies no one. Writes are serialized; subscribers must not write to the store from
// inside their callback.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/repository"
	"restaurant-ops-api/pkg/uid"
)

// ErrSkip tells Mutate to leave the table untouched and report success.
var ErrSkip = errors.New("skip write")

var errDuplicateID = errors.New("duplicate record id")

// Subscriber receives the full current contents of a table after every committed write.
type Subscriber func(records []model.Record)

// MutateFunc computes the new contents of a table from its current contents.
type MutateFunc func(records []model.Record) ([]model.Record, error)

// Options configures a Store.
type Options struct {
	KeyPrefix    string
	PersistAudit bool
	Now          func() time.Time
	NewID        func() string
}

type subscription struct {
	id uint64
	fn Subscriber
}

// Store is the record store. Construct one per durable backend and pass it to the managers.
type Store struct {
	kv     repository.KVStore
	prefix string
	log    logrus.FieldLogger
	now    func() time.Time
	newID  func() string

	persistAudit bool
	audit        *AuditLog

	writeMu sync.Mutex // serializes mutations and their notifications

	mu     sync.RWMutex
	tables map[string][]byte // committed JSON per table

	subMu   sync.RWMutex
	subs    map[string][]subscription
	nextSub uint64
}

// New builds a store over kv and reloads the persisted audit log.
func New(ctx context.Context, kv repository.KVStore, log logrus.FieldLogger, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uid.New
	}

	s := &Store{
		kv:           kv,
		prefix:       opts.KeyPrefix,
		log:          log.WithField("component", "store"),
		now:          opts.Now,
		newID:        opts.NewID,
		persistAudit: opts.PersistAudit,
		audit:        newAuditLog(AuditCapacity),
		tables:       make(map[string][]byte),
		subs:         make(map[string][]subscription),
	}

	if opts.PersistAudit {
		if err := s.loadAudit(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) tableKey(table string) string {
	return s.prefix + repository.TableKeyPrefix + table
}

// Get returns the current contents of table, or an empty slice if it was never written.
// The returned records are private copies.
func (s *Store) Get(ctx context.Context, table string) ([]model.Record, error) {
	data, err := s.raw(ctx, table)
	if err != nil {
		return nil, err
	}
	return model.DecodeRecords(data)
}

// raw returns the committed JSON of table, loading it from the backend on first use.
func (s *Store) raw(ctx context.Context, table string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.tables[table]
	s.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, found, err := s.kv.Get(ctx, s.tableKey(table))
	if err != nil {
		return nil, fmt.Errorf("store get %q: %w", table, err)
	}
	if !found {
		data = []byte("[]")
	}
	if _, err := model.DecodeRecords(data); err != nil {
		return nil, fmt.Errorf("store get %q: %w", table, err)
	}

	s.mu.Lock()
	if cached, ok := s.tables[table]; ok {
		data = cached
	} else {
		s.tables[table] = data
	}
	s.mu.Unlock()
	return data, nil
}

// Set replaces the whole table, persists it, appends an audit entry and notifies subscribers.
func (s *Store) Set(ctx context.Context, table string, records []model.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.commit(ctx, model.AuditReplace, table, records)
}

// Mutate runs a read-modify-write of table as one critical section.
// An error from fn aborts the write and is returned as is; ErrSkip aborts it silently.
func (s *Store) Mutate(ctx context.Context, table, op string, fn MutateFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Get(ctx, table)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if errors.Is(err, ErrSkip) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.commit(ctx, op, table, next)
}

// AddItem assigns a fresh id and creation timestamp to value and appends it to table.
func (s *Store) AddItem(ctx context.Context, table string, value model.Record) (model.Record, error) {
	item := value.Clone()
	item[model.FieldID] = s.newID()
	item[model.FieldCreatedAt] = s.now().Format(time.RFC3339Nano)

	err := s.Mutate(ctx, table, model.AuditCreate, func(records []model.Record) ([]model.Record, error) {
		return append(records, item), nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem merges patch into the record with the given id and stamps updated_at.
// A missing id is a silent no-op.
func (s *Store) UpdateItem(ctx context.Context, table, id string, patch model.Record) error {
	return s.Mutate(ctx, table, model.AuditUpdate, func(records []model.Record) ([]model.Record, error) {
		for i, rec := range records {
			if rec.ID() != id {
				continue
			}
			rec.Merge(patch)
			rec[model.FieldID] = id
			rec[model.FieldUpdatedAt] = s.now().Format(time.RFC3339Nano)
			records[i] = rec
			return records, nil
		}
		return nil, ErrSkip
	})
}

// DeleteItem removes the record with the given id. A missing id is a silent no-op.
func (s *Store) DeleteItem(ctx context.Context, table, id string) error {
	return s.Mutate(ctx, table, model.AuditDelete, func(records []model.Record) ([]model.Record, error) {
		for i, rec := range records {
			if rec.ID() == id {
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return nil, ErrSkip
	})
}

// Subscribe registers fn for table. The returned function removes exactly this
// subscription and is safe to call more than once.
func (s *Store) Subscribe(table string, fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[table] = append(s.subs[table], subscription{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()

		list := s.subs[table]
		for i, sub := range list {
			if sub.id == id {
				s.subs[table] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(s.subs[table]) == 0 {
			delete(s.subs, table)
		}
	}
}

// Tables lists every table that has been persisted or loaded.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	keyPrefix := s.prefix + repository.TableKeyPrefix
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("store tables: %w", err)
	}

	seen := make(map[string]bool)
	for _, k := range keys {
		seen[strings.TrimPrefix(k, keyPrefix)] = true
	}
	s.mu.RLock()
	for name := range s.tables {
		seen[name] = true
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Audit returns the audit log.
func (s *Store) Audit() *AuditLog {
	return s.audit
}

// Ping checks the durable backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// commit persists records as the new contents of table. Caller holds writeMu.
func (s *Store) commit(ctx context.Context, op, table string, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	if err := checkUniqueIDs(records); err != nil {
		return &model.StoreError{Op: op, Table: table, Err: err}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return &model.StoreError{Op: op, Table: table, Err: fmt.Errorf("serialize: %w", err)}
	}

	if err := s.kv.Put(ctx, s.tableKey(table), data); err != nil {
		return &model.StoreError{Op: op, Table: table, Err: err}
	}

	s.mu.Lock()
	s.tables[table] = data
	s.mu.Unlock()

	s.recordAudit(ctx, op, table, data)
	s.notify(table, data)
	return nil
}

func checkUniqueIDs(records []model.Record) error {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", errDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (s *Store) recordAudit(ctx context.Context, op, table string, data []byte) {
	s.audit.append(model.AuditEntry{
		ID:        s.newID(),
		Operation: op,
		Table:     table,
		Timestamp: s.now(),
		Data:      truncate(string(data), AuditSnapshotSize),
	})

	if !s.persistAudit {
		return
	}
	payload, err := json.Marshal(s.audit.Entries())
	if err == nil {
		err = s.kv.Put(ctx, s.prefix+repository.AuditLogKey, payload)
	}
	if err != nil {
		s.log.WithError(err).WithField("table", table).Warn("failed to persist audit log")
	}
}

func (s *Store) loadAudit(ctx context.Context) error {
	data, found, err := s.kv.Get(ctx, s.prefix+repository.AuditLogKey)
	if err != nil {
		return fmt.Errorf("load audit log: %w", err)
	}
	if !found {
		return nil
	}

	var entries []model.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.WithError(err).Warn("discarding unreadable audit log")
		return nil
	}
	s.audit.restore(entries)
	return nil
}

// notify hands every subscriber of table its own decoded copy of data.
func (s *Store) notify(table string, data []byte) {
	s.subMu.RLock()
	subs := append([]subscription(nil), s.subs[table]...)
	s.subMu.RUnlock()

	for _, sub := range subs {
		records, err := model.DecodeRecords(data)
		if err != nil {
			s.log.WithError(err).WithField("table", table).Error("failed to decode table for subscriber")
			return
		}
		s.deliver(table, sub, records)
	}
}

func (s *Store) deliver(table string, sub subscription, records []model.Record) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"table":        table,
				"subscription": sub.id,
				"panic":        r,
			}).Error("subscriber panicked")
		}
	}()
	sub.fn(records)
}
