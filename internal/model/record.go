package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Table names used by the managers and included in backups.
const (
	TableOrders          = "orders"
	TableCompletedOrders = "completed_orders"
	TableInventory       = "inventory"
	TableMenuItems       = "menu_items"
	TableTables          = "tables"
	TableSettings        = "settings"
)

// BackupTables lists every table captured by a backup, in blob order.
var BackupTables = []string{
	TableMenuItems,
	TableTables,
	TableOrders,
	TableCompletedOrders,
	TableInventory,
	TableSettings,
}

// Record fields stamped by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Record is one structured entity inside a table.
// Numbers are kept as json.Number so a decode/encode cycle is lossless.
type Record map[string]any

// ID returns the record identifier, or "" when absent.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge copies every field of patch into r.
func (r Record) Merge(patch Record) {
	for k, v := range patch {
		r[k] = v
	}
}

// DecodeRecords parses a JSON array of records.
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// ToRecord converts a typed value into a Record via its JSON form.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// FromRecord fills dst from a Record via its JSON form.
func FromRecord(rec Record, dst any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// FromRecords decodes every record of a table into typed values.
func FromRecords[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := FromRecord(rec, &v); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
