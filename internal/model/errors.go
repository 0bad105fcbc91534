package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, managers and HTTP layer.
var (
	ErrNotFound          = errors.New("not found")
	ErrCorrupted         = errors.New("backup corrupted")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStoreWrite        = errors.New("store write failure")
	ErrInvalidImport     = errors.New("invalid backup import")
	ErrInvalidInput      = errors.New("invalid input")
)

// StoreError describes a failed persistence step. Nothing was written when it is returned.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store %s %q: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreWrite, e.Err} }

// StockError reports a consumption larger than the available stock.
type StockError struct {
	ItemID    string
	Requested float64
	Available float64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %g, available %g", e.ItemID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// NotFoundError names the missing entity.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// InvalidInputError rejects a malformed argument before anything is written.
func InvalidInputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
