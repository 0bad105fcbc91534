package service

import (
	"time"

	"restaurant-ops-api/pkg/uid"
)

// Option customizes a manager.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		// Stamp ids from the manager clock so they sort with its timestamps.
		now := o.now
		o.newID = func() string { return uid.NewAt(now()) }
	}
	return o
}

// WithClock replaces the wall clock. Tests use it to cross day boundaries.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}
