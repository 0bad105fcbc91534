package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"restaurant-ops-api/internal/repository"
	"restaurant-ops-api/internal/store"
)

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeClock is a settable clock shared by the manager under test and its store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyKV fails every Put while failing is set, and Puts to keys ending in
// failSuffix at any time.
type flakyKV struct {
	*repository.MemoryKV
	mu         sync.Mutex
	failing    bool
	failSuffix string
}

func newFlakyKV() *flakyKV { return &flakyKV{MemoryKV: repository.NewMemoryKV()} }

func (f *flakyKV) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyKV) failKeysEndingIn(suffix string) {
	f.mu.Lock()
	f.failSuffix = suffix
	f.mu.Unlock()
}

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	failing := f.failing || (f.failSuffix != "" && strings.HasSuffix(key, f.failSuffix))
	f.mu.Unlock()
	if failing {
		return errors.New("write refused")
	}
	return f.MemoryKV.Put(ctx, key, value)
}

func createTestStore(t *testing.T, kv repository.KVStore, clock *fakeClock) *store.Store {
	t.Helper()
	st, err := store.New(context.Background(), kv, discardLogger(), store.Options{
		KeyPrefix: "restaurant_",
		Now:       clock.Now,
	})
	require.NoError(t, err)
	return st
}
