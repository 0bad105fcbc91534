// Package lease guards the durable store with a Redis-held single-writer lease.
// Only one API or CLI instance may write to a store at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrHeld is returned when another instance holds the lease.
var ErrHeld = errors.New("writer lease held by another instance")

// Writer is an obtained lease, refreshed in the background until Release.
type Writer struct {
	lock *redislock.Lock
	key  string
	ttl  time.Duration
	log  logrus.FieldLogger

	stopCh  chan struct{}
	doneCh  chan struct{}
	lostCh  chan struct{}
	once    sync.Once
	lostOne sync.Once
}

// Acquire obtains the lease on key and starts refreshing it every ttl/2.
func Acquire(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, log logrus.FieldLogger) (*Writer, error) {
	lock, err := redislock.New(client).Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrHeld, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain writer lease: %w", err)
	}

	w := &Writer{
		lock:   lock,
		key:    key,
		ttl:    ttl,
		log:    log.WithFields(logrus.Fields{"component": "lease", "key": key}),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		lostCh: make(chan struct{}),
	}
	go w.refreshLoop()

	w.log.WithField("ttl", ttl.String()).Info("writer lease obtained")
	return w, nil
}

func (w *Writer) refreshLoop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.ttl/2)
			err := w.lock.Refresh(ctx, w.ttl, nil)
			cancel()
			if err != nil {
				w.log.WithError(err).Error("failed to refresh writer lease")
				if errors.Is(err, redislock.ErrNotObtained) {
					w.lostOne.Do(func() { close(w.lostCh) })
					return
				}
			}
		case <-w.stopCh:
			return
		}
	}
}

// Lost is closed when the lease expired or was taken over.
func (w *Writer) Lost() <-chan struct{} {
	return w.lostCh
}

// Release stops refreshing and gives the lease up. It is safe to call more than once.
func (w *Writer) Release(ctx context.Context) error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		<-w.doneCh

		err = w.lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			err = nil
		}
		if err == nil {
			w.log.Info("writer lease released")
		}
	})
	return err
}
