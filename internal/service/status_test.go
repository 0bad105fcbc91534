package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-ops-api/internal/repository"
)

func TestStatusMonitor_Poll(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
	probes := []Probe{
		StoreProbe(repository.NewMemoryKV()),
		NewProbe("printer", func(context.Context) error { return errors.New("serial port missing") }),
	}
	m := NewStatusMonitor(probes, time.Minute, discardLogger(), WithClock(clock.Now))

	status := m.Poll(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.CheckedAt.Equal(clock.Now()))
	require.Len(t, status.Probes, 2)
	assert.Equal(t, "store", status.Probes[0].Name)
	assert.True(t, status.Probes[0].Healthy)
	assert.Equal(t, "printer", status.Probes[1].Name)
	assert.Equal(t, "serial port missing", status.Probes[1].Error)

	assert.Equal(t, status, m.Snapshot())
}

func TestStatusMonitor_StartStop(t *testing.T) {
	var calls atomic.Int32
	probe := NewProbe("tick", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	m := NewStatusMonitor([]Probe{probe}, 10*time.Millisecond, discardLogger())

	m.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	assert.True(t, m.Snapshot().Healthy)
}

func TestHTTPProbe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	assert.NoError(t, HTTPProbe(ok.URL, nil).Check(context.Background()))
	assert.Error(t, HTTPProbe(broken.URL, nil).Check(context.Background()))
}
