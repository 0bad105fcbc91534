package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
)

// DefaultStatusInterval is how often the monitor polls its probes.
const DefaultStatusInterval = 30 * time.Second

const probeTimeout = 5 * time.Second

// Probe checks one host capability the core depends on but does not own.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

type probeFunc struct {
	name  string
	check func(ctx context.Context) error
}

func (p probeFunc) Name() string                    { return p.name }
func (p probeFunc) Check(ctx context.Context) error { return p.check(ctx) }

// NewProbe wraps a check function as a Probe.
func NewProbe(name string, check func(ctx context.Context) error) Probe {
	return probeFunc{name: name, check: check}
}

// Pinger is anything with a liveness check, such as the record store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreProbe reports whether the durable backend answers.
func StoreProbe(p Pinger) Probe {
	return NewProbe("store", p.Ping)
}

// RedisProbe reports whether Redis answers.
func RedisProbe(client *redis.Client) Probe {
	return NewProbe("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// HTTPProbe reports whether url answers with a non-5xx status.
func HTTPProbe(url string, client *http.Client) Probe {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	return NewProbe("connectivity", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	})
}

// StatusMonitor polls its probes on an interval and keeps the latest result.
// Probe failures are recorded in the status, never returned.
type StatusMonitor struct {
	probes   []Probe
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	mu     sync.RWMutex
	status model.SystemStatus

	runMu     sync.Mutex
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
}

// NewStatusMonitor creates a monitor. A zero interval means 30 seconds.
func NewStatusMonitor(probes []Probe, interval time.Duration, log logrus.FieldLogger, opts ...Option) *StatusMonitor {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	o := buildOptions(opts)
	return &StatusMonitor{
		probes:   probes,
		interval: interval,
		log:      log.WithField("component", "status"),
		now:      o.now,
		status:   model.SystemStatus{Probes: []model.ProbeResult{}},
		stopCh:   make(chan struct{}),
	}
}

// Start polls once and then on every tick until Stop.
func (m *StatusMonitor) Start() {
	m.runMu.Lock()
	select {
	case <-m.stopCh:
		m.runMu.Unlock()
		return
	default:
	}
	if m.isRunning {
		m.runMu.Unlock()
		return
	}
	m.isRunning = true
	m.ticker = time.NewTicker(m.interval)
	m.runMu.Unlock()

	go func() {
		m.Poll(context.Background())
		for {
			select {
			case <-m.ticker.C:
				m.Poll(context.Background())
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop ends polling. It is safe to call more than once.
func (m *StatusMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.runMu.Lock()
		defer m.runMu.Unlock()

		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.stopCh)
		m.isRunning = false
	})
}

// Poll runs every probe now and stores the result.
func (m *StatusMonitor) Poll(ctx context.Context) model.SystemStatus {
	status := model.SystemStatus{
		Healthy:   true,
		CheckedAt: m.now(),
		Probes:    make([]model.ProbeResult, 0, len(m.probes)),
	}

	for _, p := range m.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()

		result := model.ProbeResult{Name: p.Name(), Healthy: err == nil}
		if err != nil {
			result.Error = err.Error()
			status.Healthy = false
			m.log.WithError(err).WithField("probe", p.Name()).Warn("probe failed")
		}
		status.Probes = append(status.Probes, result)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return status
}

// Snapshot returns the latest polled status.
func (m *StatusMonitor) Snapshot() model.SystemStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.status
	out.Probes = append([]model.ProbeResult(nil), m.status.Probes...)
	return out
}
