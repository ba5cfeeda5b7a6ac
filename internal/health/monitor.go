package health

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// Monitor polls the registered backends on a fixed interval and keeps a
// bounded, expiring history of snapshots for the control-plane API. When a
// sweep finds an unhealthy backend it publishes the snapshot on Notify.
type Monitor struct {
	probe    *Probe
	services []string
	interval time.Duration
	logger   *logrus.Logger

	mu      sync.RWMutex
	latest  *domain.HealthSnapshot
	history *expirable.LRU[int64, domain.HealthSnapshot]

	notify   chan domain.HealthSnapshot
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor over the given services.
func NewMonitor(probe *Probe, services []string, cfg domain.HealthConfig, logger *logrus.Logger) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	size := cfg.HistorySize
	if size <= 0 {
		size = 120
	}
	ttl := cfg.HistoryTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Monitor{
		probe:    probe,
		services: services,
		interval: interval,
		logger:   logger,
		history:  expirable.NewLRU[int64, domain.HealthSnapshot](size, nil, ttl),
		notify:   make(chan domain.HealthSnapshot, 1),
		stopChan: make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called or ctx is cancelled. An
// initial sweep runs before the first tick.
func (m *Monitor) Start(ctx context.Context) {
	m.sweep(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep(ctx)
			case <-m.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.WithField("interval", m.interval.String()).Info("Health monitor started")
}

// Stop halts the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
	m.logger.Info("Health monitor stopped")
}

// Notify delivers snapshots in which at least one backend was unhealthy.
// Delivery is best effort; a slow consumer only misses intermediate
// snapshots, never the latest state, which Latest always serves.
func (m *Monitor) Notify() <-chan domain.HealthSnapshot {
	return m.notify
}

// Latest returns the most recent snapshot, or nil before the first sweep.
func (m *Monitor) Latest() *domain.HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// History returns the retained snapshots, oldest first.
func (m *Monitor) History() []domain.HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Values()
}

func (m *Monitor) sweep(ctx context.Context) {
	snapshot := m.probe.Sweep(ctx, m.services)

	m.mu.Lock()
	m.latest = &snapshot
	m.history.Add(snapshot.TakenAt.UnixNano(), snapshot)
	m.mu.Unlock()

	if !snapshot.AllHealthy() {
		m.logger.WithField("unhealthy", snapshot.Unhealthy()).Warn("Health sweep found unhealthy backends")
		select {
		case m.notify <- snapshot:
		default:
		}
	}
}
