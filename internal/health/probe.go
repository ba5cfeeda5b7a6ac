// Package health implements backend liveness probing and the steady-state
// health monitor used to gate admission of work.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/registry"
)

// Probe issues single-attempt liveness checks against registered backends.
// It fails closed: any transport error, timeout or unexpected status reports
// unhealthy, never an error. Retry policy belongs to the caller.
type Probe struct {
	registry   *registry.Registry
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewProbe creates a probe with the given per-check timeout.
func NewProbe(reg *registry.Registry, timeout time.Duration, logger *logrus.Logger) *Probe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Probe{
		registry: reg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Check probes one service and returns its full status.
func (p *Probe) Check(ctx context.Context, service string) domain.HealthStatus {
	start := time.Now()
	status := domain.HealthStatus{
		Service:   service,
		CheckedAt: start.UTC(),
	}

	addr, err := p.registry.Resolve(service)
	if err != nil {
		p.logger.WithError(err).WithField("service", service).Error("Health check against unregistered service")
		status.Latency = time.Since(start)
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", addr), nil)
	if err != nil {
		status.Latency = time.Since(start)
		return status
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("service", service).Debug("Health check failed")
		status.Latency = time.Since(start)
		return status
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	status.Healthy = resp.StatusCode == http.StatusOK
	status.Latency = time.Since(start)
	return status
}

// IsHealthy probes one service with a single attempt.
func (p *Probe) IsHealthy(ctx context.Context, service string) bool {
	return p.Check(ctx, service).Healthy
}

// CheckAll probes all given services concurrently and returns once every
// probe completes. The map covers each input name exactly once; there is no
// ordering guarantee between services.
func (p *Probe) CheckAll(ctx context.Context, services []string) map[string]bool {
	snapshot := p.Sweep(ctx, services)
	results := make(map[string]bool, len(services))
	for name, st := range snapshot.Services {
		results[name] = st.Healthy
	}
	return results
}

// Sweep probes all given services concurrently and returns a snapshot with
// full per-service status.
func (p *Probe) Sweep(ctx context.Context, services []string) domain.HealthSnapshot {
	snapshot := domain.HealthSnapshot{
		TakenAt:  time.Now().UTC(),
		Services: make(map[string]domain.HealthStatus, len(services)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, service := range services {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			status := p.Check(ctx, name)
			mu.Lock()
			snapshot.Services[name] = status
			mu.Unlock()
		}(service)
	}
	wg.Wait()

	return snapshot
}
