// Package system ties the orchestration components together: it gates
// startup on backend health, keeps the steady-state monitor running and
// drives batch-plus-retry passes end to end.
package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/health"
	"github.com/genomic-pipeline-orchestrator/internal/orchestrator"
)

// ErrBackendUnhealthy is returned when steady-state monitoring finds a
// backend down and the manager stops admitting work.
var ErrBackendUnhealthy = errors.New("backend health check failed")

// Manager supervises the orchestration lifecycle.
type Manager struct {
	probe   *health.Probe
	monitor *health.Monitor
	batch   *orchestrator.BatchCoordinator
	retry   *orchestrator.RetryCoordinator
	archive domain.ReportArchive
	backoff orchestrator.BackoffPolicy
	cfg     domain.Config
	logger  *logrus.Logger
}

// NewManager wires a manager from the already constructed components.
// archive may be nil when archiving is disabled.
func NewManager(
	probe *health.Probe,
	monitor *health.Monitor,
	batch *orchestrator.BatchCoordinator,
	retry *orchestrator.RetryCoordinator,
	reportArchive domain.ReportArchive,
	backoff orchestrator.BackoffPolicy,
	cfg domain.Config,
	logger *logrus.Logger,
) *Manager {
	return &Manager{
		probe:   probe,
		monitor: monitor,
		batch:   batch,
		retry:   retry,
		archive: reportArchive,
		backoff: backoff,
		cfg:     cfg,
		logger:  logger,
	}
}

// WaitUntilHealthy refuses to admit work until every backend reports
// healthy, probing with the shared backoff policy between sweeps. It gives
// up after the configured startup window.
func (m *Manager) WaitUntilHealthy(ctx context.Context, services []string) error {
	maxWait := m.cfg.Health.StartupMaxWait
	if maxWait <= 0 {
		maxWait = time.Minute
	}
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		results := m.probe.CheckAll(ctx, services)
		var down []string
		for name, healthy := range results {
			if !healthy {
				down = append(down, name)
			}
		}
		if len(down) == 0 {
			m.logger.WithField("services", services).Info("All backends healthy")
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("backends not healthy after %s: %v", maxWait, down)
		}

		m.logger.WithFields(logrus.Fields{
			"attempt":   attempt,
			"unhealthy": down,
		}).Warn("Waiting for backends to become healthy")

		if err := m.backoff.Wait(ctx, attempt); err != nil {
			return err
		}
	}
}

// Run gates startup, then runs the health monitor until ctx is cancelled or
// a steady-state sweep finds a backend down.
func (m *Manager) Run(ctx context.Context, services []string) error {
	if err := m.WaitUntilHealthy(ctx, services); err != nil {
		return err
	}

	m.monitor.Start(ctx)
	defer m.monitor.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Shutdown requested, stopping system")
			return nil
		case snapshot := <-m.monitor.Notify():
			m.logger.WithField("unhealthy", snapshot.Unhealthy()).Error("Steady-state health check failed")
			return ErrBackendUnhealthy
		}
	}
}

// BatchFileResult summarizes one ProcessBatchFile pass.
type BatchFileResult struct {
	Processed int                  `json:"processed"`
	Report    domain.BatchReport   `json:"report"`
	Retry     *domain.RetryOutcome `json:"retry,omitempty"`
}

// ProcessBatchFile loads patient records from a JSON file, runs them as one
// batch, re-drives the failed subset and archives both outcomes.
func (m *Manager) ProcessBatchFile(ctx context.Context, path string) (*BatchFileResult, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var records []domain.PatientRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}

	return m.ProcessBatch(ctx, records)
}

// ProcessBatch runs one batch plus a retry pass over its failures.
func (m *Manager) ProcessBatch(ctx context.Context, records []domain.PatientRecord) (*BatchFileResult, error) {
	report := m.batch.RunBatch(ctx, records)
	result := &BatchFileResult{
		Processed: len(records),
		Report:    report,
	}

	if m.archive != nil {
		if err := m.archive.SaveBatchReport(ctx, &report); err != nil {
			m.logger.WithError(err).Error("Failed to archive batch report")
		}
	}

	if len(report.Failed) > 0 && m.cfg.Retry.MaxRetries > 0 {
		outcome := m.retry.Retry(ctx, report.Failed, m.cfg.Retry.MaxRetries)
		result.Retry = &outcome

		if m.archive != nil {
			if err := m.archive.SaveRetryOutcome(ctx, report.BatchID, &outcome); err != nil {
				m.logger.WithError(err).Error("Failed to archive retry outcome")
			}
		}
	}

	return result, nil
}
