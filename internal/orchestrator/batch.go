package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// UnitExecutor drives a single unit of work. Satisfied by WorkflowExecutor.
type UnitExecutor interface {
	Execute(ctx context.Context, record domain.PatientRecord) domain.UnitResult
}

// BatchCoordinator fans independent workflow runs out concurrently and
// aggregates their results. One unit's failure never cancels or affects its
// siblings; every input record appears in exactly one of the report's two
// lists.
type BatchCoordinator struct {
	executor       UnitExecutor
	maxConcurrency int
	logger         *logrus.Logger
}

// NewBatchCoordinator creates a coordinator that admits at most
// maxConcurrency units at a time.
func NewBatchCoordinator(executor UnitExecutor, maxConcurrency int, logger *logrus.Logger) *BatchCoordinator {
	if maxConcurrency <= 0 {
		maxConcurrency = 16
	}
	return &BatchCoordinator{
		executor:       executor,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// RunBatch executes one workflow per record concurrently and aggregates a
// report. Completion order is unordered; results correlate back to inputs by
// patient ID. The report's lists preserve input order.
func (b *BatchCoordinator) RunBatch(ctx context.Context, records []domain.PatientRecord) domain.BatchReport {
	report := domain.BatchReport{
		BatchID:    uuid.New().String(),
		Successful: []domain.UnitResult{},
		Failed:     []domain.UnitResult{},
		StartedAt:  time.Now().UTC(),
	}

	results := make([]domain.UnitResult, len(records))
	sem := make(chan struct{}, b.maxConcurrency)
	done := make(chan int, len(records))

	for i, record := range records {
		go func(idx int, rec domain.PatientRecord) {
			defer func() {
				// Bulkhead: a panicking unit becomes a failure instead of
				// taking the whole batch down.
				if r := recover(); r != nil {
					results[idx] = domain.UnitFailure(rec.ID, domain.StageIngest, fmt.Errorf("unit panic: %v", r))
				}
				done <- idx
			}()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = b.executor.Execute(ctx, rec)
		}(i, record)
	}

	for range records {
		<-done
	}

	for _, result := range results {
		if result.Succeeded() {
			report.Successful = append(report.Successful, result)
		} else {
			report.Failed = append(report.Failed, result)
		}
	}
	report.SuccessfulCount = len(report.Successful)
	report.FailedCount = len(report.Failed)
	report.CompletedAt = time.Now().UTC()

	b.logger.WithFields(logrus.Fields{
		"batch_id":   report.BatchID,
		"records":    len(records),
		"successful": report.SuccessfulCount,
		"failed":     report.FailedCount,
	}).Info("Batch completed")

	return report
}
