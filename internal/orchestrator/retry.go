package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// RetryCoordinator re-drives failed units with a bounded attempt budget.
// For each attempt it re-fetches the current record from the patient store,
// since state may have changed since the original run, then re-runs the
// workflow. Per-unit loops run concurrently with the same bulkhead
// isolation the batch path has.
type RetryCoordinator struct {
	executor UnitExecutor
	store    domain.PatientStore
	backoff  BackoffPolicy
	logger   *logrus.Logger
}

// NewRetryCoordinator creates a retry coordinator sharing the workflow
// executor and the application-wide backoff policy.
func NewRetryCoordinator(executor UnitExecutor, store domain.PatientStore, backoff BackoffPolicy, logger *logrus.Logger) *RetryCoordinator {
	return &RetryCoordinator{
		executor: executor,
		store:    store,
		backoff:  backoff,
		logger:   logger,
	}
}

// Retry re-drives every given failure up to maxRetries attempts, waiting
// the backoff delay between attempts. Every input unit lands in exactly one
// of Retried or FailedFinal; a unit that exhausts its budget is terminal
// for this subsystem and is never retried again.
func (r *RetryCoordinator) Retry(ctx context.Context, failures []domain.UnitResult, maxRetries int) domain.RetryOutcome {
	outcome := domain.RetryOutcome{
		Retried:     []domain.RetriedUnit{},
		FailedFinal: []domain.RetriedUnit{},
		StartedAt:   time.Now().UTC(),
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, failure := range failures {
		wg.Add(1)
		go func(unit domain.UnitResult) {
			defer wg.Done()
			retried, final := r.retryUnit(ctx, unit, maxRetries)
			mu.Lock()
			defer mu.Unlock()
			if retried != nil {
				outcome.Retried = append(outcome.Retried, *retried)
			} else {
				outcome.FailedFinal = append(outcome.FailedFinal, *final)
			}
		}(failure)
	}
	wg.Wait()

	outcome.CompletedAt = time.Now().UTC()
	r.logger.WithFields(logrus.Fields{
		"units":        len(failures),
		"retried":      len(outcome.Retried),
		"failed_final": len(outcome.FailedFinal),
	}).Info("Retry pass completed")

	return outcome
}

// retryUnit runs one unit's attempt loop. Exactly one of the return values
// is non-nil.
func (r *RetryCoordinator) retryUnit(ctx context.Context, unit domain.UnitResult, maxRetries int) (*domain.RetriedUnit, *domain.RetriedUnit) {
	ledger := domain.RetryLedgerEntry{PatientID: unit.PatientID}
	log := r.logger.WithField("patient_id", unit.PatientID)
	lastFailure := unit

	for {
		ledger.AttemptsMade++

		result := r.attempt(ctx, unit, lastFailure)
		if result.Succeeded() {
			log.WithField("attempts", ledger.AttemptsMade).Info("Unit recovered on retry")
			return &domain.RetriedUnit{UnitResult: result, AttemptsMade: ledger.AttemptsMade}, nil
		}

		lastFailure = result
		ledger.LastError = result.ErrorDetail

		if ledger.AttemptsMade >= maxRetries {
			log.WithFields(logrus.Fields{
				"attempts": ledger.AttemptsMade,
				"stage":    result.FailedStage,
			}).Warn("Unit exhausted retry budget")
			return nil, &domain.RetriedUnit{UnitResult: result, AttemptsMade: ledger.AttemptsMade}
		}

		if err := r.backoff.Wait(ctx, ledger.AttemptsMade); err != nil {
			// Shutdown mid-retry: the unit keeps its attempt count and is
			// reported terminal rather than silently dropped.
			log.WithField("attempts", ledger.AttemptsMade).Warn("Retry cancelled")
			return nil, &domain.RetriedUnit{UnitResult: result, AttemptsMade: ledger.AttemptsMade}
		}
	}
}

// attempt performs one re-fetch plus workflow run. A re-fetch failure is a
// terminal failure for this attempt and keeps the stage the unit originally
// broke at, so per-stage attribution survives retries.
func (r *RetryCoordinator) attempt(ctx context.Context, unit, lastFailure domain.UnitResult) domain.UnitResult {
	record, err := r.store.GetPatient(ctx, unit.PatientID)
	if err != nil {
		return domain.UnitFailure(unit.PatientID, lastFailure.FailedStage, fmt.Errorf("re-fetch failed: %w", err))
	}
	return r.executor.Execute(ctx, *record)
}
