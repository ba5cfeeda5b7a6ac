package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// WorkflowExecutor drives one patient record through the pipeline: ingest,
// then predict, then persist. Stages run strictly in order with exactly one
// attempt each; the first failing stage short-circuits the rest so
// persistence never happens for a unit that failed earlier. Executors hold
// no per-invocation state and are safe for concurrent use.
type WorkflowExecutor struct {
	ingestor     domain.Ingestor
	predictor    domain.Predictor
	store        domain.PatientStore
	stageTimeout time.Duration
	logger       *logrus.Logger
}

// NewWorkflowExecutor creates an executor over the three backend clients.
func NewWorkflowExecutor(ingestor domain.Ingestor, predictor domain.Predictor, store domain.PatientStore, stageTimeout time.Duration, logger *logrus.Logger) *WorkflowExecutor {
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Second
	}
	return &WorkflowExecutor{
		ingestor:     ingestor,
		predictor:    predictor,
		store:        store,
		stageTimeout: stageTimeout,
		logger:       logger,
	}
}

// Execute runs the three stages for one record and reports a tagged result.
// Backend errors never escape as Go errors; they are captured as a failure
// tagged with the stage that broke, so callers can distinguish "predicted
// but not saved" from "never predicted".
func (e *WorkflowExecutor) Execute(ctx context.Context, record domain.PatientRecord) domain.UnitResult {
	log := e.logger.WithField("patient_id", record.ID)

	if err := e.runStage(ctx, func(stageCtx context.Context) error {
		return e.ingestor.IngestPatient(stageCtx, record)
	}); err != nil {
		log.WithError(err).WithField("stage", domain.StageIngest).Warn("Workflow stage failed")
		return domain.UnitFailure(record.ID, domain.StageIngest, err)
	}

	var rec *domain.TreatmentRecommendation
	if err := e.runStage(ctx, func(stageCtx context.Context) error {
		var err error
		rec, err = e.predictor.PredictTreatment(stageCtx, record.GenomicData, record.MedicalHistory)
		return err
	}); err != nil {
		log.WithError(err).WithField("stage", domain.StagePredict).Warn("Workflow stage failed")
		return domain.UnitFailure(record.ID, domain.StagePredict, err)
	}

	if err := e.runStage(ctx, func(stageCtx context.Context) error {
		return e.store.AttachTreatment(stageCtx, record.ID, rec.RecommendedTreatment)
	}); err != nil {
		log.WithError(err).WithField("stage", domain.StagePersist).Warn("Workflow stage failed")
		return domain.UnitFailure(record.ID, domain.StagePersist, err)
	}

	log.WithFields(logrus.Fields{
		"treatment":  rec.RecommendedTreatment,
		"efficacy":   rec.Efficacy,
		"confidence": rec.ConfidenceLevel,
	}).Info("Workflow completed")
	return domain.UnitSuccess(record.ID, rec)
}

// runStage bounds one outbound stage call with the stage timeout.
func (e *WorkflowExecutor) runStage(ctx context.Context, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()
	return fn(stageCtx)
}
