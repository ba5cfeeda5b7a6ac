package domain

import (
	"time"
)

// Stage identifies the pipeline phase at which a unit of work failed.
type Stage string

const (
	StageIngest  Stage = "ingest"
	StagePredict Stage = "predict"
	StagePersist Stage = "persist"
)

// UnitResult is the tagged outcome of one patient record's pass through the
// ingest -> predict -> persist pipeline. Either Recommendation is set and
// FailedStage is empty (success), or FailedStage names where the pipeline
// broke. Results are immutable once produced and owned by the batch report
// that aggregates them.
type UnitResult struct {
	PatientID      string                   `json:"patient_id"`
	Recommendation *TreatmentRecommendation `json:"recommendation,omitempty"`
	FailedStage    Stage                    `json:"failed_stage,omitempty"`
	ErrorDetail    string                   `json:"error,omitempty"`
	CompletedAt    time.Time                `json:"completed_at"`
}

// Succeeded reports whether the unit completed all three stages.
func (r UnitResult) Succeeded() bool {
	return r.FailedStage == ""
}

// UnitSuccess builds a successful result.
func UnitSuccess(patientID string, rec *TreatmentRecommendation) UnitResult {
	return UnitResult{
		PatientID:      patientID,
		Recommendation: rec,
		CompletedAt:    time.Now().UTC(),
	}
}

// UnitFailure builds a failed result tagged with the stage that broke.
func UnitFailure(patientID string, stage Stage, err error) UnitResult {
	return UnitResult{
		PatientID:   patientID,
		FailedStage: stage,
		ErrorDetail: err.Error(),
		CompletedAt: time.Now().UTC(),
	}
}

// BatchReport aggregates a batch run. Invariant: len(Successful) +
// len(Failed) equals the number of input records, with no unit dropped.
type BatchReport struct {
	BatchID         string       `json:"batch_id"`
	SuccessfulCount int          `json:"successful_count"`
	FailedCount     int          `json:"failed_count"`
	Successful      []UnitResult `json:"successful"`
	Failed          []UnitResult `json:"failed"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     time.Time    `json:"completed_at"`
}

// RetriedUnit is a unit result annotated with how many retry attempts were
// spent on it.
type RetriedUnit struct {
	UnitResult
	AttemptsMade int `json:"attempts_made"`
}

// RetryOutcome reports the fate of a retried failure set. Units in
// FailedFinal have exhausted their attempt budget and are terminal for this
// subsystem.
type RetryOutcome struct {
	Retried     []RetriedUnit `json:"retried"`
	FailedFinal []RetriedUnit `json:"failed_final"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// RetryLedgerEntry tracks the retry state of one failed unit while its
// attempt loop runs. AttemptsMade never exceeds the configured budget.
type RetryLedgerEntry struct {
	PatientID    string `json:"patient_id"`
	AttemptsMade int    `json:"attempts_made"`
	LastError    string `json:"last_error"`
}
