package domain

import (
	"context"
)

// Ingestor forwards a patient record to the ingestion backend.
type Ingestor interface {
	IngestPatient(ctx context.Context, record PatientRecord) error
}

// Predictor obtains a treatment recommendation for a patient's genomic data
// and medical history.
type Predictor interface {
	PredictTreatment(ctx context.Context, genomic map[string]interface{}, history map[string][]string) (*TreatmentRecommendation, error)
}

// PatientStore reads records from and attaches treatments to the patient
// store backend.
type PatientStore interface {
	GetPatient(ctx context.Context, id string) (*PatientRecord, error)
	AttachTreatment(ctx context.Context, patientID, treatment string) error
}

// ReportArchive persists batch and retry outcomes for operator audit. The
// pipeline's own entities stay ephemeral; the archive is the manager layer's
// output artifact.
type ReportArchive interface {
	SaveBatchReport(ctx context.Context, report *BatchReport) error
	SaveRetryOutcome(ctx context.Context, batchID string, outcome *RetryOutcome) error
	ListBatchReports(ctx context.Context, limit int) ([]*BatchReport, error)
	Close() error
}
