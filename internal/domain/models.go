package domain

import (
	"time"
)

// Logical service names resolved through the endpoint registry.
const (
	ServiceIngestion    = "ingestion"
	ServicePrediction   = "prediction"
	ServicePatientStore = "patient_store"
)

// KnownServices lists every backend the orchestrator talks to.
var KnownServices = []string{ServiceIngestion, ServicePrediction, ServicePatientStore}

// PatientRecord is the unit of work flowing through the pipeline. The
// orchestrator never mutates a record; it only forwards it to the backends.
// GenomicData is semantically opaque here - marker names map to whatever
// value shape the prediction backend understands.
type PatientRecord struct {
	ID             string                 `json:"id"`
	GenomicData    map[string]interface{} `json:"genomic_data"`
	MedicalHistory map[string][]string    `json:"medical_history"`
}

// ConfidenceLevel is the prediction backend's confidence band.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Valid reports whether the confidence level is one of the agreed bands.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// TreatmentRecommendation is the prediction backend's response for one patient.
type TreatmentRecommendation struct {
	RecommendedTreatment string          `json:"recommended_treatment"`
	Efficacy             float64         `json:"efficacy"`
	ConfidenceLevel      ConfidenceLevel `json:"confidence_level"`
}

// Validate checks the recommendation against the response contract: a
// non-empty treatment label, efficacy within [0,1] and a known confidence
// band. A recommendation that fails validation is treated the same as a
// transport failure by the workflow executor.
func (r *TreatmentRecommendation) Validate() error {
	if r.RecommendedTreatment == "" {
		return NewValidationError(ServicePrediction, "missing recommended_treatment")
	}
	if r.Efficacy < 0 || r.Efficacy > 1 {
		return NewValidationError(ServicePrediction, "efficacy out of range [0,1]")
	}
	if !r.ConfidenceLevel.Valid() {
		return NewValidationError(ServicePrediction, "unknown confidence_level")
	}
	return nil
}

// HealthStatus is the outcome of a single liveness probe. It is ephemeral:
// recomputed on every probe, never persisted by the orchestrator.
type HealthStatus struct {
	Service   string        `json:"service"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthSnapshot is one concurrent sweep over all registered services.
type HealthSnapshot struct {
	TakenAt  time.Time               `json:"taken_at"`
	Services map[string]HealthStatus `json:"services"`
}

// AllHealthy reports whether every probed service answered healthy.
func (s HealthSnapshot) AllHealthy() bool {
	for _, st := range s.Services {
		if !st.Healthy {
			return false
		}
	}
	return true
}

// Unhealthy returns the names of services that failed their probe.
func (s HealthSnapshot) Unhealthy() []string {
	var down []string
	for name, st := range s.Services {
		if !st.Healthy {
			down = append(down, name)
		}
	}
	return down
}
