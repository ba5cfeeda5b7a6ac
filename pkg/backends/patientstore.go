package backends

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// PatientStoreClient talks to the patient management backend.
type PatientStoreClient struct {
	baseURL string
	opts    Options
}

// NewPatientStoreClient creates a client for the patient store backend.
func NewPatientStoreClient(baseURL string, opts Options) *PatientStoreClient {
	return &PatientStoreClient{
		baseURL: baseURL,
		opts:    opts.withDefaults(domain.ServicePatientStore),
	}
}

// GetPatient fetches the current record via GET /patients/{id}. Retry paths
// use this to observe state that may have changed since the original
// attempt.
func (c *PatientStoreClient) GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error) {
	target := fmt.Sprintf("%s/patients/%s", c.baseURL, url.PathEscape(id))

	var record domain.PatientRecord
	err := call(ctx, domain.ServicePatientStore, c.opts, func() error {
		if err := doJSON(ctx, c.opts.HTTPClient, domain.ServicePatientStore, http.MethodGet, target, nil, &record); err != nil {
			return err
		}
		if record.ID == "" {
			return domain.NewValidationError(domain.ServicePatientStore, "patient record missing id")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// attachTreatmentRequest is the POST /patients/{id}/treatments request body.
type attachTreatmentRequest struct {
	Treatment string `json:"treatment"`
}

// AttachTreatment records a recommended treatment against the patient via
// POST /patients/{id}/treatments.
func (c *PatientStoreClient) AttachTreatment(ctx context.Context, patientID, treatment string) error {
	target := fmt.Sprintf("%s/patients/%s/treatments", c.baseURL, url.PathEscape(patientID))
	return call(ctx, domain.ServicePatientStore, c.opts, func() error {
		return doJSON(ctx, c.opts.HTTPClient, domain.ServicePatientStore, http.MethodPost, target, attachTreatmentRequest{Treatment: treatment}, nil)
	})
}
