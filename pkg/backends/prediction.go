package backends

import (
	"context"
	"fmt"
	"net/http"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// PredictionClient talks to the treatment prediction backend.
type PredictionClient struct {
	baseURL string
	opts    Options
}

// NewPredictionClient creates a client for the prediction backend.
func NewPredictionClient(baseURL string, opts Options) *PredictionClient {
	return &PredictionClient{
		baseURL: baseURL,
		opts:    opts.withDefaults(domain.ServicePrediction),
	}
}

// predictRequest is the POST /predict request body.
type predictRequest struct {
	GenomicData    map[string]interface{} `json:"genomic_data"`
	MedicalHistory map[string][]string    `json:"medical_history"`
}

// PredictTreatment asks the backend for a recommendation and validates the
// response shape. A missing treatment label, an efficacy outside [0,1] or an
// unknown confidence band is reported as a validation error, identically to
// a transport failure from the caller's point of view.
func (c *PredictionClient) PredictTreatment(ctx context.Context, genomic map[string]interface{}, history map[string][]string) (*domain.TreatmentRecommendation, error) {
	url := fmt.Sprintf("%s/predict", c.baseURL)
	req := predictRequest{GenomicData: genomic, MedicalHistory: history}

	var rec domain.TreatmentRecommendation
	err := call(ctx, domain.ServicePrediction, c.opts, func() error {
		if err := doJSON(ctx, c.opts.HTTPClient, domain.ServicePrediction, http.MethodPost, url, req, &rec); err != nil {
			return err
		}
		return rec.Validate()
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
