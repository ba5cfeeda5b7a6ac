package backends

import (
	"context"
	"fmt"
	"net/http"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// IngestionClient talks to the data ingestion backend.
type IngestionClient struct {
	baseURL string
	opts    Options
}

// NewIngestionClient creates a client for the ingestion backend.
func NewIngestionClient(baseURL string, opts Options) *IngestionClient {
	return &IngestionClient{
		baseURL: baseURL,
		opts:    opts.withDefaults(domain.ServiceIngestion),
	}
}

// IngestPatient forwards the record to POST /ingest/patient. The response
// body is ignorable; only the status matters.
func (c *IngestionClient) IngestPatient(ctx context.Context, record domain.PatientRecord) error {
	url := fmt.Sprintf("%s/ingest/patient", c.baseURL)
	return call(ctx, domain.ServiceIngestion, c.opts, func() error {
		return doJSON(ctx, c.opts.HTTPClient, domain.ServiceIngestion, http.MethodPost, url, record, nil)
	})
}
