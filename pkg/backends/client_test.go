package backends

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/registry"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testOptions() Options {
	return Options{Logger: quietLogger()}
}

func testRecord() domain.PatientRecord {
	return domain.PatientRecord{
		ID:          "PAT-001",
		GenomicData: map[string]interface{}{"gene_variants": map[string]interface{}{"BRCA1": "c.68_69delAG"}},
		MedicalHistory: map[string][]string{
			"conditions": {"hypertension"},
		},
	}
}

func TestIngestionClient_IngestPatient(t *testing.T) {
	var got domain.PatientRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ingest/patient", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewIngestionClient(srv.URL, testOptions())
	err := client.IngestPatient(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "PAT-001", got.ID)
}

func TestIngestionClient_ProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewIngestionClient(srv.URL, testOptions())
	err := client.IngestPatient(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeProtocol, domain.ErrorCode(err))
}

func TestIngestionClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewIngestionClient(srv.URL, testOptions())
	err := client.IngestPatient(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeTransport, domain.ErrorCode(err))
}

func TestPredictionClient_PredictTreatment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "genomic_data")
		assert.Contains(t, req, "medical_history")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"recommended_treatment": "PARP inhibitor therapy",
			"efficacy":              0.87,
			"confidence_level":      "high",
		})
	}))
	defer srv.Close()

	client := NewPredictionClient(srv.URL, testOptions())
	rec, err := client.PredictTreatment(context.Background(),
		map[string]interface{}{"gene_variants": map[string]interface{}{}},
		map[string][]string{"conditions": {}})
	require.NoError(t, err)
	assert.Equal(t, "PARP inhibitor therapy", rec.RecommendedTreatment)
	assert.Equal(t, 0.87, rec.Efficacy)
	assert.Equal(t, domain.ConfidenceHigh, rec.ConfidenceLevel)
}

func TestPredictionClient_RejectsMalformedRecommendation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing treatment",
			body: map[string]interface{}{"efficacy": 0.5, "confidence_level": "low"},
		},
		{
			name: "efficacy above one",
			body: map[string]interface{}{"recommended_treatment": "x", "efficacy": 1.2, "confidence_level": "low"},
		},
		{
			name: "unknown confidence band",
			body: map[string]interface{}{"recommended_treatment": "x", "efficacy": 0.5, "confidence_level": "certain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			client := NewPredictionClient(srv.URL, testOptions())
			rec, err := client.PredictTreatment(context.Background(), nil, nil)
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
		})
	}
}

func TestPatientStoreClient_GetPatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patients/PAT-007", r.URL.Path)
		json.NewEncoder(w).Encode(domain.PatientRecord{
			ID:          "PAT-007",
			GenomicData: map[string]interface{}{"gene_variants": map[string]interface{}{}},
		})
	}))
	defer srv.Close()

	client := NewPatientStoreClient(srv.URL, testOptions())
	record, err := client.GetPatient(context.Background(), "PAT-007")
	require.NoError(t, err)
	assert.Equal(t, "PAT-007", record.ID)
}

func TestPatientStoreClient_GetPatientMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"genomic_data": map[string]interface{}{}})
	}))
	defer srv.Close()

	client := NewPatientStoreClient(srv.URL, testOptions())
	record, err := client.GetPatient(context.Background(), "PAT-007")
	require.Error(t, err)
	assert.Nil(t, record)
	assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
}

func TestPatientStoreClient_AttachTreatment(t *testing.T) {
	var got attachTreatmentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/patients/PAT-007/treatments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewPatientStoreClient(srv.URL, testOptions())
	err := client.AttachTreatment(context.Background(), "PAT-007", "tamoxifen")
	require.NoError(t, err)
	assert.Equal(t, "tamoxifen", got.Treatment)
}

func TestBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewIngestionClient(srv.URL, testOptions())
	for i := 0; i < 5; i++ {
		err := client.IngestPatient(context.Background(), testRecord())
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeProtocol, domain.ErrorCode(err))
	}

	// Five straight failures trip the breaker; the next call is rejected
	// locally and surfaces as a transport error without touching the wire.
	err := client.IngestPatient(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeTransport, domain.ErrorCode(err))
}

func TestLimiterFromConfig(t *testing.T) {
	unlimited := LimiterFromConfig(domain.PipelineConfig{})
	assert.Equal(t, rate.Inf, unlimited.Limit())

	paced := LimiterFromConfig(domain.PipelineConfig{RateLimit: 25, RateBurst: 5})
	assert.Equal(t, rate.Limit(25), paced.Limit())
	assert.Equal(t, 5, paced.Burst())

	defaultBurst := LimiterFromConfig(domain.PipelineConfig{RateLimit: 10})
	assert.Equal(t, 1, defaultBurst.Burst())
}

func TestNewSet_ResolvesAllBackends(t *testing.T) {
	reg, err := registry.New(map[string]string{
		domain.ServiceIngestion:    "http://localhost:8084",
		domain.ServicePrediction:   "http://localhost:8083",
		domain.ServicePatientStore: "http://localhost:8080",
	})
	require.NoError(t, err)

	set, err := NewSet(reg, domain.PipelineConfig{}, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, set.Ingestion)
	require.NotNil(t, set.Prediction)
	require.NotNil(t, set.PatientStore)
}

func TestNewSet_MissingBackendFails(t *testing.T) {
	reg, err := registry.New(map[string]string{
		domain.ServiceIngestion: "http://localhost:8084",
	})
	require.NoError(t, err)

	set, err := NewSet(reg, domain.PipelineConfig{}, quietLogger())
	require.Error(t, err)
	assert.Nil(t, set)
	assert.Equal(t, domain.ErrCodeUnknownService, domain.ErrorCode(err))
}
