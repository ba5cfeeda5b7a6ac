package orchestrator

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/pkg/backends"
)

// stubBackends stands in for the three pipeline services. Each endpoint
// counts its calls and can be told to fail, so tests can assert both
// short-circuit behavior and per-stage attribution.
type stubBackends struct {
	ingest  *httptest.Server
	predict *httptest.Server
	store   *httptest.Server

	ingestCalls  int64
	predictCalls int64
	persistCalls int64
	fetchCalls   int64

	// Per-unit overrides; nil means "succeed". The predict request body
	// carries no patient id, so prediction overrides key off the genomic
	// data instead.
	ingestStatus  func(patientID string) int
	prediction    func(genomic map[string]interface{}) interface{}
	persistStatus func(patientID string) int
	fetchStatus   func(patientID string) int
}

func newStubBackends(t *testing.T) *stubBackends {
	t.Helper()
	s := &stubBackends{}

	s.ingest = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.ingestCalls, 1)
		var record domain.PatientRecord
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &record)
		if s.ingestStatus != nil {
			if code := s.ingestStatus(record.ID); code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.ingest.Close)

	s.predict = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.predictCalls, 1)
		var req struct {
			GenomicData map[string]interface{} `json:"genomic_data"`
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		resp := interface{}(domain.TreatmentRecommendation{
			RecommendedTreatment: "Targeted Therapy",
			Efficacy:             0.82,
			ConfidenceLevel:      domain.ConfidenceHigh,
		})
		if s.prediction != nil {
			resp = s.prediction(req.GenomicData)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(s.predict.Close)

	s.store = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		patientID := patientIDFromPath(r.URL.Path)
		if r.Method == http.MethodGet {
			atomic.AddInt64(&s.fetchCalls, 1)
			if s.fetchStatus != nil {
				if code := s.fetchStatus(patientID); code != http.StatusOK {
					w.WriteHeader(code)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(domain.PatientRecord{
				ID:          patientID,
				GenomicData: map[string]interface{}{"BRCA1": "variant1"},
				MedicalHistory: map[string][]string{
					"conditions": {"Breast Cancer"},
				},
			})
			return
		}
		atomic.AddInt64(&s.persistCalls, 1)
		io.Copy(io.Discard, r.Body)
		if s.persistStatus != nil {
			if code := s.persistStatus(patientID); code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.store.Close)

	return s
}

// patientIDFromPath pulls the id out of /patients/{id} and
// /patients/{id}/treatments.
func patientIDFromPath(path string) string {
	const prefix = "/patients/"
	rest := path[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}

func (s *stubBackends) executor(t *testing.T) *WorkflowExecutor {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := backends.Options{Logger: logger}
	ingestor := backends.NewIngestionClient(s.ingest.URL, opts)
	predictor := backends.NewPredictionClient(s.predict.URL, opts)
	store := backends.NewPatientStoreClient(s.store.URL, opts)

	return NewWorkflowExecutor(ingestor, predictor, store, 0, logger)
}

func (s *stubBackends) storeClient(t *testing.T) *backends.PatientStoreClient {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return backends.NewPatientStoreClient(s.store.URL, backends.Options{Logger: logger})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func record(id string) domain.PatientRecord {
	return domain.PatientRecord{
		ID:          id,
		GenomicData: map[string]interface{}{"TP53": "variant2"},
		MedicalHistory: map[string][]string{
			"conditions": {"Lung Cancer"},
		},
	}
}
