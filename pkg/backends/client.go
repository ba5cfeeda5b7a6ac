// Package backends provides HTTP clients for the three pipeline backends:
// ingestion, prediction and the patient store. All clients share one pooled
// transport, pace their calls through a rate limiter and route them through
// a per-backend circuit breaker.
package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/registry"
)

// NewHTTPClient returns an HTTP client with a tuned connection pool. The
// pool is the only resource shared across concurrent pipeline units and is
// safe for concurrent use without external locking. A zero timeout leaves
// call deadlines entirely to request contexts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Options carries the shared collaborators for a backend client. Zero-value
// fields are filled with defaults: a fresh pooled client, an unlimited rate
// limiter and a breaker named after the backend.
type Options struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Breaker    *gobreaker.CircuitBreaker
	Logger     *logrus.Logger
}

func (o Options) withDefaults(service string) Options {
	if o.HTTPClient == nil {
		o.HTTPClient = NewHTTPClient(0)
	}
	if o.Limiter == nil {
		o.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	if o.Breaker == nil {
		o.Breaker = NewBreaker(service, o.Logger)
	}
	return o
}

// LimiterFromConfig builds a rate limiter from pipeline configuration. A
// zero rate disables pacing.
func LimiterFromConfig(cfg domain.PipelineConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

// Set bundles the three pipeline backend clients sharing one pooled
// transport and one rate limiter.
type Set struct {
	Ingestion    *IngestionClient
	Prediction   *PredictionClient
	PatientStore *PatientStoreClient
}

// NewSet resolves the three backends from the registry and builds their
// clients. A registry miss here is a deployment error and aborts startup.
func NewSet(reg *registry.Registry, cfg domain.PipelineConfig, logger *logrus.Logger) (*Set, error) {
	ingestURL, err := reg.Resolve(domain.ServiceIngestion)
	if err != nil {
		return nil, err
	}
	predictURL, err := reg.Resolve(domain.ServicePrediction)
	if err != nil {
		return nil, err
	}
	storeURL, err := reg.Resolve(domain.ServicePatientStore)
	if err != nil {
		return nil, err
	}

	httpClient := NewHTTPClient(0)
	limiter := LimiterFromConfig(cfg)

	shared := Options{HTTPClient: httpClient, Limiter: limiter, Logger: logger}
	return &Set{
		Ingestion:    NewIngestionClient(ingestURL, shared),
		Prediction:   NewPredictionClient(predictURL, shared),
		PatientStore: NewPatientStoreClient(storeURL, shared),
	}, nil
}

// call paces, breaks and classifies one backend request. fn runs the actual
// HTTP exchange and returns an already classified error.
func call(ctx context.Context, service string, opts Options, fn func() error) error {
	if err := opts.Limiter.Wait(ctx); err != nil {
		return domain.NewTransportError(service, err)
	}
	_, err := opts.Breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewTransportError(service, err)
	}
	return err
}

// doJSON performs one JSON request/response exchange and maps failures onto
// the error taxonomy: transport for request failures, protocol for non-2xx
// statuses, validation for undecodable bodies.
func doJSON(ctx context.Context, hc *http.Client, service, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.NewValidationError(service, "request body not serializable")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return domain.NewTransportError(service, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return domain.NewTransportError(service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.NewProtocolError(service, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewValidationError(service, "malformed response body")
	}
	return nil
}
