// Package orchestrator sequences patient records through the three-stage
// ingest -> predict -> persist pipeline, fans batches out concurrently with
// bulkhead isolation, and re-drives failed units with bounded retries.
package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// BackoffPolicy computes the delay before a numbered attempt. One policy
// instance is shared between startup health-gating and the retry
// coordinator so the wait-and-retry behavior lives in a single place.
type BackoffPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultBackoff returns the standard exponential policy: 1s initial delay
// doubling up to 30s.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// BackoffFromConfig builds a policy from retry configuration, filling
// unset fields with the defaults.
func BackoffFromConfig(cfg domain.RetryConfig) BackoffPolicy {
	p := DefaultBackoff()
	if cfg.InitialDelay > 0 {
		p.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	if cfg.Multiplier >= 1 {
		p.Multiplier = cfg.Multiplier
	}
	return p
}

// Delay returns the delay to wait after the given 1-based attempt number.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Wait sleeps for the attempt's delay or returns early with ctx.Err() when
// the context is cancelled.
func (p BackoffPolicy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
