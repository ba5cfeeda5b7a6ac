package health

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/registry"
)

func TestMonitor_LatestAfterStart(t *testing.T) {
	up := healthServer(t, http.StatusOK, 0)
	reg, err := registry.New(map[string]string{"up": up.URL})
	require.NoError(t, err)

	probe := NewProbe(reg, time.Second, quietLogger())
	monitor := NewMonitor(probe, []string{"up"}, domain.HealthConfig{
		PollInterval: time.Hour, // only the initial sweep matters here
	}, quietLogger())

	require.Nil(t, monitor.Latest())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	latest := monitor.Latest()
	require.NotNil(t, latest)
	assert.True(t, latest.AllHealthy())
	assert.Len(t, monitor.History(), 1)
}

func TestMonitor_NotifiesOnUnhealthySweep(t *testing.T) {
	down := healthServer(t, http.StatusServiceUnavailable, 0)
	reg, err := registry.New(map[string]string{"down": down.URL})
	require.NoError(t, err)

	probe := NewProbe(reg, time.Second, quietLogger())
	monitor := NewMonitor(probe, []string{"down"}, domain.HealthConfig{
		PollInterval: time.Hour,
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	select {
	case snapshot := <-monitor.Notify():
		assert.Equal(t, []string{"down"}, snapshot.Unhealthy())
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification for the unhealthy sweep")
	}
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	up := healthServer(t, http.StatusOK, 0)
	reg, err := registry.New(map[string]string{"up": up.URL})
	require.NoError(t, err)

	probe := NewProbe(reg, time.Second, quietLogger())
	monitor := NewMonitor(probe, []string{"up"}, domain.HealthConfig{
		PollInterval: 10 * time.Millisecond,
	}, quietLogger())

	monitor.Start(context.Background())
	monitor.Stop()
	monitor.Stop()
}
