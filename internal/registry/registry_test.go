package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

func TestNew_ValidatesAddresses(t *testing.T) {
	tests := []struct {
		name      string
		endpoints map[string]string
		wantErr   string
	}{
		{
			name:      "valid http and https",
			endpoints: map[string]string{"a": "http://localhost:8084", "b": "https://predict.internal"},
		},
		{
			name:      "empty address",
			endpoints: map[string]string{"a": ""},
			wantErr:   "no address configured",
		},
		{
			name:      "missing scheme",
			endpoints: map[string]string{"a": "localhost:8084"},
			wantErr:   "scheme must be http or https",
		},
		{
			name:      "unsupported scheme",
			endpoints: map[string]string{"a": "ftp://localhost:8084"},
			wantErr:   "scheme must be http or https",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := New(tt.endpoints)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, reg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, reg)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := New(map[string]string{
		domain.ServiceIngestion: "http://localhost:8084/",
	})
	require.NoError(t, err)

	addr, err := reg.Resolve(domain.ServiceIngestion)
	require.NoError(t, err)
	// Trailing slashes are stripped so callers can append paths directly.
	assert.Equal(t, "http://localhost:8084", addr)
}

func TestRegistry_ResolveUnknownService(t *testing.T) {
	reg, err := New(map[string]string{"known": "http://localhost:8084"})
	require.NoError(t, err)

	_, err = reg.Resolve("mystery")
	require.Error(t, err)

	var unknown *domain.UnknownServiceError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "mystery", unknown.Name)
	assert.Equal(t, domain.ErrCodeUnknownService, domain.ErrorCode(err))
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg, err := New(map[string]string{
		"zeta": "http://localhost:1",
		"alfa": "http://localhost:2",
		"mike": "http://localhost:3",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"alfa", "mike", "zeta"}, reg.Names())
}

func TestFromConfig(t *testing.T) {
	cfg := domain.ServicesConfig{
		Ingestion:    "http://localhost:8084",
		Prediction:   "http://localhost:8083",
		PatientStore: "http://localhost:8080",
	}

	reg, err := FromConfig(cfg)
	require.NoError(t, err)

	for _, name := range domain.KnownServices {
		addr, err := reg.Resolve(name)
		require.NoError(t, err)
		assert.NotEmpty(t, addr)
	}
}
