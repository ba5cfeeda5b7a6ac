package domain

import (
	"time"
)

// Config is the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Services ServicesConfig `mapstructure:"services"`
	Health   HealthConfig   `mapstructure:"health"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the control-plane HTTP server.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ServicesConfig maps logical backend names to base addresses. The actual
// values are a deployment detail and are never hard-coded into the
// orchestrator.
type ServicesConfig struct {
	Ingestion    string `mapstructure:"ingestion"`
	Prediction   string `mapstructure:"prediction"`
	PatientStore string `mapstructure:"patient_store"`
}

// Endpoints returns the configured name -> base address mapping.
func (s ServicesConfig) Endpoints() map[string]string {
	return map[string]string{
		ServiceIngestion:    s.Ingestion,
		ServicePrediction:   s.Prediction,
		ServicePatientStore: s.PatientStore,
	}
}

// HealthConfig configures liveness probing and the steady-state monitor.
type HealthConfig struct {
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	StartupMaxWait time.Duration `mapstructure:"startup_max_wait"`
	HistorySize    int           `mapstructure:"history_size"`
	HistoryTTL     time.Duration `mapstructure:"history_ttl"`
}

// PipelineConfig configures per-stage backend calls and batch fan-out.
type PipelineConfig struct {
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// RetryConfig configures the retry coordinator and the shared backoff
// policy also used for startup health-gating.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// ArchiveConfig configures the local batch-report archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
