package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a configuration manager, reading the optional config
// file and GENOMICS_* environment overrides on top of the defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/genomic-pipeline-orchestrator/")

	viper.SetEnvPrefix("GENOMICS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars carry a bare deployment.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values. Backend addresses default
// to localhost development ports and are expected to be overridden per
// deployment.
func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("services.ingestion", "http://localhost:8084")
	viper.SetDefault("services.prediction", "http://localhost:8083")
	viper.SetDefault("services.patient_store", "http://localhost:8080")

	viper.SetDefault("health.probe_timeout", "2s")
	viper.SetDefault("health.poll_interval", "30s")
	viper.SetDefault("health.startup_max_wait", "60s")
	viper.SetDefault("health.history_size", 120)
	viper.SetDefault("health.history_ttl", "1h")

	viper.SetDefault("pipeline.stage_timeout", "10s")
	viper.SetDefault("pipeline.max_concurrency", 16)
	viper.SetDefault("pipeline.rate_limit", 50)
	viper.SetDefault("pipeline.rate_burst", 10)

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_delay", "1s")
	viper.SetDefault("retry.max_delay", "30s")
	viper.SetDefault("retry.multiplier", 2.0)

	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.path", "data/reports.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns the control-plane server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetServicesConfig returns the backend endpoint configuration.
func (m *Manager) GetServicesConfig() *domain.ServicesConfig {
	return &m.config.Services
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	for name, addr := range config.Services.Endpoints() {
		if addr == "" {
			return fmt.Errorf("service %q base address is required", name)
		}
	}

	if config.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health probe timeout must be positive")
	}
	if config.Pipeline.StageTimeout <= 0 {
		return fmt.Errorf("pipeline stage timeout must be positive")
	}
	if config.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("pipeline max concurrency must be positive")
	}
	if config.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max retries cannot be negative")
	}
	if config.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
