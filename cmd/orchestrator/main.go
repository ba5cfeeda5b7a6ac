package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/genomic-pipeline-orchestrator/internal/api"
	"github.com/genomic-pipeline-orchestrator/internal/archive"
	"github.com/genomic-pipeline-orchestrator/internal/config"
	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/health"
	"github.com/genomic-pipeline-orchestrator/internal/logging"
	"github.com/genomic-pipeline-orchestrator/internal/orchestrator"
	"github.com/genomic-pipeline-orchestrator/internal/registry"
	"github.com/genomic-pipeline-orchestrator/internal/system"
	"github.com/genomic-pipeline-orchestrator/pkg/backends"
)

func main() {
	batchFile := flag.String("batch", "", "process a JSON file of patient records and exit")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging)

	// A registry miss here is a deployment error and aborts startup; runtime
	// failures are captured per unit instead.
	reg, err := registry.FromConfig(cfg.Services)
	if err != nil {
		log.Fatalf("Service registry construction failed: %v", err)
	}

	clients, err := backends.NewSet(reg, cfg.Pipeline, logger)
	if err != nil {
		log.Fatalf("Backend client construction failed: %v", err)
	}

	probe := health.NewProbe(reg, cfg.Health.ProbeTimeout, logger)
	monitor := health.NewMonitor(probe, reg.Names(), cfg.Health, logger)

	executor := orchestrator.NewWorkflowExecutor(
		clients.Ingestion, clients.Prediction, clients.PatientStore,
		cfg.Pipeline.StageTimeout, logger,
	)
	backoff := orchestrator.BackoffFromConfig(cfg.Retry)
	batch := orchestrator.NewBatchCoordinator(executor, cfg.Pipeline.MaxConcurrency, logger)
	retry := orchestrator.NewRetryCoordinator(executor, clients.PatientStore, backoff, logger)

	var reportArchive *archive.SQLiteArchive
	var archivePort domain.ReportArchive
	if cfg.Archive.Enabled {
		reportArchive, err = archive.NewSQLiteArchive(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to open report archive: %v", err)
		}
		defer reportArchive.Close()
		archivePort = reportArchive
	}

	manager := system.NewManager(probe, monitor, batch, retry, archivePort, backoff, *cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if *batchFile != "" {
		runBatchFile(ctx, manager, reg.Names(), *batchFile)
		return
	}

	log.Printf("Starting genomic pipeline orchestrator on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server := api.NewServer(*cfg, batch, retry, monitor, reportArchive, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	if err := manager.Run(ctx, reg.Names()); err != nil {
		logger.WithError(err).Error("System stopped")
		cancel()
		<-serverErr
		os.Exit(1)
	}

	if err := <-serverErr; err != nil {
		log.Fatalf("Control-plane server failed: %v", err)
	}
	log.Println("Orchestrator stopped")
}

// runBatchFile health-gates the backends, runs one batch-plus-retry pass
// over the file and prints the summary to stdout.
func runBatchFile(ctx context.Context, manager *system.Manager, services []string, path string) {
	if err := manager.WaitUntilHealthy(ctx, services); err != nil {
		log.Fatalf("Backends not healthy: %v", err)
	}

	result, err := manager.ProcessBatchFile(ctx, path)
	if err != nil {
		log.Fatalf("Batch processing failed: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("Failed to write batch result: %v", err)
	}

	if result.Report.FailedCount > 0 && (result.Retry == nil || len(result.Retry.FailedFinal) > 0) {
		os.Exit(1)
	}
}
