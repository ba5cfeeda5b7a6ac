// Package api exposes the orchestrator's control plane over HTTP: batch
// submission, retry of failed units, health inspection and report history.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genomic-pipeline-orchestrator/internal/archive"
	"github.com/genomic-pipeline-orchestrator/internal/domain"
	"github.com/genomic-pipeline-orchestrator/internal/health"
	"github.com/genomic-pipeline-orchestrator/internal/middleware"
	"github.com/genomic-pipeline-orchestrator/internal/orchestrator"
)

// Server is the control-plane HTTP server.
type Server struct {
	cfg     domain.ServerConfig
	batch   *orchestrator.BatchCoordinator
	retry   *orchestrator.RetryCoordinator
	monitor *health.Monitor
	archive *archive.SQLiteArchive
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates the control-plane server. archive may be nil when the
// report archive is disabled.
func NewServer(
	cfg domain.Config,
	batch *orchestrator.BatchCoordinator,
	retry *orchestrator.RetryCoordinator,
	monitor *health.Monitor,
	reportArchive *archive.SQLiteArchive,
	logger *logrus.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())

	s := &Server{
		cfg:     cfg.Server,
		batch:   batch,
		retry:   retry,
		monitor: monitor,
		archive: reportArchive,
		logger:  logger,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/batch", s.handleRunBatch)
		v1.POST("/retry", s.handleRetry)
		v1.GET("/services/health", s.handleServicesHealth)
		v1.GET("/services/health/history", s.handleServicesHealthHistory)
		v1.GET("/reports", s.handleListReports)
		v1.GET("/reports/:id", s.handleGetReport)
	}
}

// handleHealth reports the orchestrator's own liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// batchRequest is the POST /api/v1/batch request body.
type batchRequest struct {
	Records []domain.PatientRecord `json:"records" binding:"required"`
}

func (s *Server) handleRunBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	report := s.batch.RunBatch(c.Request.Context(), req.Records)
	s.archiveBatch(c.Request.Context(), &report)
	c.JSON(http.StatusOK, report)
}

// retryRequest is the POST /api/v1/retry request body.
type retryRequest struct {
	BatchID    string              `json:"batch_id"`
	Failures   []domain.UnitResult `json:"failures" binding:"required"`
	MaxRetries int                 `json:"max_retries"`
}

func (s *Server) handleRetry(c *gin.Context) {
	var req retryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = 3
	}

	outcome := s.retry.Retry(c.Request.Context(), req.Failures, req.MaxRetries)
	if s.archive != nil && req.BatchID != "" {
		if err := s.archive.SaveRetryOutcome(c.Request.Context(), req.BatchID, &outcome); err != nil {
			s.logger.WithError(err).Error("Failed to archive retry outcome")
		}
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleServicesHealth(c *gin.Context) {
	snapshot := s.monitor.Latest()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no health snapshot yet"})
		return
	}
	code := http.StatusOK
	if !snapshot.AllHealthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, snapshot)
}

func (s *Server) handleServicesHealthHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"snapshots": s.monitor.History()})
}

func (s *Server) handleListReports(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report archive disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	reports, err := s.archive.ListBatchReports(c.Request.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list batch reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) handleGetReport(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report archive disabled"})
		return
	}
	report, err := s.archive.GetBatchReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch batch report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) archiveBatch(ctx context.Context, report *domain.BatchReport) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveBatchReport(ctx, report); err != nil {
		s.logger.WithError(err).WithField("batch_id", report.BatchID).Error("Failed to archive batch report")
	}
}
