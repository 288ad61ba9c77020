package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kosarev-dev/docpipe/internal/bootstrap"
	"github.com/kosarev-dev/docpipe/internal/config"
	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/observability/logging"
	"github.com/kosarev-dev/docpipe/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	pipelineMetrics := metrics.NewPipelineMetrics("worker")
	app.ProcessUC.SetObserver(pipelineMetrics)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: pipelineMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeStageEvents(ctx, func(handlerCtx context.Context, event domain.StageEvent) error {
		// Only the upload event starts a pipeline run; later stage
		// transitions are published for external observers.
		if event.Stage != "upload" {
			return nil
		}
		if !event.OccurredAt.IsZero() {
			pipelineMetrics.ObserveQueueLag(time.Since(event.OccurredAt))
		}

		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		pipelineMetrics.StartDocument()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, event.DocumentID)
		pipelineMetrics.FinishDocument(time.Since(start), processErr)

		if processErr != nil {
			logger.Error("document_processing_failed",
				"document_id", event.DocumentID,
				"error", processErr,
			)
		}
		return processErr
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
