package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kosarev-dev/docpipe/internal/adapters/http"
	"github.com/kosarev-dev/docpipe/internal/bootstrap"
	"github.com/kosarev-dev/docpipe/internal/config"
	"github.com/kosarev-dev/docpipe/internal/observability/logging"
	"github.com/kosarev-dev/docpipe/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	searchMetrics := metrics.NewSearchMetrics("api")
	app.SearchUC.SetObserver(searchMetrics)

	router := httpadapter.NewRouter(
		app.IngestUC,
		app.SearchUC,
		app.ManageUC,
		metrics.MergedHandler(httpMetrics.Gatherer(), searchMetrics.Gatherer()),
		logger,
		httpadapter.Options{
			MaxUploadBytes: int64(cfg.APIMaxUploadMB) << 20,
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxInFlight:    cfg.APIMaxInFlight,
			QueueTimeout:   time.Duration(cfg.APIQueueTimeoutMillis) * time.Millisecond,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpMetrics.Middleware(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
