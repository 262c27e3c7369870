package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energo-data/internal/app"
	applog "energo-data/internal/common/logger"
	"energo-data/internal/config"
	httpapi "energo-data/internal/http"
	"energo-data/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.New(applog.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "energo-data",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	router := httpapi.NewRouter(logger)
	analysisHandler := httpapi.NewAnalysisHandler(deps.Analysis, httpapi.AnalysisDefaults{
		PageSize:              cfg.Analysis.PageSize,
		MinDeviation:          cfg.Analysis.MinDeviation,
		HighConsumerThreshold: cfg.Analysis.HighConsumerThreshold,
	}, logger)
	router.RegisterRecordsRoutes(httpapi.NewRecordsHandler(deps.Analysis, logger))
	router.RegisterIngestRoutes(httpapi.NewIngestHandler(deps.Ingest, cfg.HTTP.MaxUploadBytes, logger))
	router.RegisterAnalysisRoutes(analysisHandler)
	router.RegisterExportRoutes(httpapi.NewExportHandler(deps.Analysis, analysisHandler, logger))
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(deps.HealthChecks()))

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
