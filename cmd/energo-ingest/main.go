package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"energo-data/internal/app"
	applog "energo-data/internal/common/logger"
	"energo-data/internal/config"
	"energo-data/internal/consumer"

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
		Service: "energo-ingest",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting energo-ingest worker",
		zap.String("stream", cfg.Ingest.Stream),
		zap.String("consumer_group", cfg.Ingest.ConsumerGroup),
		zap.String("consumer_name", cfg.Ingest.ConsumerName),
	)

	// 与 energo-data 共用 broker 时避免 client id 冲突
	cfg.MQTT.ClientID += "-ingest"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()
	if deps.Redis == nil {
		logger.Fatal("energo-ingest requires Redis")
	}

	var wg sync.WaitGroup

	ingestConsumer := consumer.NewIngestConsumer(consumer.IngestConsumerConfig{
		Stream:        cfg.Ingest.Stream,
		ConsumerGroup: cfg.Ingest.ConsumerGroup,
		ConsumerName:  cfg.Ingest.ConsumerName,
		BatchSize:     cfg.Ingest.BatchSize,
		Block:         cfg.Ingest.Block,
	}, deps.Redis, deps.Ingest, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingestConsumer.Start(ctx); err != nil {
			logger.Error("Ingest consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	// 可选：MQTT 触发补分类
	if deps.MQTT != nil && deps.Classifier != nil && cfg.MQTT.BackfillTopic != "" {
		trigger := consumer.NewBackfillTrigger(deps.MQTT, cfg.MQTT.BackfillTopic, deps.Ingest, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := trigger.Start(ctx); err != nil {
				logger.Error("Backfill trigger stopped", zap.Error(err))
			}
		}()
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	logger.Info("Worker stopped")
}
