package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"energo-data/internal/classifier"
	"energo-data/internal/common/database"
	mqttcommon "energo-data/internal/common/mqtt"
	rediscommon "energo-data/internal/common/redis"
	"energo-data/internal/config"
	"energo-data/internal/domain"
	httpapi "energo-data/internal/http"
	"energo-data/internal/notify"
	"energo-data/internal/ratelimit"
	"energo-data/internal/repository"
	"energo-data/internal/service"
	"energo-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Deps energo-data 与 energo-ingest 共用的依赖
type Deps struct {
	DB          *sql.DB       // nil = 内存仓库
	Redis       *redis.Client // nil = 无缓存、无异步队列
	MQTT        *mqttcommon.Client
	RecordsRepo repository.RecordsRepository
	NormsRepo   repository.NormsRepository
	Classifier  *classifier.Classifier
	Ingest      service.IngestService
	Analysis    service.AnalysisService

	logger *zap.Logger
}

// Build 按配置装配依赖；Postgres、Redis、MQTT 连接失败时降级而不是退出
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	d := &Deps{logger: logger}

	// 1. 存储
	if cfg.DBEnabled {
		if db, err := database.NewPostgresDB(&cfg.Database); err == nil {
			if err := repository.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
			d.DB = db
			logger.Info("DB enabled for energo-data")
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory repositories", zap.Error(err))
		}
	}
	if d.DB != nil {
		d.RecordsRepo = repository.NewPostgresRecordsRepository(d.DB)
		d.NormsRepo = repository.NewPostgresNormsRepository(d.DB)
		if err := seedNormsIfEmpty(ctx, d.NormsRepo, cfg.Norms.SeedFile, logger); err != nil {
			logger.Warn("Failed to seed norm table", zap.Error(err))
		}
	} else {
		seed, err := loadSeed(cfg.Norms.SeedFile)
		if err != nil {
			logger.Warn("Failed to load norm seed file", zap.String("path", cfg.Norms.SeedFile), zap.Error(err))
		}
		d.RecordsRepo = repository.NewMemoryRecordsRepo()
		d.NormsRepo = repository.NewMemoryNormsRepo(seed)
	}

	// 2. Redis（分类缓存、异步任务队列）
	if cfg.Redis.Enabled {
		client := rediscommon.NewRedisClient(&cfg.Redis.RedisConfig)
		if err := rediscommon.Ping(ctx, client); err == nil {
			d.Redis = client
		} else {
			logger.Warn("Redis unavailable, classification cache and async ingestion disabled", zap.Error(err))
			_ = client.Close()
		}
	}

	// 3. 分类器
	if cfg.Classifier.Enabled {
		cls, err := d.buildClassifier(cfg.Classifier)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Classifier = cls
	}

	// 4. MQTT 通知
	var notifier notify.Notifier = notify.Nop{}
	if cfg.MQTT.Enabled {
		client, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err == nil {
			d.MQTT = client
			notifier = notify.NewMQTTNotifier(client, cfg.MQTT.Topic, cfg.MQTT.QoS, logger)
		} else {
			logger.Warn("MQTT unavailable, ingest notifications disabled", zap.Error(err))
		}
	}

	var queue service.JobQueue
	if d.Redis != nil && cfg.Ingest.AsyncEnabled {
		queue = service.NewStreamJobQueue(d.Redis, cfg.Ingest.Stream)
	}

	d.Ingest = service.NewIngestService(d.RecordsRepo, d.Classifier, notifier, queue, logger)
	d.Analysis = service.NewAnalysisService(d.RecordsRepo, d.NormsRepo, cfg.Norms.Strict, logger)
	return d, nil
}

func (d *Deps) buildClassifier(cfg config.ClassifierConfig) (*classifier.Classifier, error) {
	limiter, err := ratelimit.FromConfig(cfg.RateMode, cfg.Interval, cfg.RPS, cfg.Burst)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier rate limit: %w", err)
	}
	lookup := classifier.NewTwoGISClient(classifier.TwoGISConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		RetryCount: cfg.RetryCount,
	}, d.logger)

	// 未启用缓存时传 nil 接口
	var cache classifier.Cache
	if d.Redis != nil && cfg.CacheTTL > 0 {
		cache = classifier.NewKVCache(store.NewRedisKV(d.Redis), cfg.CacheTTL)
	}
	return classifier.NewClassifier(lookup, nil, limiter, cache, d.logger), nil
}

// HealthChecks Postgres / Redis 探活
func (d *Deps) HealthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if d.DB != nil {
		checks["postgres"] = d.DB.PingContext
	}
	if d.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return rediscommon.Ping(ctx, d.Redis) }
	}
	return checks
}

// Close 释放连接
func (d *Deps) Close() {
	if d.MQTT != nil {
		d.MQTT.Disconnect()
	}
	if d.Redis != nil {
		_ = rediscommon.Close(d.Redis)
	}
	if d.DB != nil {
		_ = database.Close(d.DB)
	}
}

func loadSeed(path string) ([]domain.NormBucket, error) {
	if path == "" {
		return nil, nil
	}
	buckets, err := repository.LoadNormsYAML(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return buckets, err
}

// seedNormsIfEmpty 数据库标准表为空时写入种子文件
func seedNormsIfEmpty(ctx context.Context, repo repository.NormsRepository, path string, logger *zap.Logger) error {
	existing, err := repo.ListNormBuckets(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	seed, err := loadSeed(path)
	if err != nil || len(seed) == 0 {
		return err
	}
	if err := repo.ReplaceNormBuckets(ctx, seed); err != nil {
		return err
	}
	logger.Info("Norm table seeded", zap.String("path", path), zap.Int("buckets", len(seed)))
	return nil
}
