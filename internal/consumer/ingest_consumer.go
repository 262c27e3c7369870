package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscommon "energo-data/internal/common/redis"
	"energo-data/internal/domain"
	"energo-data/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// IngestConsumerConfig 异步导入消费者配置
type IngestConsumerConfig struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	Block         time.Duration
}

// IngestConsumer 消费 Redis Stream 中的上传任务，复用同步导入流程
type IngestConsumer struct {
	config        IngestConsumerConfig
	redisClient   *redis.Client
	ingestService service.IngestService
	logger        *zap.Logger
}

// NewIngestConsumer 创建导入任务消费者
func NewIngestConsumer(
	cfg IngestConsumerConfig,
	redisClient *redis.Client,
	ingestService service.IngestService,
	logger *zap.Logger,
) *IngestConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &IngestConsumer{
		config:        cfg,
		redisClient:   redisClient,
		ingestService: ingestService,
		logger:        logger,
	}
}

// Start 启动消费者，阻塞直到 ctx 取消
func (c *IngestConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", c.config.Stream, err)
	}

	c.logger.Info("Ingest consumer started",
		zap.String("stream", c.config.Stream),
		zap.String("consumer_group", c.config.ConsumerGroup),
		zap.String("consumer_name", c.config.ConsumerName),
	)

	// 先处理上次退出前未 Ack 的任务
	if _, err := c.recoverPending(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error("Failed to recover pending ingest jobs", zap.Error(err))
	}

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if _, err := c.consumeOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Failed to consume ingest jobs",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeOnce 读取一批新任务并处理，返回已 Ack 的条数
func (c *IngestConsumer) consumeOnce(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Stream,
		c.config.ConsumerGroup,
		c.config.ConsumerName,
		c.config.BatchSize,
		c.config.Block,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream %s: %w", c.config.Stream, err)
	}
	return c.handleMessages(ctx, messages), nil
}

// recoverPending 逐批重读本消费者的 pending 列表直到读空；处理失败的消息仍保留在 pending 中
func (c *IngestConsumer) recoverPending(ctx context.Context) (int, error) {
	acked := 0
	after := "0"
	for {
		if err := ctx.Err(); err != nil {
			return acked, err
		}
		messages, err := rediscommon.ReadPendingFromStream(
			ctx,
			c.redisClient,
			c.config.Stream,
			c.config.ConsumerGroup,
			c.config.ConsumerName,
			after,
			c.config.BatchSize,
		)
		if err != nil {
			return acked, fmt.Errorf("failed to read pending from stream %s: %w", c.config.Stream, err)
		}
		if len(messages) == 0 {
			return acked, nil
		}
		c.logger.Info("Recovering pending ingest jobs", zap.Int("count", len(messages)))
		acked += c.handleMessages(ctx, messages)
		after = messages[len(messages)-1].ID
	}
}

func (c *IngestConsumer) handleMessages(ctx context.Context, messages []rediscommon.StreamMessage) int {
	acked := 0
	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			// 未 Ack，留在 pending 列表等待重试
			c.logger.Error("Failed to process ingest job",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if err := rediscommon.Ack(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup, msg.ID); err != nil {
			c.logger.Error("Failed to ack ingest job", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		acked++
	}
	return acked
}

// processMessage 处理单个任务；无法解析或校验失败的任务视为已完成（重试不会成功）
func (c *IngestConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	var job service.IngestJob
	if err := rediscommon.DecodeJSONMessage(msg, &job); err != nil {
		c.logger.Warn("Dropping malformed ingest job", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	resp, err := c.ingestService.Ingest(ctx, service.IngestRequest{
		Payload: job.Payload,
		Format:  job.Format,
		Source:  job.Source,
		BatchID: job.JobID,
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			c.logger.Warn("Dropping invalid ingest job",
				zap.String("job_id", job.JobID),
				zap.Strings("reasons", ve.Reasons),
			)
			return nil
		}
		return fmt.Errorf("ingest job %s: %w", job.JobID, err)
	}

	c.logger.Info("Ingest job processed",
		zap.String("job_id", job.JobID),
		zap.String("message_id", msg.ID),
		zap.Int("records_affected", resp.RecordsAffected),
		zap.Duration("queued_for", time.Since(job.EnqueuedAt)),
	)
	return nil
}
