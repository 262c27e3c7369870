package consumer

import (
	"context"
	"fmt"

	mqttcommon "energo-data/internal/common/mqtt"
	"energo-data/internal/service"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

var _ Subscriber = (*mqttcommon.Client)(nil)

// BackfillTrigger 收到 MQTT 请求后对未分类记录补做分类
type BackfillTrigger struct {
	subscriber    Subscriber
	topic         string
	ingestService service.IngestService
	logger        *zap.Logger

	ctx context.Context
}

// NewBackfillTrigger 创建补分类触发器
func NewBackfillTrigger(subscriber Subscriber, topic string, ingestService service.IngestService, logger *zap.Logger) *BackfillTrigger {
	return &BackfillTrigger{
		subscriber:    subscriber,
		topic:         topic,
		ingestService: ingestService,
		logger:        logger,
		ctx:           context.Background(),
	}
}

// Start 订阅主题，阻塞直到 ctx 取消
func (t *BackfillTrigger) Start(ctx context.Context) error {
	if t.topic == "" {
		return fmt.Errorf("backfill MQTT topic not configured")
	}
	t.ctx = ctx
	if err := t.subscriber.Subscribe(t.topic, 1, t.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to backfill topic: %w", err)
	}
	t.logger.Info("Backfill trigger started", zap.String("topic", t.topic))

	<-ctx.Done()
	if err := t.subscriber.Unsubscribe(t.topic); err != nil {
		t.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	t.logger.Info("Backfill trigger stopped")
	return nil
}

// handleMessage 消息内容不参与处理，到达即触发一次补分类
func (t *BackfillTrigger) handleMessage(topic string, payload []byte) error {
	t.logger.Debug("Received backfill request",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)
	resp, err := t.ingestService.BackfillClassification(t.ctx)
	if err != nil {
		return fmt.Errorf("classification backfill failed: %w", err)
	}
	t.logger.Info("Backfill request handled",
		zap.Int("checked", resp.Checked),
		zap.Int("records_affected", resp.RecordsAffected),
	)
	return nil
}
