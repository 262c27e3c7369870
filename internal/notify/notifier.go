package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// IngestEvent 导入完成事件（MQTT 负载）
type IngestEvent struct {
	BatchID                string    `json:"batch_id"`
	Source                 string    `json:"source,omitempty"`
	Items                  int       `json:"items"`
	RecordsAffected        int       `json:"records_affected"`
	Classified             int       `json:"classified"`
	Commercial             int       `json:"commercial"`
	NonCommercial          int       `json:"non_commercial"`
	ClassificationFailures int       `json:"classification_failures"`
	Warnings               int       `json:"warnings"`
	FinishedAt             time.Time `json:"finished_at"`
}

// Notifier 导入结果通知
type Notifier interface {
	NotifyIngested(ctx context.Context, event IngestEvent) error
}

// Publisher MQTT 发布（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier 将导入事件发布到 MQTT 主题
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    *zap.Logger
}

// NewMQTTNotifier 创建 MQTT 通知器
func NewMQTTNotifier(publisher Publisher, topic string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{publisher: publisher, topic: topic, qos: qos, logger: logger}
}

var _ Notifier = (*MQTTNotifier)(nil)

func (n *MQTTNotifier) NotifyIngested(ctx context.Context, event IngestEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest event: %w", err)
	}
	if err := n.publisher.Publish(n.topic, n.qos, false, payload); err != nil {
		return err
	}
	n.logger.Debug("Ingest event published",
		zap.String("topic", n.topic),
		zap.String("batch_id", event.BatchID),
	)
	return nil
}

// Nop 不发送任何通知（MQTT 未启用）
type Nop struct{}

func (Nop) NotifyIngested(context.Context, IngestEvent) error { return nil }
