package service

import (
	"context"
	"fmt"
	"time"

	rediscommon "energo-data/internal/common/redis"

	"github.com/go-redis/redis/v8"
)

// IngestJob 异步导入任务（Redis Stream 消息 data 字段）
type IngestJob struct {
	JobID      string    `json:"job_id"`
	Format     string    `json:"format"`
	Source     string    `json:"source,omitempty"`
	Payload    []byte    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobQueue 异步导入任务队列
type JobQueue interface {
	Enqueue(ctx context.Context, job IngestJob) (string, error)
}

// StreamJobQueue 基于 Redis Streams 的任务队列
type StreamJobQueue struct {
	client *redis.Client
	stream string
}

// NewStreamJobQueue 创建任务队列
func NewStreamJobQueue(client *redis.Client, stream string) *StreamJobQueue {
	return &StreamJobQueue{client: client, stream: stream}
}

var _ JobQueue = (*StreamJobQueue)(nil)

// Enqueue 返回 Stream 消息 ID
func (q *StreamJobQueue) Enqueue(ctx context.Context, job IngestJob) (string, error) {
	id, err := rediscommon.PublishJSONToStream(ctx, q.client, q.stream, job)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue ingest job: %w", err)
	}
	return id, nil
}
