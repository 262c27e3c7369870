package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"energo-data/internal/classifier"
	"energo-data/internal/domain"
	"energo-data/internal/ingest"
	"energo-data/internal/notify"
	"energo-data/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 上传格式
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

var (
	// ErrAsyncDisabled 未配置任务队列
	ErrAsyncDisabled = errors.New("async ingestion is disabled")
	// ErrClassifierDisabled 未配置分类器
	ErrClassifierDisabled = errors.New("classifier is disabled")
)

// DetectFormat 根据文件名与 Content-Type 判断上传格式，默认 JSON
func DetectFormat(filename, contentType string) string {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") ||
		strings.Contains(contentType, "spreadsheetml") {
		return FormatXLSX
	}
	return FormatJSON
}

// IngestService 导入服务接口
type IngestService interface {
	// Ingest 规范化 -> 顺序分类 -> 单事务 upsert -> 通知
	Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error)
	// Enqueue 校验后放入异步队列，由 energo-ingest 消费
	Enqueue(ctx context.Context, req IngestRequest) (*EnqueueResponse, error)
	// BackfillClassification 对已入库但未分类的记录补做分类
	BackfillClassification(ctx context.Context) (*BackfillResponse, error)
	PurgeClassificationCache(ctx context.Context) (int, error)
	ClassifierStats() classifier.Stats
}

// IngestRequest 导入请求
type IngestRequest struct {
	Payload []byte
	Format  string // "json" | "xlsx"
	Source  string // 文件名（可选）
	BatchID string // 可选：异步任务沿用 job_id
}

// IngestResponse 导入结果
type IngestResponse struct {
	BatchID                string   `json:"batchId"`
	Items                  int      `json:"items"`
	RecordsAffected        int      `json:"recordsAffected"`
	Classified             int      `json:"classified"`
	Commercial             int      `json:"commercial"`
	NonCommercial          int      `json:"nonCommercial"`
	ClassificationFailures int      `json:"classificationFailures"`
	Warnings               []string `json:"warnings"`
}

// EnqueueResponse 异步导入受理结果
type EnqueueResponse struct {
	JobID    string `json:"jobId"`
	StreamID string `json:"streamId"`
	Items    int    `json:"items"`
}

// BackfillResponse 补分类结果
type BackfillResponse struct {
	Checked         int `json:"checked"`
	Commercial      int `json:"commercial"`
	NonCommercial   int `json:"nonCommercial"`
	Failures        int `json:"failures"`
	RecordsAffected int `json:"recordsAffected"`
}

type ingestService struct {
	recordsRepo repository.RecordsRepository
	classifier  *classifier.Classifier // 可选
	notifier    notify.Notifier
	queue       JobQueue // 可选
	logger      *zap.Logger
}

// NewIngestService 创建导入服务；classifier、queue 可为 nil，notifier 为 nil 时不通知
func NewIngestService(
	recordsRepo repository.RecordsRepository,
	cls *classifier.Classifier,
	notifier notify.Notifier,
	queue JobQueue,
	logger *zap.Logger,
) IngestService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ingestService{
		recordsRepo: recordsRepo,
		classifier:  cls,
		notifier:    notifier,
		queue:       queue,
		logger:      logger,
	}
}

func (s *ingestService) normalize(req IngestRequest) (*ingest.Batch, error) {
	if len(bytes.TrimSpace(req.Payload)) == 0 {
		return nil, domain.NewValidationError("empty upload")
	}
	if req.Format == FormatXLSX {
		items, err := ingest.ReadXLSX(bytes.NewReader(req.Payload))
		if err != nil {
			return nil, err
		}
		return ingest.NormalizeItems(items)
	}
	return ingest.Normalize(req.Payload)
}

func (s *ingestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	batch, err := s.normalize(req)
	if err != nil {
		s.logger.Warn("Ingest batch rejected", zap.String("batch_id", batchID), zap.Error(err))
		return nil, err
	}
	records := batch.Records()

	var summary classifier.BatchSummary
	if s.classifier != nil {
		summary, err = s.classifier.ClassifyPending(ctx, records, func(done, total int, res classifier.Result) {
			s.logger.Debug("Classification progress",
				zap.String("batch_id", batchID),
				zap.Int("done", done),
				zap.Int("total", total),
			)
		})
		if err != nil {
			s.logger.Warn("Ingest batch cancelled during classification",
				zap.String("batch_id", batchID),
				zap.Int("classified", summary.Checked),
				zap.Error(err),
			)
			return nil, fmt.Errorf("classification aborted: %w", err)
		}
	}

	affected, err := s.recordsRepo.UpsertRecords(ctx, records)
	if err != nil {
		s.logger.Error("Failed to store ingest batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, err
	}

	resp := &IngestResponse{
		BatchID:                batchID,
		Items:                  batch.Len(),
		RecordsAffected:        affected,
		Classified:             summary.Checked,
		Commercial:             summary.Commercial,
		NonCommercial:          summary.NonCommercial,
		ClassificationFailures: summary.Failures,
		Warnings:               batch.Warnings,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}

	s.logger.Info("Ingest batch committed",
		zap.String("batch_id", batchID),
		zap.String("source", req.Source),
		zap.Int("items", resp.Items),
		zap.Int("records_affected", affected),
		zap.Int("classified", summary.Checked),
		zap.Int("warnings", len(resp.Warnings)),
	)

	if err := s.notifier.NotifyIngested(ctx, notify.IngestEvent{
		BatchID:                batchID,
		Source:                 req.Source,
		Items:                  resp.Items,
		RecordsAffected:        affected,
		Classified:             summary.Checked,
		Commercial:             summary.Commercial,
		NonCommercial:          summary.NonCommercial,
		ClassificationFailures: summary.Failures,
		Warnings:               len(resp.Warnings),
		FinishedAt:             time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to publish ingest event", zap.String("batch_id", batchID), zap.Error(err))
	}

	return resp, nil
}

func (s *ingestService) Enqueue(ctx context.Context, req IngestRequest) (*EnqueueResponse, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	// 入队前先校验，非法批次直接拒绝
	batch, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	job := IngestJob{
		JobID:      uuid.NewString(),
		Format:     req.Format,
		Source:     req.Source,
		Payload:    req.Payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if job.Format == "" {
		job.Format = FormatJSON
	}
	streamID, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Ingest job enqueued",
		zap.String("job_id", job.JobID),
		zap.String("stream_id", streamID),
		zap.Int("items", batch.Len()),
	)
	return &EnqueueResponse{JobID: job.JobID, StreamID: streamID, Items: batch.Len()}, nil
}

func (s *ingestService) BackfillClassification(ctx context.Context) (*BackfillResponse, error) {
	if s.classifier == nil {
		return nil, ErrClassifierDisabled
	}
	records, err := s.recordsRepo.ListUnclassified(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.classifier.ClassifyPending(ctx, records, nil)
	if err != nil {
		return nil, fmt.Errorf("classification aborted: %w", err)
	}

	updates := make([]domain.Classification, 0, summary.Checked)
	for _, rec := range records {
		if rec.IsCommercial == nil || rec.AddressValue() == "" {
			continue
		}
		updates = append(updates, domain.Classification{
			AccountID:    rec.AccountID,
			Address:      rec.AddressValue(),
			IsCommercial: *rec.IsCommercial,
		})
	}
	affected, err := s.recordsRepo.UpdateClassifications(ctx, updates)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Classification backfill finished",
		zap.Int("checked", summary.Checked),
		zap.Int("records_affected", affected),
	)
	return &BackfillResponse{
		Checked:         summary.Checked,
		Commercial:      summary.Commercial,
		NonCommercial:   summary.NonCommercial,
		Failures:        summary.Failures,
		RecordsAffected: affected,
	}, nil
}

func (s *ingestService) PurgeClassificationCache(ctx context.Context) (int, error) {
	if s.classifier == nil || s.classifier.Cache() == nil {
		return 0, nil
	}
	n, err := s.classifier.Cache().Purge(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Classification cache purged", zap.Int("keys", n))
	return n, nil
}

func (s *ingestService) ClassifierStats() classifier.Stats {
	if s.classifier == nil {
		return classifier.Stats{}
	}
	return s.classifier.Stats()
}
