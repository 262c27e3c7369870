package service

import (
	"context"
	"errors"

	"energo-data/internal/analysis"
	"energo-data/internal/domain"
	"energo-data/internal/repository"

	"go.uber.org/zap"
)

// AnalysisService 偏差分析与高耗电筛选服务接口
// 每次请求读取记录与标准的快照，分析本身是纯函数
type AnalysisService interface {
	ListRecords(ctx context.Context, accountIDs []int64) ([]domain.ConsumptionRecord, error)
	GetRecord(ctx context.Context, accountID int64) (*domain.ConsumptionRecord, error)
	CompareAccount(ctx context.Context, accountID int64) (*domain.AccountComparison, error)

	ListNorms(ctx context.Context) ([]domain.NormBucket, error)
	// ReplaceNorms 严格校验（重复键拒绝）后整体替换
	ReplaceNorms(ctx context.Context, buckets []domain.NormBucket) error

	Deviations(ctx context.Context, q analysis.DeviationQuery) (*analysis.Page[domain.DeviationRecord], error)
	// DeviationReport 过滤、排序后的全部结果（导出用，不分页）
	DeviationReport(ctx context.Context, q analysis.DeviationQuery) ([]domain.DeviationRecord, error)
	HighConsumers(ctx context.Context, q analysis.HighConsumerQuery) (*analysis.Page[domain.HighConsumer], error)
	HighConsumerReport(ctx context.Context, q analysis.HighConsumerQuery) ([]domain.HighConsumer, error)
}

type analysisService struct {
	recordsRepo repository.RecordsRepository
	normsRepo   repository.NormsRepository
	strictNorms bool
	logger      *zap.Logger
}

// NewAnalysisService 创建分析服务；strictNorms=false 时重复标准保留第一条并记录告警
func NewAnalysisService(
	recordsRepo repository.RecordsRepository,
	normsRepo repository.NormsRepository,
	strictNorms bool,
	logger *zap.Logger,
) AnalysisService {
	return &analysisService{
		recordsRepo: recordsRepo,
		normsRepo:   normsRepo,
		strictNorms: strictNorms,
		logger:      logger,
	}
}

func (s *analysisService) ListRecords(ctx context.Context, accountIDs []int64) ([]domain.ConsumptionRecord, error) {
	if len(accountIDs) > 0 {
		return s.recordsRepo.GetRecords(ctx, accountIDs)
	}
	return s.recordsRepo.ListRecords(ctx)
}

func (s *analysisService) GetRecord(ctx context.Context, accountID int64) (*domain.ConsumptionRecord, error) {
	return s.recordsRepo.GetRecord(ctx, accountID)
}

func (s *analysisService) CompareAccount(ctx context.Context, accountID int64) (*domain.AccountComparison, error) {
	rec, err := s.recordsRepo.GetRecord(ctx, accountID)
	if err != nil {
		return nil, err
	}
	table, err := s.normTable(ctx)
	if err != nil {
		return nil, err
	}
	cmp := analysis.Compare(*rec, table)
	return &cmp, nil
}

func (s *analysisService) ListNorms(ctx context.Context) ([]domain.NormBucket, error) {
	return s.normsRepo.ListNormBuckets(ctx)
}

func (s *analysisService) ReplaceNorms(ctx context.Context, buckets []domain.NormBucket) error {
	if _, err := analysis.NewNormTable(buckets); err != nil {
		return err
	}
	if err := s.normsRepo.ReplaceNormBuckets(ctx, buckets); err != nil {
		return err
	}
	s.logger.Info("Norm table replaced", zap.Int("buckets", len(buckets)))
	return nil
}

func (s *analysisService) Deviations(ctx context.Context, q analysis.DeviationQuery) (*analysis.Page[domain.DeviationRecord], error) {
	records, table, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	page, err := analysis.QueryDeviations(records, table, q)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return &page, nil
}

func (s *analysisService) DeviationReport(ctx context.Context, q analysis.DeviationQuery) ([]domain.DeviationRecord, error) {
	records, table, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	q.Page, q.Size = 1, len(records)
	page, err := analysis.QueryDeviations(records, table, q)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return page.Items, nil
}

func (s *analysisService) HighConsumers(ctx context.Context, q analysis.HighConsumerQuery) (*analysis.Page[domain.HighConsumer], error) {
	records, err := s.recordsRepo.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	page, err := analysis.QueryHighConsumers(records, q)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return &page, nil
}

func (s *analysisService) HighConsumerReport(ctx context.Context, q analysis.HighConsumerQuery) ([]domain.HighConsumer, error) {
	records, err := s.recordsRepo.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	q.Page, q.Size = 1, len(records)
	page, err := analysis.QueryHighConsumers(records, q)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return page.Items, nil
}

func (s *analysisService) snapshot(ctx context.Context) ([]domain.ConsumptionRecord, *analysis.NormTable, error) {
	records, err := s.recordsRepo.ListRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	table, err := s.normTable(ctx)
	if err != nil {
		return nil, nil, err
	}
	return records, table, nil
}

func (s *analysisService) normTable(ctx context.Context) (*analysis.NormTable, error) {
	buckets, err := s.normsRepo.ListNormBuckets(ctx)
	if err != nil {
		return nil, err
	}
	if s.strictNorms {
		return analysis.NewNormTable(buckets)
	}
	table, err := analysis.NewNormTableLenient(buckets)
	var nte *domain.NormTableError
	if errors.As(err, &nte) {
		s.logger.Warn("Norm table has data quality issues, keeping first bucket per key", zap.Error(err))
		return table, nil
	}
	return table, err
}
