package repository

import (
	"context"
	"errors"

	"energo-data/internal/domain"

	"github.com/lib/pq"
)

// RecordsRepository 用电记录Repository接口
type RecordsRepository interface {
	// ListRecords 全部记录，按 account_id 升序
	ListRecords(ctx context.Context) ([]domain.ConsumptionRecord, error)
	// GetRecord 不存在返回 domain.ErrNotFound
	GetRecord(ctx context.Context, accountID int64) (*domain.ConsumptionRecord, error)
	GetRecords(ctx context.Context, accountIDs []int64) ([]domain.ConsumptionRecord, error)
	// ListUnclassified is_commercial 为空且地址非空的记录
	ListUnclassified(ctx context.Context) ([]domain.ConsumptionRecord, error)
	// UpsertRecords 单事务整体替换同 account_id 的旧记录，返回写入条数
	UpsertRecords(ctx context.Context, records []domain.ConsumptionRecord) (int, error)
	// UpdateClassifications 只更新 is_commercial；记录已分类或地址已变则跳过，返回实际更新条数
	UpdateClassifications(ctx context.Context, updates []domain.Classification) (int, error)
}

// NormsRepository 用电标准Repository接口
type NormsRepository interface {
	// ListNormBuckets 按 rooms, residents 升序
	ListNormBuckets(ctx context.Context) ([]domain.NormBucket, error)
	// ReplaceNormBuckets 单事务替换整张标准表
	ReplaceNormBuckets(ctx context.Context, buckets []domain.NormBucket) error
}

// monthColumns 与 MonthlyConsumption 下标一一对应
var monthColumns = [domain.MonthsPerYear]string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "december",
}

// storageError 包装为 *domain.StorageError，lib/pq 错误带上 SQLSTATE
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	e := &domain.StorageError{Op: op, Err: err}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		e.Code = string(pqErr.Code)
	}
	return e
}
