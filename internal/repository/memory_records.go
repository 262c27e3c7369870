package repository

import (
	"context"
	"sort"
	"sync"

	"energo-data/internal/domain"
)

// MemoryRecordsRepo supports records storage when DB is disabled.
type MemoryRecordsRepo struct {
	mu      sync.RWMutex
	records map[int64]domain.ConsumptionRecord
}

func NewMemoryRecordsRepo() *MemoryRecordsRepo {
	return &MemoryRecordsRepo{records: map[int64]domain.ConsumptionRecord{}}
}

var _ RecordsRepository = (*MemoryRecordsRepo)(nil)

func (r *MemoryRecordsRepo) ListRecords(_ context.Context) ([]domain.ConsumptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(domain.ConsumptionRecord) bool { return true }), nil
}

func (r *MemoryRecordsRepo) GetRecord(_ context.Context, accountID int64) (*domain.ConsumptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRecordsRepo) GetRecords(_ context.Context, accountIDs []int64) ([]domain.ConsumptionRecord, error) {
	want := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		want[id] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(rec domain.ConsumptionRecord) bool { return want[rec.AccountID] }), nil
}

func (r *MemoryRecordsRepo) ListUnclassified(_ context.Context) ([]domain.ConsumptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(domain.ConsumptionRecord.NeedsClassification), nil
}

func (r *MemoryRecordsRepo) UpsertRecords(_ context.Context, records []domain.ConsumptionRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.records[rec.AccountID] = rec
	}
	return len(records), nil
}

func (r *MemoryRecordsRepo) UpdateClassifications(_ context.Context, updates []domain.Classification) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	affected := 0
	for _, u := range updates {
		rec, ok := r.records[u.AccountID]
		if !ok || rec.IsCommercial != nil || rec.AddressValue() != u.Address {
			continue
		}
		isCommercial := u.IsCommercial
		rec.IsCommercial = &isCommercial
		r.records[u.AccountID] = rec
		affected++
	}
	return affected, nil
}

func (r *MemoryRecordsRepo) sorted(keep func(domain.ConsumptionRecord) bool) []domain.ConsumptionRecord {
	out := make([]domain.ConsumptionRecord, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// MemoryNormsRepo 内存标准表（DB 关闭时从 norms.yaml 初始化）
type MemoryNormsRepo struct {
	mu      sync.RWMutex
	buckets []domain.NormBucket
}

func NewMemoryNormsRepo(seed []domain.NormBucket) *MemoryNormsRepo {
	r := &MemoryNormsRepo{}
	r.buckets = sortedBuckets(seed)
	return r
}

var _ NormsRepository = (*MemoryNormsRepo)(nil)

func (r *MemoryNormsRepo) ListNormBuckets(_ context.Context) ([]domain.NormBucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.NormBucket, len(r.buckets))
	copy(out, r.buckets)
	return out, nil
}

func (r *MemoryNormsRepo) ReplaceNormBuckets(_ context.Context, buckets []domain.NormBucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = sortedBuckets(buckets)
	return nil
}

func sortedBuckets(in []domain.NormBucket) []domain.NormBucket {
	out := make([]domain.NormBucket, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoomsCount != out[j].RoomsCount {
			return out[i].RoomsCount < out[j].RoomsCount
		}
		return out[i].ResidentsCount < out[j].ResidentsCount
	})
	return out
}
