package analysis

import (
	"fmt"
	"sort"

	"energo-data/internal/domain"
)

// NormTable (rooms, residents) -> 用电标准，只读，可并发查询
type NormTable struct {
	buckets map[domain.NormKey]domain.NormBucket
	ordered []domain.NormBucket
}

// NewNormTable 严格加载：负数计数、负数月值、重复键都会返回 *domain.NormTableError
func NewNormTable(buckets []domain.NormBucket) (*NormTable, error) {
	t, dup, invalid := buildNormTable(buckets)
	if len(dup) > 0 || len(invalid) > 0 {
		return nil, &domain.NormTableError{Duplicates: dup, Invalid: invalid}
	}
	return t, nil
}

// NewNormTableLenient 宽松加载：重复键保留第一条，非法项跳过；问题通过 error 报告，表仍可用
func NewNormTableLenient(buckets []domain.NormBucket) (*NormTable, error) {
	t, dup, invalid := buildNormTable(buckets)
	if len(dup) > 0 || len(invalid) > 0 {
		return t, &domain.NormTableError{Duplicates: dup, Invalid: invalid}
	}
	return t, nil
}

func buildNormTable(buckets []domain.NormBucket) (*NormTable, []domain.NormKey, []string) {
	t := &NormTable{buckets: make(map[domain.NormKey]domain.NormBucket, len(buckets))}
	var dup []domain.NormKey
	var invalid []string

	for i, b := range buckets {
		if b.RoomsCount < 0 || b.ResidentsCount < 0 {
			invalid = append(invalid, fmt.Sprintf("norm bucket %d: negative rooms/residents (%d, %d)", i, b.RoomsCount, b.ResidentsCount))
			continue
		}
		if m := negativeMonth(b.Consumption); m > 0 {
			invalid = append(invalid, fmt.Sprintf("norm bucket %d: negative consumption in month %d", i, m))
			continue
		}
		if _, exists := t.buckets[b.Key()]; exists {
			dup = append(dup, b.Key())
			continue
		}
		t.buckets[b.Key()] = b
		t.ordered = append(t.ordered, b)
	}

	sort.SliceStable(t.ordered, func(i, j int) bool {
		if t.ordered[i].RoomsCount != t.ordered[j].RoomsCount {
			return t.ordered[i].RoomsCount < t.ordered[j].RoomsCount
		}
		return t.ordered[i].ResidentsCount < t.ordered[j].ResidentsCount
	})
	return t, dup, invalid
}

func negativeMonth(m domain.MonthlyConsumption) int {
	for i, v := range m {
		if v < 0 {
			return i + 1
		}
	}
	return 0
}

// Lookup 精确匹配房间数与居住人数
func (t *NormTable) Lookup(rooms, residents int) (domain.NormBucket, bool) {
	if t == nil {
		return domain.NormBucket{}, false
	}
	b, ok := t.buckets[domain.NormKey{Rooms: rooms, Residents: residents}]
	return b, ok
}

// ForRecord 记录对应的标准；rooms 或 residents 为空时不匹配
func (t *NormTable) ForRecord(rec domain.ConsumptionRecord) (domain.NormBucket, bool) {
	key, ok := rec.NormKey()
	if !ok {
		return domain.NormBucket{}, false
	}
	return t.Lookup(key.Rooms, key.Residents)
}

// Buckets 按 (rooms, residents) 升序返回全部标准
func (t *NormTable) Buckets() []domain.NormBucket {
	if t == nil {
		return nil
	}
	out := make([]domain.NormBucket, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Len 标准条数
func (t *NormTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ordered)
}
