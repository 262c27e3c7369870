package analysis

import (
	"fmt"
	"math"

	"energo-data/internal/domain"
)

// 偏差分析默认值
const (
	DefaultMinDeviation = 40
	DefaultDeviationKey = "deviation"
)

// DeviationPercent round(total/normTotal*100 - 100)，半数向正无穷舍入；normTotal <= 0 时为 0
func DeviationPercent(total, normTotal float64) int {
	if normTotal <= 0 {
		return 0
	}
	return int(math.Floor(total/normTotal*100 - 100 + 0.5))
}

// AnalyzeRecord 计算单条记录的偏差；无匹配标准时 normTotal 与 deviation 均为 0
func AnalyzeRecord(rec domain.ConsumptionRecord, norms *NormTable) domain.DeviationRecord {
	d := domain.DeviationRecord{
		Record:      rec,
		AnnualTotal: rec.AnnualTotal(),
	}
	if norm, ok := norms.ForRecord(rec); ok {
		n := norm
		d.Norm = &n
		d.AnnualNormTotal = norm.AnnualTotal()
		d.DeviationPercent = DeviationPercent(d.AnnualTotal, d.AnnualNormTotal)
	}
	return d
}

// Analyze 按输入顺序计算全部记录的偏差（不过滤）
func Analyze(records []domain.ConsumptionRecord, norms *NormTable) []domain.DeviationRecord {
	out := make([]domain.DeviationRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, AnalyzeRecord(rec, norms))
	}
	return out
}

// DeviationQuery 偏差报表查询条件
type DeviationQuery struct {
	Commercial   CommercialFilter
	MinDeviation int
	Sort         SortState
	Page         int
	Size         int
}

// DefaultDeviationQuery 全部用户、|偏差| >= 40%、按偏差降序、每页 10 条
func DefaultDeviationQuery() DeviationQuery {
	return DeviationQuery{
		Commercial:   FilterAll,
		MinDeviation: DefaultMinDeviation,
		Sort:         SortState{Key: DefaultDeviationKey, Direction: Desc},
		Page:         1,
		Size:         DefaultPageSize,
	}
}

func deviationColumn(key string) (func(domain.DeviationRecord) sortValue, error) {
	switch key {
	case "deviation":
		return func(d domain.DeviationRecord) sortValue { return numValue(float64(d.DeviationPercent)) }, nil
	case "total":
		return func(d domain.DeviationRecord) sortValue { return numValue(d.AnnualTotal) }, nil
	case "normTotal":
		return func(d domain.DeviationRecord) sortValue { return numValue(d.AnnualNormTotal) }, nil
	}
	if col, ok := recordColumn(key); ok {
		return func(d domain.DeviationRecord) sortValue { return col(d.Record) }, nil
	}
	return nil, fmt.Errorf("unknown sort key %q", key)
}

// FilterDeviations 按商业标志与 |deviation| >= minDeviation 过滤，保持输入顺序
func FilterDeviations(devs []domain.DeviationRecord, filter CommercialFilter, minDeviation int) []domain.DeviationRecord {
	out := make([]domain.DeviationRecord, 0, len(devs))
	for _, d := range devs {
		if !filter.Match(d.Record) {
			continue
		}
		if abs(d.DeviationPercent) < minDeviation {
			continue
		}
		out = append(out, d)
	}
	return out
}

// QueryDeviations 分析 -> 过滤 -> 排序 -> 分页；输入切片不被修改
func QueryDeviations(records []domain.ConsumptionRecord, norms *NormTable, q DeviationQuery) (Page[domain.DeviationRecord], error) {
	if q.Sort.Key == "" {
		q.Sort = SortState{Key: DefaultDeviationKey, Direction: Desc}
	}
	if q.Sort.Direction == "" {
		q.Sort.Direction = Desc
	}
	if q.Commercial == "" {
		q.Commercial = FilterAll
	}
	col, err := deviationColumn(q.Sort.Key)
	if err != nil {
		return Page[domain.DeviationRecord]{}, err
	}

	filtered := FilterDeviations(Analyze(records, norms), q.Commercial, q.MinDeviation)
	sortStable(filtered, col, q.Sort.Direction)

	page := Paginate(filtered, q.Page, q.Size)
	page.Sort = q.Sort.Key
	page.Direction = string(q.Sort.Direction)
	return page, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
