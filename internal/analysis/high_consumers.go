package analysis

import (
	"fmt"

	"energo-data/internal/domain"
)

// 冬季高耗电默认值
const (
	DefaultHighConsumerThreshold = 3000.0
	DefaultHighConsumerKey       = "avgConsumption"
)

// HighConsumers 十月至四月月均严格大于 threshold 的记录，按月均降序（稳定）
func HighConsumers(records []domain.ConsumptionRecord, threshold float64) []domain.HighConsumer {
	out := make([]domain.HighConsumer, 0)
	for _, rec := range records {
		winter := rec.Consumption.WinterSeason()
		avg := winter.Average()
		if avg > threshold {
			out = append(out, domain.HighConsumer{Record: rec, Winter: winter, AverageConsumption: avg})
		}
	}
	sortStable(out, func(h domain.HighConsumer) sortValue { return numValue(h.AverageConsumption) }, Desc)
	return out
}

// HighConsumerQuery 高耗电列表查询条件
type HighConsumerQuery struct {
	Threshold  float64
	Commercial CommercialFilter
	Sort       SortState
	Page       int
	Size       int
}

// DefaultHighConsumerQuery 阈值 3000 kWh、按月均降序、每页 10 条
func DefaultHighConsumerQuery() HighConsumerQuery {
	return HighConsumerQuery{
		Threshold:  DefaultHighConsumerThreshold,
		Commercial: FilterAll,
		Sort:       SortState{Key: DefaultHighConsumerKey, Direction: Desc},
		Page:       1,
		Size:       DefaultPageSize,
	}
}

// 冬季窗口月份列（与 WinterConsumption 下标对应）
var winterKeys = map[string]int{"oct": 0, "nov": 1, "dec": 2, "jan": 3, "feb": 4, "mar": 5, "apr": 6}

func highConsumerColumn(key string) (func(domain.HighConsumer) sortValue, error) {
	switch key {
	case "avgConsumption", "avg_consumption":
		return func(h domain.HighConsumer) sortValue { return numValue(h.AverageConsumption) }, nil
	case "total":
		return func(h domain.HighConsumer) sortValue { return numValue(h.Record.AnnualTotal()) }, nil
	}
	if idx, ok := winterKeys[key]; ok {
		return func(h domain.HighConsumer) sortValue { return numValue(h.Winter[idx]) }, nil
	}
	if col, ok := recordColumn(key); ok {
		return func(h domain.HighConsumer) sortValue { return col(h.Record) }, nil
	}
	return nil, fmt.Errorf("unknown sort key %q", key)
}

// QueryHighConsumers 阈值过滤 -> 商业标志过滤 -> 排序 -> 分页
func QueryHighConsumers(records []domain.ConsumptionRecord, q HighConsumerQuery) (Page[domain.HighConsumer], error) {
	if q.Sort.Key == "" {
		q.Sort = SortState{Key: DefaultHighConsumerKey, Direction: Desc}
	}
	if q.Sort.Direction == "" {
		q.Sort.Direction = Desc
	}
	col, err := highConsumerColumn(q.Sort.Key)
	if err != nil {
		return Page[domain.HighConsumer]{}, err
	}

	all := HighConsumers(records, q.Threshold)
	filtered := make([]domain.HighConsumer, 0, len(all))
	for _, h := range all {
		if q.Commercial == "" || q.Commercial.Match(h.Record) {
			filtered = append(filtered, h)
		}
	}
	sortStable(filtered, col, q.Sort.Direction)

	page := Paginate(filtered, q.Page, q.Size)
	page.Sort = q.Sort.Key
	page.Direction = string(q.Sort.Direction)
	return page, nil
}
