package analysis

import (
	"fmt"
	"sort"
	"strings"

	"energo-data/internal/domain"
	"energo-data/internal/models"
)

// DefaultPageSize 默认每页条数
const DefaultPageSize = 10

// CommercialFilter 商业标志过滤
type CommercialFilter string

const (
	FilterAll           CommercialFilter = "all"
	FilterCommercial    CommercialFilter = "commercial"
	FilterNonCommercial CommercialFilter = "non-commercial"
)

// ParseCommercialFilter 解析查询参数；空串为 all，也接受 true/false
func ParseCommercialFilter(s string) (CommercialFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "commercial", "true":
		return FilterCommercial, nil
	case "non-commercial", "noncommercial", "false":
		return FilterNonCommercial, nil
	}
	return "", fmt.Errorf("invalid commercial filter %q", s)
}

// Match 未分类记录按非商业处理
func (f CommercialFilter) Match(rec domain.ConsumptionRecord) bool {
	switch f {
	case FilterCommercial:
		return rec.Commercial()
	case FilterNonCommercial:
		return !rec.Commercial()
	}
	return true
}

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection 空串返回 def
func ParseDirection(s string, def Direction) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "asc", "1":
		return Asc, nil
	case "desc", "-1":
		return Desc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// SortState 当前排序列与方向
type SortState struct {
	Key       string
	Direction Direction
}

// Toggle 再次选择同一列时反转方向；新选择的列默认降序
func (s SortState) Toggle(key string) SortState {
	if key == s.Key {
		if s.Direction == Desc {
			return SortState{Key: key, Direction: Asc}
		}
		return SortState{Key: key, Direction: Desc}
	}
	return SortState{Key: key, Direction: Desc}
}

// sortValue 可比较的列值；null 永远最小
type sortValue struct {
	null bool
	num  float64
	str  string
	text bool
}

func numValue(f float64) sortValue { return sortValue{num: f} }

func textValue(s *string) sortValue {
	if s == nil {
		return sortValue{null: true, text: true}
	}
	return sortValue{str: strings.ToLower(*s), text: true}
}

func intPtrValue(p *int) sortValue {
	if p == nil {
		return sortValue{null: true}
	}
	return sortValue{num: float64(*p)}
}

func floatPtrValue(p *float64) sortValue {
	if p == nil {
		return sortValue{null: true}
	}
	return sortValue{num: *p}
}

func boolPtrValue(p *bool) sortValue {
	if p == nil {
		return sortValue{null: true}
	}
	if *p {
		return sortValue{num: 1}
	}
	return sortValue{num: 0}
}

func compareValues(a, b sortValue) int {
	switch {
	case a.null && b.null:
		return 0
	case a.null:
		return -1
	case b.null:
		return 1
	}
	if a.text {
		return strings.Compare(a.str, b.str)
	}
	switch {
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	}
	return 0
}

// recordColumn 记录本身的可排序列
func recordColumn(key string) (func(domain.ConsumptionRecord) sortValue, bool) {
	switch key {
	case "accountId":
		return func(r domain.ConsumptionRecord) sortValue { return numValue(float64(r.AccountID)) }, true
	case "address":
		return func(r domain.ConsumptionRecord) sortValue { return textValue(r.Address) }, true
	case "buildingType":
		return func(r domain.ConsumptionRecord) sortValue { return textValue(r.BuildingType) }, true
	case "roomsCount":
		return func(r domain.ConsumptionRecord) sortValue { return intPtrValue(r.RoomsCount) }, true
	case "residentsCount":
		return func(r domain.ConsumptionRecord) sortValue { return intPtrValue(r.ResidentsCount) }, true
	case "totalArea":
		return func(r domain.ConsumptionRecord) sortValue { return floatPtrValue(r.TotalArea) }, true
	case "isCommercial":
		return func(r domain.ConsumptionRecord) sortValue { return boolPtrValue(r.IsCommercial) }, true
	}
	return nil, false
}

// sortStable 稳定排序：相等元素保持输入顺序（两个方向都是）
func sortStable[T any](items []T, col func(T) sortValue, dir Direction) {
	sort.SliceStable(items, func(i, j int) bool {
		c := compareValues(col(items[i]), col(items[j]))
		if dir == Asc {
			return c < 0
		}
		return c > 0
	})
}

// Page 一页结果
type Page[T any] struct {
	Items []T `json:"items"`
	models.Pagination
}

// Paginate 页码从 1 开始；page < 1 视为 1，size < 1 使用默认值；越界返回空页
func Paginate[T any](items []T, page, size int) Page[T] {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	total := len(items)
	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}

	p := Page[T]{
		Items: []T{},
		Pagination: models.Pagination{
			Size:       size,
			Page:       page,
			Total:      total,
			TotalPages: totalPages,
		},
	}
	if page > totalPages {
		return p
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	p.Items = items[start:end]
	return p
}
