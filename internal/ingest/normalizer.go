package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"energo-data/internal/domain"
)

// ItemResult 单条导入项的校验结果
// Reasons 非空表示该项非法（整批拒绝）；Warnings 只记录被置零的月份等可容忍问题
type ItemResult struct {
	Index    int
	Record   domain.ConsumptionRecord
	Reasons  []string
	Warnings []string
}

// Valid 是否通过校验
func (r ItemResult) Valid() bool { return len(r.Reasons) == 0 }

// Batch 一次导入的规范化结果（全部项均合法）
type Batch struct {
	Items    []ItemResult
	Warnings []string
}

// Len 导入项数量（含同 accountId 的重复项）
func (b *Batch) Len() int { return len(b.Items) }

// Records 折叠为待 upsert 的记录集：同一 accountId 以最后一次出现为准，按最后出现的位置排序
func (b *Batch) Records() []domain.ConsumptionRecord {
	last := make(map[int64]int, len(b.Items))
	for i, it := range b.Items {
		last[it.Record.AccountID] = i
	}
	out := make([]domain.ConsumptionRecord, 0, len(last))
	for i, it := range b.Items {
		if last[it.Record.AccountID] == i {
			out = append(out, it.Record)
		}
	}
	return out
}

// Normalize 解析并校验 JSON 上传内容（必须是数组）
func Normalize(payload []byte) (*Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return nil, domain.NewValidationError("invalid JSON: trailing data after array")
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, domain.NewValidationError("invalid JSON format: expected array")
	}
	return NormalizeItems(items)
}

// NormalizeItems 校验已解码的导入项；任一项非法则返回 ValidationError（包含全部原因），不返回任何记录
func NormalizeItems(items []any) (*Batch, error) {
	batch := &Batch{Items: make([]ItemResult, 0, len(items))}
	var reasons []string

	for i, item := range items {
		res := normalizeItem(i, item)
		for _, r := range res.Reasons {
			reasons = append(reasons, fmt.Sprintf("item %d: %s", i, r))
		}
		for _, w := range res.Warnings {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("item %d: %s", i, w))
		}
		batch.Items = append(batch.Items, res)
	}

	if len(reasons) > 0 {
		return nil, domain.NewValidationError(reasons...)
	}
	return batch, nil
}

func normalizeItem(index int, item any) ItemResult {
	res := ItemResult{Index: index}

	obj, ok := item.(map[string]any)
	if !ok {
		res.Reasons = append(res.Reasons, "expected object")
		return res
	}

	id, reason := parseAccountID(obj["accountId"])
	if reason != "" {
		res.Reasons = append(res.Reasons, reason)
		return res
	}

	rec := domain.ConsumptionRecord{AccountID: id}

	switch v := obj["isCommercial"].(type) {
	case nil:
	case bool:
		b := v
		rec.IsCommercial = &b
	default:
		res.Warnings = append(res.Warnings, "isCommercial is not a boolean, left unclassified")
	}

	rec.Address = optionalString(obj["address"])
	rec.BuildingType = optionalString(obj["buildingType"])
	for _, field := range []struct {
		name string
		dst  **int
	}{
		{"roomsCount", &rec.RoomsCount},
		{"residentsCount", &rec.ResidentsCount},
	} {
		n, warning := optionalCount(obj[field.name], field.name)
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		*field.dst = n
	}
	rec.TotalArea = optionalFloat(obj["totalArea"])

	switch c := obj["consumption"].(type) {
	case nil:
	case map[string]any:
		for m := 1; m <= domain.MonthsPerYear; m++ {
			raw, present := c[strconv.Itoa(m)]
			if !present || raw == nil {
				continue
			}
			v, ok := toFloat(raw)
			if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("consumption month %d: invalid value %v, treated as 0", m, raw))
				continue
			}
			rec.Consumption.Set(m, v)
		}
	default:
		res.Warnings = append(res.Warnings, "consumption is not an object, all months treated as 0")
	}

	res.Record = rec
	return res
}

// maxExactInt float64 能精确表示的整数上界
const maxExactInt = 1 << 53

// parseAccountID accountId 必须为正整数（数字或数字字符串）
func parseAccountID(v any) (int64, string) {
	var text string
	switch t := v.(type) {
	case nil:
		return 0, "missing required field: accountId"
	case bool:
		return 0, "accountId must be a number"
	case int:
		return checkAccountID(int64(t), v)
	case int64:
		return checkAccountID(t, v)
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
		if text == "" {
			return 0, "missing required field: accountId"
		}
	}

	if text != "" {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return checkAccountID(n, v)
		}
		// 浮点写法只接受能精确表示的整数，如 "1001.0"
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, "accountId must be a number"
		}
		return floatAccountID(f, v)
	}

	f, ok := toFloat(v)
	if !ok {
		return 0, "accountId must be a number"
	}
	return floatAccountID(f, v)
}

func checkAccountID(n int64, raw any) (int64, string) {
	if n == 0 {
		return 0, "missing required field: accountId"
	}
	if n < 0 {
		return 0, fmt.Sprintf("invalid accountId %v", raw)
	}
	return n, ""
}

func floatAccountID(f float64, raw any) (int64, string) {
	if f == 0 {
		return 0, "missing required field: accountId"
	}
	if f < 0 || f != math.Trunc(f) || f > maxExactInt || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Sprintf("invalid accountId %v", raw)
	}
	return int64(f), ""
}

// toFloat 接受 json.Number、Go 数值和数字字符串（XLSX 单元格）
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// optionalString 空串、null、非字符串 -> nil
func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optionalCount 0、null、非数值 -> nil；负数、小数或超出 INTEGER 范围 -> nil 并给出警告
func optionalCount(v any, field string) (*int, string) {
	f, ok := toFloat(v)
	if !ok || f == 0 {
		return nil, ""
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil, fmt.Sprintf("%s: invalid value %v, treated as null", field, v)
	}
	n := int(f)
	return &n, ""
}

// optionalFloat 0、null、非数值 -> nil
func optionalFloat(v any) *float64 {
	f, ok := toFloat(v)
	if !ok || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
