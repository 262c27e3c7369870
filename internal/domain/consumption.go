package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MonthsPerYear 每年月份数
const MonthsPerYear = 12

// MonthNames 月份简称（导出表头使用，索引 0 = 一月）
var MonthNames = [MonthsPerYear]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// winterMonths 冬季窗口（十月至次年四月）
var winterMonths = [7]int{10, 11, 12, 1, 2, 3, 4}

// MonthlyConsumption 按月用电量（kWh），索引 0 = 一月
// JSON 形式为 "1".."12" 字符串键的对象
type MonthlyConsumption [MonthsPerYear]float64

// Month 返回第 month 月（1-12）的用电量，越界返回 0
func (m MonthlyConsumption) Month(month int) float64 {
	if month < 1 || month > MonthsPerYear {
		return 0
	}
	return m[month-1]
}

// Set 设置第 month 月（1-12）的用电量，越界忽略
func (m *MonthlyConsumption) Set(month int, value float64) {
	if month < 1 || month > MonthsPerYear {
		return
	}
	m[month-1] = value
}

// Total 全年合计
func (m MonthlyConsumption) Total() float64 {
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum
}

// WinterSeason 返回十月至四月的 7 个月用电量
func (m MonthlyConsumption) WinterSeason() WinterConsumption {
	var w WinterConsumption
	for i, month := range winterMonths {
		w[i] = m.Month(month)
	}
	return w
}

// MarshalJSON 按月份顺序输出 {"1":..,"12":..}
func (m MonthlyConsumption) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"` + strconv.Itoa(i+1) + `":`)
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 解析 "1".."12" 键；未知键忽略，缺失月份为 0
func (m *MonthlyConsumption) UnmarshalJSON(data []byte) error {
	*m = MonthlyConsumption{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw map[string]json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("consumption must be a month-keyed object: %w", err)
	}
	for key, num := range raw {
		month, err := strconv.Atoi(key)
		if err != nil || month < 1 || month > MonthsPerYear {
			continue
		}
		v, err := num.Float64()
		if err != nil {
			return fmt.Errorf("consumption[%s]: %w", key, err)
		}
		m.Set(month, v)
	}
	return nil
}

// WinterConsumption 十月至四月用电量（Oct, Nov, Dec, Jan, Feb, Mar, Apr）
type WinterConsumption [7]float64

// Average 冬季月均
func (w WinterConsumption) Average() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

// MarshalJSON 输出与旧版 high-consumers 接口一致的字段名
func (w WinterConsumption) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{
		"oct": w[0],
		"nov": w[1],
		"dec": w[2],
		"jan": w[3],
		"feb": w[4],
		"mar": w[5],
		"apr": w[6],
	})
}
