package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"energo-data/internal/domain"

	"github.com/xuri/excelize/v2"
)

// 表头别名（小写）-> 导入字段；同时识别 XLSX 导出的表头
var xlsxFieldAliases = map[string]string{
	"accountid":       "accountId",
	"account_id":      "accountId",
	"iscommercial":    "isCommercial",
	"is_commercial":   "isCommercial",
	"address":         "address",
	"buildingtype":    "buildingType",
	"building_type":   "buildingType",
	"roomscount":      "roomsCount",
	"rooms_count":     "roomsCount",
	"residentscount":  "residentsCount",
	"residents_count": "residentsCount",
	"totalarea":       "totalArea",
	"total_area":      "totalArea",
	"account id":      "accountId",
	"commercial":      "isCommercial",
	"building type":   "buildingType",
	"rooms":           "roomsCount",
	"residents":       "residentsCount",
	"total area":      "totalArea",
}

// 月份列：数字 "1".."12" 或英文缩写（december 兼容旧表结构）
var xlsxMonthAliases = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12, "december": 12,
}

// ReadXLSX 读取第一个工作表，第一行为表头，返回与 JSON 上传同形状的导入项，交给 NormalizeItems
func ReadXLSX(r io.Reader) ([]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid xlsx file: %v", err))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("invalid xlsx file: no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []any{}, nil
	}

	type column struct {
		field string
		month int
	}
	columns := make([]column, len(rows[0]))
	hasAccount := false
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if field, ok := xlsxFieldAliases[key]; ok {
			columns[i] = column{field: field}
			hasAccount = hasAccount || field == "accountId"
			continue
		}
		if m, err := strconv.Atoi(key); err == nil && m >= 1 && m <= domain.MonthsPerYear {
			columns[i] = column{month: m}
			continue
		}
		if m, ok := xlsxMonthAliases[key]; ok {
			columns[i] = column{month: m}
		}
	}
	if !hasAccount {
		return nil, domain.NewValidationError("invalid xlsx file: missing accountId column")
	}

	items := make([]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		item := map[string]any{}
		consumption := map[string]any{}
		for i, cell := range row {
			if i >= len(columns) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			col := columns[i]
			switch {
			case col.month > 0:
				consumption[strconv.Itoa(col.month)] = cell
			case col.field == "isCommercial":
				if b, ok := parseBoolCell(cell); ok {
					item[col.field] = b
				}
			case col.field != "":
				item[col.field] = cell
			}
		}
		if len(consumption) > 0 {
			item["consumption"] = consumption
		}
		items = append(items, item)
	}
	return items, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseBoolCell(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "да":
		return true, true
	case "false", "0", "no", "нет":
		return false, true
	}
	return false, false
}
