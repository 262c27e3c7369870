package export

import (
	"bytes"
	"fmt"

	"energo-data/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX XLSX 下载的 Content-Type
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type column struct {
	header string
	width  float64
}

// 记录基础列（所有报表共用）
var recordColumns = []column{
	{"Account ID", 14},
	{"Commercial", 12},
	{"Address", 40},
	{"Building Type", 18},
	{"Rooms", 8},
	{"Residents", 10},
	{"Total Area", 12},
}

func monthColumns() []column {
	cols := make([]column, 0, domain.MonthsPerYear)
	for _, name := range domain.MonthNames {
		cols = append(cols, column{name, 10})
	}
	return cols
}

// RecordsXLSX 导出全部记录（逐月 + 全年合计）
func RecordsXLSX(records []domain.ConsumptionRecord) ([]byte, error) {
	cols := append(append(append([]column{}, recordColumns...), monthColumns()...), column{"Annual Total", 14})

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row := recordCells(rec)
		for _, v := range rec.Consumption {
			row = append(row, v)
		}
		rows = append(rows, append(row, rec.AnnualTotal()))
	}
	return writeWorkbook("Consumption", cols, rows)
}

// DeviationsXLSX 导出偏差报表（按传入顺序）
func DeviationsXLSX(devs []domain.DeviationRecord) ([]byte, error) {
	cols := append(append([]column{}, recordColumns...),
		column{"Annual Total", 14},
		column{"Norm Total", 14},
		column{"Deviation %", 12},
	)

	rows := make([][]any, 0, len(devs))
	for _, d := range devs {
		row := recordCells(d.Record)
		var normTotal any
		if d.Norm != nil {
			normTotal = d.AnnualNormTotal
		}
		rows = append(rows, append(row, d.AnnualTotal, normTotal, d.DeviationPercent))
	}
	return writeWorkbook("Deviations", cols, rows)
}

// HighConsumersXLSX 导出冬季高耗电用户
func HighConsumersXLSX(hcs []domain.HighConsumer) ([]byte, error) {
	cols := append([]column{}, recordColumns...)
	for _, name := range []string{"Oct", "Nov", "Dec", "Jan", "Feb", "Mar", "Apr"} {
		cols = append(cols, column{name, 10})
	}
	cols = append(cols, column{"Avg Oct-Apr", 14})

	rows := make([][]any, 0, len(hcs))
	for _, h := range hcs {
		row := recordCells(h.Record)
		for _, v := range h.Winter {
			row = append(row, v)
		}
		rows = append(rows, append(row, h.AverageConsumption))
	}
	return writeWorkbook("High Consumers", cols, rows)
}

// recordCells 空值写成空单元格
func recordCells(rec domain.ConsumptionRecord) []any {
	row := []any{rec.AccountID, nil, nil, nil, nil, nil, nil}
	if rec.IsCommercial != nil {
		if *rec.IsCommercial {
			row[1] = "Yes"
		} else {
			row[1] = "No"
		}
	}
	if rec.Address != nil {
		row[2] = *rec.Address
	}
	if rec.BuildingType != nil {
		row[3] = *rec.BuildingType
	}
	if rec.RoomsCount != nil {
		row[4] = *rec.RoomsCount
	}
	if rec.ResidentsCount != nil {
		row[5] = *rec.ResidentsCount
	}
	if rec.TotalArea != nil {
		row[6] = *rec.TotalArea
	}
	return row
}

// writeWorkbook 单工作表：加粗表头、列宽、冻结首行
func writeWorkbook(sheetName string, cols []column, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	headers := make([]any, len(cols))
	for i, c := range cols {
		headers[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, c.width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &rows[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}
