package export

import (
	"encoding/json"
	"fmt"

	"energo-data/internal/domain"
)

// RecordsJSON 导出为与上传格式一致的 JSON 数组（可直接重新导入）
func RecordsJSON(records []domain.ConsumptionRecord) ([]byte, error) {
	if records == nil {
		records = []domain.ConsumptionRecord{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return b, nil
}
