package analysis

import "energo-data/internal/domain"

// Compare 单账户逐月实际 vs 标准；无匹配标准时 norm 列为 0
func Compare(rec domain.ConsumptionRecord, norms *NormTable) domain.AccountComparison {
	d := AnalyzeRecord(rec, norms)
	cmp := domain.AccountComparison{
		Record:           rec,
		Norm:             d.Norm,
		Months:           make([]domain.MonthComparison, 0, domain.MonthsPerYear),
		AnnualTotal:      d.AnnualTotal,
		AnnualNormTotal:  d.AnnualNormTotal,
		DeviationPercent: d.DeviationPercent,
	}
	for m := 1; m <= domain.MonthsPerYear; m++ {
		row := domain.MonthComparison{Month: m, Actual: rec.Consumption.Month(m)}
		if d.Norm != nil {
			row.Norm = d.Norm.Consumption.Month(m)
		}
		row.Diff = row.Actual - row.Norm
		cmp.Months = append(cmp.Months, row)
	}
	return cmp
}

// CompareAccount 在记录集中查找账户并对比；不存在返回 domain.ErrNotFound
func CompareAccount(records []domain.ConsumptionRecord, norms *NormTable, accountID int64) (domain.AccountComparison, error) {
	for _, rec := range records {
		if rec.AccountID == accountID {
			return Compare(rec, norms), nil
		}
	}
	return domain.AccountComparison{}, domain.ErrNotFound
}
