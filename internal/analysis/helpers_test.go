package analysis_test

import "energo-data/internal/domain"

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func flat(v float64) domain.MonthlyConsumption {
	var m domain.MonthlyConsumption
	for i := range m {
		m[i] = v
	}
	return m
}

func winter(v float64) domain.MonthlyConsumption {
	var m domain.MonthlyConsumption
	for _, month := range []int{10, 11, 12, 1, 2, 3, 4} {
		m.Set(month, v)
	}
	return m
}

func household(id int64, rooms, residents int, monthly domain.MonthlyConsumption) domain.ConsumptionRecord {
	return domain.ConsumptionRecord{
		AccountID:      id,
		RoomsCount:     intPtr(rooms),
		ResidentsCount: intPtr(residents),
		Consumption:    monthly,
	}
}
