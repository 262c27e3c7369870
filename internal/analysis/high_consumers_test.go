package analysis_test

import (
	"testing"

	"energo-data/internal/analysis"
	"energo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighConsumers_StrictThreshold(t *testing.T) {
	records := []domain.ConsumptionRecord{
		{AccountID: 1, Consumption: winter(500)},
		{AccountID: 2, Consumption: winter(3000)},
		{AccountID: 3, Consumption: winter(3001)},
	}

	got := analysis.HighConsumers(records, analysis.DefaultHighConsumerThreshold)
	require.Len(t, got, 1)
	assert.EqualValues(t, 3, got[0].Record.AccountID)
	assert.Equal(t, 3001.0, got[0].AverageConsumption)
	assert.Equal(t, 3001.0, got[0].Winter[0])
}

func TestHighConsumers_IgnoresSummerMonths(t *testing.T) {
	rec := domain.ConsumptionRecord{AccountID: 1, Consumption: winter(100)}
	for _, m := range []int{5, 6, 7, 8, 9} {
		rec.Consumption.Set(m, 100000)
	}
	assert.Empty(t, analysis.HighConsumers([]domain.ConsumptionRecord{rec}, 3000))
}

func TestHighConsumers_SortedDescending(t *testing.T) {
	records := []domain.ConsumptionRecord{
		{AccountID: 1, Consumption: winter(3500)},
		{AccountID: 2, Consumption: winter(5000)},
		{AccountID: 3, Consumption: winter(3500)},
		{AccountID: 4, Consumption: winter(4000)},
	}

	got := analysis.HighConsumers(records, 3000)
	ids := make([]int64, 0, len(got))
	for _, h := range got {
		ids = append(ids, h.Record.AccountID)
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, ids)
}

func TestQueryHighConsumers_FilterSortPage(t *testing.T) {
	records := []domain.ConsumptionRecord{
		{AccountID: 1, Consumption: winter(3500), IsCommercial: boolPtr(true)},
		{AccountID: 2, Consumption: winter(5000)},
		{AccountID: 3, Consumption: winter(4000), IsCommercial: boolPtr(false)},
		{AccountID: 4, Consumption: winter(100)},
	}

	q := analysis.DefaultHighConsumerQuery()
	q.Commercial = analysis.FilterNonCommercial
	page, err := analysis.QueryHighConsumers(records, q)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.EqualValues(t, 2, page.Items[0].Record.AccountID)

	q = analysis.DefaultHighConsumerQuery()
	q.Sort = analysis.SortState{Key: "accountId", Direction: analysis.Asc}
	q.Size = 2
	page, err = analysis.QueryHighConsumers(records, q)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.EqualValues(t, 1, page.Items[0].Record.AccountID)
	assert.EqualValues(t, 2, page.Items[1].Record.AccountID)

	q.Sort = analysis.SortState{Key: "oct", Direction: analysis.Asc}
	page, err = analysis.QueryHighConsumers(records, q)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Items[0].Record.AccountID)

	q.Sort.Key = "nope"
	_, err = analysis.QueryHighConsumers(records, q)
	require.Error(t, err)
}
