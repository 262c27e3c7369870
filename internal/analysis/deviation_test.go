package analysis_test

import (
	"math"
	"testing"

	"energo-data/internal/analysis"
	"energo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normTable(t *testing.T) *analysis.NormTable {
	t.Helper()
	table, err := analysis.NewNormTable([]domain.NormBucket{
		{RoomsCount: 2, ResidentsCount: 3, Consumption: flat(300)},
		{RoomsCount: 1, ResidentsCount: 1, Consumption: flat(100)},
	})
	require.NoError(t, err)
	return table
}

func TestDeviationPercent(t *testing.T) {
	assert.Equal(t, -17, analysis.DeviationPercent(3000, 3600))
	assert.Equal(t, 0, analysis.DeviationPercent(3600, 3600))
	assert.Equal(t, 100, analysis.DeviationPercent(7200, 3600))
	assert.Equal(t, 0, analysis.DeviationPercent(1000, 0))
	// 半数向正无穷：-62.5 -> -62，62.5 -> 63
	assert.Equal(t, -62, analysis.DeviationPercent(75, 200))
	assert.Equal(t, 63, analysis.DeviationPercent(325, 200))
}

func TestAnalyzeRecord_Scenario(t *testing.T) {
	d := analysis.AnalyzeRecord(household(1, 2, 3, flat(250)), normTable(t))

	assert.Equal(t, 3000.0, d.AnnualTotal)
	assert.Equal(t, 3600.0, d.AnnualNormTotal)
	assert.Equal(t, -17, d.DeviationPercent)
	require.NotNil(t, d.Norm)
}

func TestAnalyzeRecord_NoNorm(t *testing.T) {
	table := normTable(t)

	d := analysis.AnalyzeRecord(household(1, 5, 5, flat(250)), table)
	assert.Nil(t, d.Norm)
	assert.Equal(t, 0.0, d.AnnualNormTotal)
	assert.Equal(t, 0, d.DeviationPercent)

	d = analysis.AnalyzeRecord(domain.ConsumptionRecord{AccountID: 2, RoomsCount: intPtr(2), Consumption: flat(250)}, table)
	assert.Equal(t, 0, d.DeviationPercent)
}

func TestDeviation_MonotonicInTotal(t *testing.T) {
	table := normTable(t)
	prev := analysis.AnalyzeRecord(household(1, 2, 3, flat(0)), table).DeviationPercent
	for v := 10.0; v <= 1000; v += 10 {
		cur := analysis.AnalyzeRecord(household(1, 2, 3, flat(v)), table).DeviationPercent
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestFilterDeviations_Threshold(t *testing.T) {
	devs := []domain.DeviationRecord{
		{Record: domain.ConsumptionRecord{AccountID: 1}, DeviationPercent: 40},
		{Record: domain.ConsumptionRecord{AccountID: 2}, DeviationPercent: -40},
		{Record: domain.ConsumptionRecord{AccountID: 3}, DeviationPercent: 39},
		{Record: domain.ConsumptionRecord{AccountID: 4, IsCommercial: boolPtr(true)}, DeviationPercent: -80},
	}

	got := analysis.FilterDeviations(devs, analysis.FilterAll, 40)
	require.Len(t, got, 3)
	assert.EqualValues(t, 1, got[0].Record.AccountID)

	got = analysis.FilterDeviations(devs, analysis.FilterCommercial, 40)
	require.Len(t, got, 1)
	assert.EqualValues(t, 4, got[0].Record.AccountID)

	got = analysis.FilterDeviations(devs, analysis.FilterNonCommercial, 0)
	assert.Len(t, got, 3)
}

func TestQueryDeviations_DefaultsSortAndPage(t *testing.T) {
	table := normTable(t)
	var records []domain.ConsumptionRecord
	// 12 条超标记录（偏差 50%..160%），外加 1 条未超阈值
	for i := 1; i <= 12; i++ {
		records = append(records, household(int64(i), 1, 1, flat(150+float64(i-1)*10)))
	}
	records = append(records, household(100, 1, 1, flat(110)))

	q := analysis.DefaultDeviationQuery()
	page, err := analysis.QueryDeviations(records, table, q)
	require.NoError(t, err)

	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 10)
	assert.EqualValues(t, 12, page.Items[0].Record.AccountID)
	assert.Equal(t, 160, page.Items[0].DeviationPercent)
	assert.Equal(t, "deviation", page.Sort)
	assert.Equal(t, "desc", page.Direction)

	q.Page = 2
	page, err = analysis.QueryDeviations(records, table, q)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.EqualValues(t, 1, page.Items[1].Record.AccountID)

	q.Page = 5
	page, err = analysis.QueryDeviations(records, table, q)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 12, page.Total)
}

func TestQueryDeviations_SortByAddressNullsLowest(t *testing.T) {
	records := []domain.ConsumptionRecord{
		{AccountID: 1, Address: strPtr("b street")},
		{AccountID: 2},
		{AccountID: 3, Address: strPtr("A street")},
	}
	q := analysis.DeviationQuery{Sort: analysis.SortState{Key: "address", Direction: analysis.Asc}}

	page, err := analysis.QueryDeviations(records, nil, q)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.EqualValues(t, 2, page.Items[0].Record.AccountID)
	assert.EqualValues(t, 3, page.Items[1].Record.AccountID)
	assert.EqualValues(t, 1, page.Items[2].Record.AccountID)
}

func TestQueryDeviations_StableTies(t *testing.T) {
	records := []domain.ConsumptionRecord{{AccountID: 5}, {AccountID: 3}, {AccountID: 9}}
	for _, dir := range []analysis.Direction{analysis.Asc, analysis.Desc} {
		page, err := analysis.QueryDeviations(records, nil, analysis.DeviationQuery{
			Sort: analysis.SortState{Key: "deviation", Direction: dir},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 5, page.Items[0].Record.AccountID)
		assert.EqualValues(t, 3, page.Items[1].Record.AccountID)
		assert.EqualValues(t, 9, page.Items[2].Record.AccountID)
	}
}

func TestQueryDeviations_UnknownSortKey(t *testing.T) {
	_, err := analysis.QueryDeviations(nil, nil, analysis.DeviationQuery{Sort: analysis.SortState{Key: "bogus"}})
	require.Error(t, err)
}

func TestSortState_Toggle(t *testing.T) {
	s := analysis.SortState{Key: "deviation", Direction: analysis.Desc}

	s = s.Toggle("deviation")
	assert.Equal(t, analysis.Asc, s.Direction)
	s = s.Toggle("deviation")
	assert.Equal(t, analysis.Desc, s.Direction)

	s = s.Toggle("deviation").Toggle("total")
	assert.Equal(t, "total", s.Key)
	assert.Equal(t, analysis.Desc, s.Direction)
}

func TestQueryDeviations_ThresholdNeverGrowsResult(t *testing.T) {
	table := normTable(t)
	records := []domain.ConsumptionRecord{
		household(1, 2, 3, flat(0)),
		household(2, 2, 3, flat(150)),
		household(3, 2, 3, flat(290)),
		household(4, 2, 3, flat(420)),
		household(5, 2, 3, flat(900)),
		household(6, 1, 1, flat(60)),
		household(7, 1, 1, flat(180)),
		household(8, 4, 5, flat(500)),
	}
	records[4].IsCommercial = boolPtr(true)
	records[5].IsCommercial = boolPtr(false)

	for _, filter := range []analysis.CommercialFilter{analysis.FilterAll, analysis.FilterCommercial, analysis.FilterNonCommercial} {
		prev := math.MaxInt
		for threshold := 0; threshold <= 250; threshold += 5 {
			q := analysis.DefaultDeviationQuery()
			q.Commercial = filter
			q.MinDeviation = threshold
			page, err := analysis.QueryDeviations(records, table, q)
			require.NoError(t, err)
			assert.LessOrEqual(t, page.Total, prev, "filter=%s threshold=%d", filter, threshold)
			assert.Len(t, analysis.FilterDeviations(analysis.Analyze(records, table), filter, threshold), page.Total)
			prev = page.Total
		}
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := analysis.Paginate(items, 0, 2)
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 3, p.TotalPages)

	p = analysis.Paginate(items, 3, 2)
	assert.Equal(t, []int{5}, p.Items)

	p = analysis.Paginate(items, 4, 2)
	assert.Empty(t, p.Items)

	p = analysis.Paginate([]int{}, 1, 0)
	assert.Equal(t, analysis.DefaultPageSize, p.Size)
	assert.Equal(t, 0, p.TotalPages)

	// 极大页码或页长不得溢出
	p = analysis.Paginate([]int{1, 2, 3}, math.MaxInt64/5, 10)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.TotalPages)

	p = analysis.Paginate([]int{1, 2, 3}, 1, math.MaxInt64)
	assert.Equal(t, []int{1, 2, 3}, p.Items)
	assert.Equal(t, 1, p.TotalPages)

	p = analysis.Paginate([]int{1, 2, 3}, math.MaxInt64, math.MaxInt64)
	assert.Empty(t, p.Items)
}

func TestParseCommercialFilter(t *testing.T) {
	f, err := analysis.ParseCommercialFilter("")
	require.NoError(t, err)
	assert.Equal(t, analysis.FilterAll, f)

	f, err = analysis.ParseCommercialFilter("true")
	require.NoError(t, err)
	assert.Equal(t, analysis.FilterCommercial, f)

	_, err = analysis.ParseCommercialFilter("maybe")
	require.Error(t, err)
}
