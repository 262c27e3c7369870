package analysis_test

import (
	"errors"
	"testing"

	"energo-data/internal/analysis"
	"energo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormTable_LookupExact(t *testing.T) {
	table, err := analysis.NewNormTable([]domain.NormBucket{
		{RoomsCount: 2, ResidentsCount: 3, Consumption: flat(300)},
		{RoomsCount: 1, ResidentsCount: 1, Consumption: flat(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	b, ok := table.Lookup(2, 3)
	require.True(t, ok)
	assert.Equal(t, 3600.0, b.AnnualTotal())

	_, ok = table.Lookup(3, 2)
	assert.False(t, ok)

	buckets := table.Buckets()
	assert.Equal(t, 1, buckets[0].RoomsCount)
	assert.Equal(t, 2, buckets[1].RoomsCount)
}

func TestNewNormTable_RejectsDuplicates(t *testing.T) {
	_, err := analysis.NewNormTable([]domain.NormBucket{
		{RoomsCount: 2, ResidentsCount: 3, Consumption: flat(300)},
		{RoomsCount: 2, ResidentsCount: 3, Consumption: flat(999)},
		{RoomsCount: -1, ResidentsCount: 3},
	})
	var nte *domain.NormTableError
	require.True(t, errors.As(err, &nte))
	assert.Equal(t, []domain.NormKey{{Rooms: 2, Residents: 3}}, nte.Duplicates)
	assert.Len(t, nte.Invalid, 1)
}

func TestNewNormTableLenient_FirstWins(t *testing.T) {
	table, err := analysis.NewNormTableLenient([]domain.NormBucket{
		{RoomsCount: 2, ResidentsCount: 3, Consumption: flat(300)},
		{RoomsCount: 2, ResidentsCount: 3, Consumption: flat(999)},
	})
	require.Error(t, err)
	require.NotNil(t, table)

	b, ok := table.Lookup(2, 3)
	require.True(t, ok)
	assert.Equal(t, 300.0, b.Consumption.Month(1))
}

func TestNormTable_NilRecordKeysNeverMatch(t *testing.T) {
	table, err := analysis.NewNormTable([]domain.NormBucket{{RoomsCount: 0, ResidentsCount: 0, Consumption: flat(1)}})
	require.NoError(t, err)

	_, ok := table.ForRecord(domain.ConsumptionRecord{AccountID: 1})
	assert.False(t, ok)
}
