package analysis_test

import (
	"testing"

	"energo-data/internal/analysis"
	"energo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareAccount(t *testing.T) {
	table := normTable(t)
	records := []domain.ConsumptionRecord{household(7, 2, 3, flat(250))}

	cmp, err := analysis.CompareAccount(records, table, 7)
	require.NoError(t, err)
	require.Len(t, cmp.Months, 12)
	assert.Equal(t, 1, cmp.Months[0].Month)
	assert.Equal(t, 250.0, cmp.Months[0].Actual)
	assert.Equal(t, 300.0, cmp.Months[0].Norm)
	assert.Equal(t, -50.0, cmp.Months[0].Diff)
	assert.Equal(t, -17, cmp.DeviationPercent)
}

func TestCompareAccount_NotFound(t *testing.T) {
	_, err := analysis.CompareAccount(nil, normTable(t), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompare_WithoutNorm(t *testing.T) {
	cmp := analysis.Compare(household(1, 9, 9, flat(10)), normTable(t))
	assert.Nil(t, cmp.Norm)
	assert.Equal(t, 10.0, cmp.Months[11].Diff)
}
