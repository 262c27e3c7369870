package classifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"energo-data/internal/classifier"
	"energo-data/internal/domain"
	"energo-data/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLookup struct {
	mu       sync.Mutex
	calls    []string
	purposes map[string]classifier.Purpose
	errs     map[string]error
}

func (f *fakeLookup) LookupPurpose(ctx context.Context, address string) (classifier.Purpose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	if err := f.errs[address]; err != nil {
		return classifier.Purpose{}, err
	}
	if p, ok := f.purposes[address]; ok {
		return p, nil
	}
	return classifier.Purpose{Found: false}, nil
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memCache struct {
	items map[string]classifier.CachedResult
}

func newMemCache() *memCache { return &memCache{items: map[string]classifier.CachedResult{}} }

func (m *memCache) Get(ctx context.Context, address string) (classifier.CachedResult, bool, error) {
	r, ok := m.items[address]
	return r, ok, nil
}

func (m *memCache) Set(ctx context.Context, address string, r classifier.CachedResult) error {
	m.items[address] = r
	return nil
}

func (m *memCache) Purge(ctx context.Context) (int, error) {
	n := len(m.items)
	m.items = map[string]classifier.CachedResult{}
	return n, nil
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestClassify_CommercialAndResidential(t *testing.T) {
	lookup := &fakeLookup{purposes: map[string]classifier.Purpose{
		"shop st": {Label: "Магазин", Found: true},
		"home st": {Label: "Жилой дом", Found: true},
	}}
	c := classifier.NewClassifier(lookup, nil, nil, nil, zap.NewNop())

	res, err := c.Classify(context.Background(), "shop st")
	require.NoError(t, err)
	assert.True(t, res.IsCommercial)
	assert.Equal(t, "магазин", res.Keyword)
	assert.Equal(t, "retail", res.Category)

	res, err = c.Classify(context.Background(), "home st")
	require.NoError(t, err)
	assert.False(t, res.IsCommercial)
	assert.True(t, res.Found)

	res, err = c.Classify(context.Background(), "unknown st")
	require.NoError(t, err)
	assert.False(t, res.IsCommercial)
	assert.False(t, res.Found)

	stats := c.Stats()
	assert.EqualValues(t, 3, stats.Requests)
	assert.EqualValues(t, 1, stats.Commercial)
	assert.EqualValues(t, 2, stats.NonCommercial)
}

func TestClassify_LookupFailureIsNonCommercial(t *testing.T) {
	lookup := &fakeLookup{errs: map[string]error{"slow st": context.DeadlineExceeded}}
	c := classifier.NewClassifier(lookup, nil, nil, nil, zap.NewNop())

	res, err := c.Classify(context.Background(), "slow st")
	require.NoError(t, err)
	assert.False(t, res.IsCommercial)

	var ce *domain.ClassificationError
	require.ErrorAs(t, res.Err, &ce)
	assert.Equal(t, "slow st", ce.Address)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, c.Stats().Failures)
}

func TestClassify_CacheHitSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{purposes: map[string]classifier.Purpose{
		"office st": {Label: "Бизнес центр", Found: true},
	}}
	cache := newMemCache()
	c := classifier.NewClassifier(lookup, nil, nil, cache, zap.NewNop())

	first, err := c.Classify(context.Background(), "office st")
	require.NoError(t, err)
	require.True(t, first.IsCommercial)
	require.False(t, first.Cached)

	second, err := c.Classify(context.Background(), "office st")
	require.NoError(t, err)
	assert.True(t, second.IsCommercial)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, lookup.callCount())
	assert.EqualValues(t, 1, c.Stats().CacheHits)
}

func TestClassify_FailuresAreNotCached(t *testing.T) {
	lookup := &fakeLookup{errs: map[string]error{"x": errors.New("boom")}}
	cache := newMemCache()
	c := classifier.NewClassifier(lookup, nil, nil, cache, zap.NewNop())

	_, err := c.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, cache.items)
}

func TestClassify_CancelledBeforeCall(t *testing.T) {
	lookup := &fakeLookup{}
	c := classifier.NewClassifier(lookup, nil, ratelimit.NewInterval(time.Second), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, "addr")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, lookup.callCount())
}

func TestClassify_TraceLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lookup := &fakeLookup{purposes: map[string]classifier.Purpose{
		"cafe st": {Label: "Кафе", Found: true, Summary: "total=1"},
	}}
	c := classifier.NewClassifier(lookup, nil, nil, nil, zap.New(core))

	_, err := c.Classify(context.Background(), "cafe st")
	require.NoError(t, err)

	entries := logs.FilterMessage("Classification result").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "cafe st", fields["address"])
	assert.Equal(t, "total=1", fields["response"])
	assert.Equal(t, "кафе", fields["matched_keyword"])
	assert.Equal(t, true, fields["is_commercial"])
}

func TestClassifyPending_BatchCompletesDespiteTimeouts(t *testing.T) {
	lookup := &fakeLookup{
		purposes: map[string]classifier.Purpose{"mall": {Label: "Торговый центр", Found: true}},
		errs:     map[string]error{"timeout": context.DeadlineExceeded},
	}
	c := classifier.NewClassifier(lookup, nil, nil, nil, zap.NewNop())

	records := []domain.ConsumptionRecord{
		{AccountID: 1, Address: strPtr("mall")},
		{AccountID: 2, Address: strPtr("timeout")},
		// 无地址、已分类：跳过
		{AccountID: 3},
		{AccountID: 4, Address: strPtr("x"), IsCommercial: boolPtr(true)},
		// 同批次重复地址只查询一次
		{AccountID: 5, Address: strPtr("mall")},
	}

	var progress []int
	summary, err := c.ClassifyPending(context.Background(), records, func(done, total int, res classifier.Result) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 2, summary.Commercial)
	assert.Equal(t, 1, summary.NonCommercial)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.CacheHits)
	assert.Equal(t, 2, lookup.callCount())

	require.NotNil(t, records[0].IsCommercial)
	assert.True(t, *records[0].IsCommercial)
	require.NotNil(t, records[1].IsCommercial)
	assert.False(t, *records[1].IsCommercial)
	assert.Nil(t, records[2].IsCommercial)
	assert.True(t, *records[3].IsCommercial)
	assert.True(t, *records[4].IsCommercial)
}

func TestClassifyPending_StopsOnCancel(t *testing.T) {
	lookup := &fakeLookup{}
	c := classifier.NewClassifier(lookup, nil, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	records := []domain.ConsumptionRecord{
		{AccountID: 1, Address: strPtr("a")},
		{AccountID: 2, Address: strPtr("b")},
	}

	summary, err := c.ClassifyPending(ctx, records, func(done, total int, res classifier.Result) {
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, lookup.callCount())
	assert.Nil(t, records[1].IsCommercial)
}
