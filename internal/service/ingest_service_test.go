package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"energo-data/internal/classifier"
	rediscommon "energo-data/internal/common/redis"
	"energo-data/internal/domain"
	"energo-data/internal/notify"
	"energo-data/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLookup struct {
	purposes map[string]string
	errs     map[string]error
	calls    int
}

func (s *stubLookup) LookupPurpose(ctx context.Context, address string) (classifier.Purpose, error) {
	s.calls++
	if err := s.errs[address]; err != nil {
		return classifier.Purpose{}, err
	}
	label, ok := s.purposes[address]
	return classifier.Purpose{Label: label, Found: ok}, nil
}

type recordingNotifier struct {
	events []notify.IngestEvent
}

func (r *recordingNotifier) NotifyIngested(ctx context.Context, e notify.IngestEvent) error {
	r.events = append(r.events, e)
	return nil
}

type memQueue struct {
	jobs []IngestJob
}

func (q *memQueue) Enqueue(ctx context.Context, job IngestJob) (string, error) {
	q.jobs = append(q.jobs, job)
	return "1-0", nil
}

func newTestIngestService(lookup classifier.PurposeLookup, queue JobQueue) (IngestService, *repository.MemoryRecordsRepo, *recordingNotifier) {
	repo := repository.NewMemoryRecordsRepo()
	n := &recordingNotifier{}
	cls := classifier.NewClassifier(lookup, nil, nil, nil, zap.NewNop())
	return NewIngestService(repo, cls, n, queue, zap.NewNop()), repo, n
}

const samplePayload = `[
	{"accountId": 1, "address": "mall", "roomsCount": 2, "residentsCount": 3, "consumption": {"1": 250}},
	{"accountId": 2, "address": "slow"},
	{"accountId": 3, "isCommercial": false, "address": "mall"},
	{"accountId": 4}
]`

func TestIngest_ClassifiesAndStores(t *testing.T) {
	lookup := &stubLookup{
		purposes: map[string]string{"mall": "Торговый центр"},
		errs:     map[string]error{"slow": context.DeadlineExceeded},
	}
	svc, repo, n := newTestIngestService(lookup, nil)
	ctx := context.Background()

	resp, err := svc.Ingest(ctx, IngestRequest{Payload: []byte(samplePayload), Format: FormatJSON, Source: "users.json"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 4, resp.RecordsAffected)
	assert.Equal(t, 2, resp.Classified)
	assert.Equal(t, 1, resp.Commercial)
	assert.Equal(t, 1, resp.ClassificationFailures)
	assert.Equal(t, 2, lookup.calls)

	rec, err := repo.GetRecord(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec.IsCommercial)
	assert.True(t, *rec.IsCommercial)

	// 查询超时：降级为非商业，批次照常完成
	rec, err = repo.GetRecord(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rec.IsCommercial)
	assert.False(t, *rec.IsCommercial)

	// 已带标志的记录不再查询
	rec, err = repo.GetRecord(ctx, 3)
	require.NoError(t, err)
	assert.False(t, *rec.IsCommercial)

	// 无地址：保持未分类
	rec, err = repo.GetRecord(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, rec.IsCommercial)

	require.Len(t, n.events, 1)
	assert.Equal(t, resp.BatchID, n.events[0].BatchID)
	assert.Equal(t, "users.json", n.events[0].Source)
}

func TestIngest_InvalidBatchStoresNothing(t *testing.T) {
	svc, repo, n := newTestIngestService(&stubLookup{}, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{Payload: []byte(`[{"accountId": 1}, {"address": "x"}]`)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	recs, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, n.events)

	_, err = svc.Ingest(ctx, IngestRequest{Payload: []byte("  ")})
	require.ErrorAs(t, err, &ve)
}

func TestIngest_IdempotentResubmission(t *testing.T) {
	lookup := &stubLookup{purposes: map[string]string{"mall": "Магазин"}}
	svc, repo, _ := newTestIngestService(lookup, nil)
	ctx := context.Background()
	payload := []byte(`[{"accountId": 1, "isCommercial": true, "address": "a", "consumption": {"2": 10}}, {"accountId": 2, "isCommercial": false}]`)

	_, err := svc.Ingest(ctx, IngestRequest{Payload: payload})
	require.NoError(t, err)
	first, err := repo.ListRecords(ctx)
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, IngestRequest{Payload: payload})
	require.NoError(t, err)
	second, err := repo.ListRecords(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 0, lookup.calls)
}

func TestIngest_CancelledClassificationPersistsNothing(t *testing.T) {
	svc, repo, _ := newTestIngestService(&stubLookup{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, IngestRequest{Payload: []byte(`[{"accountId": 1, "address": "a"}]`)})
	require.ErrorIs(t, err, context.Canceled)

	recs, err := repo.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEnqueue(t *testing.T) {
	queue := &memQueue{}
	svc, _, _ := newTestIngestService(&stubLookup{}, queue)

	resp, err := svc.Enqueue(context.Background(), IngestRequest{Payload: []byte(samplePayload), Source: "a.json"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Items)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.JobID, queue.jobs[0].JobID)
	assert.Equal(t, FormatJSON, queue.jobs[0].Format)

	_, err = svc.Enqueue(context.Background(), IngestRequest{Payload: []byte(`{}`)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, queue.jobs, 1)
}

func TestEnqueue_Disabled(t *testing.T) {
	svc, _, _ := newTestIngestService(&stubLookup{}, nil)
	_, err := svc.Enqueue(context.Background(), IngestRequest{Payload: []byte(`[]`)})
	assert.True(t, errors.Is(err, ErrAsyncDisabled))
}

func TestBackfillClassification(t *testing.T) {
	lookup := &stubLookup{purposes: map[string]string{"office": "Бизнес центр"}}
	svc, repo, _ := newTestIngestService(lookup, nil)
	ctx := context.Background()
	addr := "office"

	_, err := repo.UpsertRecords(ctx, []domain.ConsumptionRecord{{AccountID: 1, Address: &addr}, {AccountID: 2}})
	require.NoError(t, err)

	resp, err := svc.BackfillClassification(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Checked)
	assert.Equal(t, 1, resp.Commercial)
	assert.Equal(t, 1, resp.RecordsAffected)

	rec, err := repo.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.True(t, *rec.IsCommercial)
	assert.EqualValues(t, 1, svc.ClassifierStats().Requests)

	n, err := svc.PurgeClassificationCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// uploadDuringLookup 第一次外部查询时模拟一次并发上传
type uploadDuringLookup struct {
	stubLookup
	repo   *repository.MemoryRecordsRepo
	upload []domain.ConsumptionRecord
	done   bool
}

func (u *uploadDuringLookup) LookupPurpose(ctx context.Context, address string) (classifier.Purpose, error) {
	if !u.done {
		u.done = true
		if _, err := u.repo.UpsertRecords(ctx, u.upload); err != nil {
			return classifier.Purpose{}, err
		}
	}
	return u.stubLookup.LookupPurpose(ctx, address)
}

func TestBackfillClassification_KeepsConcurrentUpload(t *testing.T) {
	repo := repository.NewMemoryRecordsRepo()
	ctx := context.Background()
	office, home, shop, moved := "office", "home", "shop", "new place"

	_, err := repo.UpsertRecords(ctx, []domain.ConsumptionRecord{
		{AccountID: 1, Address: &office},
		{AccountID: 2, Address: &home},
		{AccountID: 3, Address: &shop},
	})
	require.NoError(t, err)

	lookup := &uploadDuringLookup{
		stubLookup: stubLookup{purposes: map[string]string{"office": "Бизнес центр", "shop": "Магазин"}},
		repo:       repo,
		upload: []domain.ConsumptionRecord{
			{AccountID: 1, Address: &office, Consumption: flatMonths(999)},
			{AccountID: 3, Address: &moved, Consumption: flatMonths(50)},
		},
	}
	cls := classifier.NewClassifier(lookup, nil, nil, nil, zap.NewNop())
	svc := NewIngestService(repo, cls, nil, nil, zap.NewNop())

	resp, err := svc.BackfillClassification(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Checked)
	assert.Equal(t, 2, resp.RecordsAffected)

	rec, err := repo.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 999.0*12, rec.AnnualTotal())
	require.NotNil(t, rec.IsCommercial)
	assert.True(t, *rec.IsCommercial)

	rec, err = repo.GetRecord(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rec.IsCommercial)
	assert.False(t, *rec.IsCommercial)

	// 地址已变的记录保持未分类，留给下一次回填
	rec, err = repo.GetRecord(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, rec.IsCommercial)
	assert.Equal(t, "new place", rec.AddressValue())
	assert.Equal(t, 50.0*12, rec.AnnualTotal())
}

func TestBackfillClassification_Disabled(t *testing.T) {
	svc := NewIngestService(repository.NewMemoryRecordsRepo(), nil, nil, nil, zap.NewNop())
	_, err := svc.BackfillClassification(context.Background())
	assert.ErrorIs(t, err, ErrClassifierDisabled)
	assert.Equal(t, classifier.Stats{}, svc.ClassifierStats())
}

func TestStreamJobQueue_Enqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	q := NewStreamJobQueue(client, "energo:ingest:jobs")
	id, err := q.Enqueue(ctx, IngestJob{JobID: "job-1", Format: FormatJSON, Payload: []byte(`[]`), EnqueuedAt: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, "energo:ingest:jobs", "g"))
	_, err = q.Enqueue(ctx, IngestJob{JobID: "job-2", Payload: []byte(`[{"accountId":1}]`)})
	require.NoError(t, err)

	msgs, err := rediscommon.ReadFromStream(ctx, client, "energo:ingest:jobs", "g", "c", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	var job IngestJob
	require.NoError(t, rediscommon.DecodeJSONMessage(msgs[1], &job))
	assert.Equal(t, "job-2", job.JobID)
	assert.JSONEq(t, `[{"accountId":1}]`, string(job.Payload))
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("users.XLSX", ""))
	assert.Equal(t, FormatXLSX, DetectFormat("", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Equal(t, FormatJSON, DetectFormat("users.json", "application/json"))
	assert.Equal(t, FormatJSON, DetectFormat("", ""))
}
