package consumer

import (
	"context"
	"testing"
	"time"

	"energo-data/internal/classifier"
	mqttcommon "energo-data/internal/common/mqtt"
	"energo-data/internal/domain"
	"energo-data/internal/repository"
	"energo-data/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	subscribed   chan mqttcommon.MessageHandler
	unsubscribed chan string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		subscribed:   make(chan mqttcommon.MessageHandler, 1),
		unsubscribed: make(chan string, 1),
	}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.subscribed <- handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubscribed <- topics[0]
	return nil
}

type staticLookup struct{ label string }

func (s staticLookup) LookupPurpose(ctx context.Context, address string) (classifier.Purpose, error) {
	return classifier.Purpose{Label: s.label, Found: true}, nil
}

func TestBackfillTrigger_ClassifiesOnMessage(t *testing.T) {
	repo := repository.NewMemoryRecordsRepo()
	addr := "Тверская 7"
	_, err := repo.UpsertRecords(context.Background(), []domain.ConsumptionRecord{{AccountID: 1, Address: &addr}})
	require.NoError(t, err)

	cls := classifier.NewClassifier(staticLookup{label: "Кафе"}, nil, nil, nil, zap.NewNop())
	svc := service.NewIngestService(repo, cls, nil, nil, zap.NewNop())
	sub := newFakeSubscriber()
	trigger := NewBackfillTrigger(sub, "energo/classify/backfill", svc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- trigger.Start(ctx) }()

	var handler mqttcommon.MessageHandler
	select {
	case handler = <-sub.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not subscribe")
	}
	require.NoError(t, handler("energo/classify/backfill", []byte(`{}`)))

	rec, err := repo.GetRecord(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec.IsCommercial)
	assert.True(t, *rec.IsCommercial)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "energo/classify/backfill", <-sub.unsubscribed)
}

func TestBackfillTrigger_RequiresTopic(t *testing.T) {
	trigger := NewBackfillTrigger(newFakeSubscriber(), "", nil, zap.NewNop())
	assert.Error(t, trigger.Start(context.Background()))
}
