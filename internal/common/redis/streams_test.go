package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	JobID string `json:"job_id"`
	Size  int    `json:"size"`
}

func TestStreams_PublishReadAck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "jobs", "workers"))
	// 组已存在时不报错
	require.NoError(t, CreateConsumerGroup(ctx, client, "jobs", "workers"))

	id, err := PublishJSONToStream(ctx, client, "jobs", testJob{JobID: "j-1", Size: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadFromStream(ctx, client, "jobs", "workers", "w-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var job testJob
	require.NoError(t, DecodeJSONMessage(msgs[0], &job))
	assert.Equal(t, "j-1", job.JobID)
	assert.Equal(t, 3, job.Size)

	require.NoError(t, Ack(ctx, client, "jobs", "workers", msgs[0].ID))

	pending, err := client.XPending(ctx, "jobs", "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestStreams_ReadPending(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "jobs", "workers"))
	_, err := PublishJSONToStream(ctx, client, "jobs", testJob{JobID: "j-1"})
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "jobs", "workers", "w-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// 未 Ack：重启后仍能读回
	pending, err := ReadPendingFromStream(ctx, client, "jobs", "workers", "w-1", "0", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msgs[0].ID, pending[0].ID)

	require.NoError(t, Ack(ctx, client, "jobs", "workers", msgs[0].ID))
	pending, err = ReadPendingFromStream(ctx, client, "jobs", "workers", "w-1", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStreams_ReadPendingPages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "jobs", "workers"))
	for _, id := range []string{"j-1", "j-2", "j-3"} {
		_, err := PublishJSONToStream(ctx, client, "jobs", testJob{JobID: id})
		require.NoError(t, err)
	}
	msgs, err := ReadFromStream(ctx, client, "jobs", "workers", "w-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	var seen []string
	after := "0"
	for {
		page, err := ReadPendingFromStream(ctx, client, "jobs", "workers", "w-1", after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		assert.LessOrEqual(t, len(page), 2)
		for _, m := range page {
			seen = append(seen, m.ID)
		}
		after = page[len(page)-1].ID
	}
	assert.Equal(t, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}, seen)
}

func TestDecodeJSONMessage_MissingData(t *testing.T) {
	err := DecodeJSONMessage(StreamMessage{ID: "1-0", Values: map[string]interface{}{}}, &testJob{})
	assert.Error(t, err)
}
