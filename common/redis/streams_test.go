package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStreams_PublishReadAck(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "scale:raw", "wakame-api"))
	// 重复创建不报错
	require.NoError(t, CreateConsumerGroup(ctx, client, "scale:raw", "wakame-api"))

	id, err := PublishToStream(ctx, client, "scale:raw", map[string]interface{}{
		"raw":     "+23.4 G S",
		"process": "molding",
		"seq":     7,
		"weight":  23.4,
		"stable":  true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := ReadFromStream(ctx, client, "scale:raw", "wakame-api", "c1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "+23.4 G S", msgs[0].Values["raw"])
	assert.Equal(t, "7", msgs[0].Values["seq"])
	assert.Equal(t, "23.4", msgs[0].Values["weight"])
	assert.Equal(t, "true", msgs[0].Values["stable"])

	require.NoError(t, Ack(ctx, client, "scale:raw", "wakame-api", id))
	pending, err := client.XPending(ctx, "scale:raw", "wakame-api").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestReadPendingFromStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "scale:raw", "wakame-api"))
	first, err := PublishToStream(ctx, client, "scale:raw", map[string]interface{}{"raw": "+1.0 G S"})
	require.NoError(t, err)
	second, err := PublishToStream(ctx, client, "scale:raw", map[string]interface{}{"raw": "+2.0 G S"})
	require.NoError(t, err)

	// 未读取过的消息不在待确认列表中
	pending, err := ReadPendingFromStream(ctx, client, "scale:raw", "wakame-api", "c1", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	msgs, err := ReadFromStream(ctx, client, "scale:raw", "wakame-api", "c1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NoError(t, Ack(ctx, client, "scale:raw", "wakame-api", first))

	pending, err = ReadPendingFromStream(ctx, client, "scale:raw", "wakame-api", "c1", "0", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)
	assert.Equal(t, "+2.0 G S", pending[0].Values["raw"])

	// 其他消费者的待确认消息不可见
	pending, err = ReadPendingFromStream(ctx, client, "scale:raw", "wakame-api", "c2", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = ReadPendingFromStream(ctx, client, "scale:raw", "wakame-api", "c1", second, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
