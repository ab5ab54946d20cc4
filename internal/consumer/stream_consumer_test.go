package consumer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	rediscommon "github.com/VaTka/wakame/common/redis"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/metrics"
	"github.com/VaTka/wakame/internal/repository"
	"github.com/VaTka/wakame/internal/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testOpts = StreamOptions{Stream: "scale:raw", Group: "wakame-api", Consumer: "c1", Block: 50 * time.Millisecond}

func setupRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newIngest(log repository.ReadingLog, m *metrics.Metrics) *service.IngestService {
	n := domain.Normalizer{Bounds: domain.ErrorBounds{Min: 0, Max: 50000}, DefaultProcess: domain.ProcessMolding}
	return service.NewIngestService(log, nil, n, m, zap.NewNop())
}

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, service.IngestRequest) (domain.Reading, error) {
	return domain.Reading{}, errors.New("db down")
}

// flakyIngester 前 failures 次调用返回存储错误，之后委托给 next
type flakyIngester struct {
	next     Ingester
	failures int
	calls    int
}

func (f *flakyIngester) Ingest(ctx context.Context, req service.IngestRequest) (domain.Reading, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.Reading{}, errors.New("connection reset by peer")
	}
	return f.next.Ingest(ctx, req)
}

func TestPoll_IngestsAndAcks(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	log := repository.NewMemoryReadingLog()
	m := metrics.New()
	c := NewStreamConsumer(client, newIngest(log, m), testOpts, m, zap.NewNop())
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testOpts.Stream, testOpts.Group))

	for _, values := range []map[string]interface{}{
		{"raw": "+23.4 G S", "process": "packaging", "source": "line-2"},
		{"raw": "   ", "process": "molding"},
		{"raw": "+1.0 G S", "process": "welding"},
		{"weight": 12.5},
	} {
		_, err := rediscommon.PublishToStream(ctx, client, testOpts.Stream, values)
		require.NoError(t, err)
	}

	n, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := log.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 12.5, *all[0].Weight)
	assert.Equal(t, domain.ProcessMolding, all[0].Process)
	assert.Equal(t, "line-2", all[1].Source)
	assert.Equal(t, domain.ProcessPackaging, all[1].Process)

	pending, err := client.XPending(ctx, testOpts.Stream, testOpts.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	expected := `
# HELP wakame_stream_messages_total Raw-line stream messages handled by outcome.
# TYPE wakame_stream_messages_total counter
wakame_stream_messages_total{status="ok"} 2
wakame_stream_messages_total{status="rejected"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "wakame_stream_messages_total"))
}

func TestPoll_StoreErrorLeavesPending(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	c := NewStreamConsumer(client, failingIngester{}, testOpts, nil, zap.NewNop())
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testOpts.Stream, testOpts.Group))

	_, err := rediscommon.PublishToStream(ctx, client, testOpts.Stream, map[string]interface{}{"raw": "+5.0 G S"})
	require.NoError(t, err)

	n, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pending, err := client.XPending(ctx, testOpts.Stream, testOpts.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestPoll_RetriesPendingAfterStoreError(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	log := repository.NewMemoryReadingLog()
	m := metrics.New()
	ingester := &flakyIngester{next: newIngest(log, m), failures: 1}
	c := NewStreamConsumer(client, ingester, testOpts, m, zap.NewNop())
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testOpts.Stream, testOpts.Group))

	_, err := rediscommon.PublishToStream(ctx, client, testOpts.Stream, map[string]interface{}{"raw": "+5.0 G S"})
	require.NoError(t, err)

	n, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 第二轮没有新消息，待确认的那条被重新投递
	n, err = c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, ingester.calls)

	latest, err := log.Latest(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 5.0, *latest.Weight)

	pending, err := client.XPending(ctx, testOpts.Stream, testOpts.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	expected := `
# HELP wakame_stream_messages_total Raw-line stream messages handled by outcome.
# TYPE wakame_stream_messages_total counter
wakame_stream_messages_total{status="failed"} 1
wakame_stream_messages_total{status="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "wakame_stream_messages_total"))
}

func TestPoll_PendingCursorAdvancesPastFullBatch(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	opts := testOpts
	opts.BatchSize = 2
	c := NewStreamConsumer(client, failingIngester{}, opts, nil, zap.NewNop())
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, opts.Stream, opts.Group))

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := rediscommon.PublishToStream(ctx, client, opts.Stream, map[string]interface{}{"raw": "+5.0 G S"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// 两轮把三条都投递给 c1 且均失败
	_, err := c.Poll(ctx)
	require.NoError(t, err)
	_, err = c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[1], c.pendingCursor)

	// 续读剩余的一条后游标回到开头
	_, err = c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", c.pendingCursor)

	pending, err := client.XPending(ctx, opts.Stream, opts.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending.Count)
}

func TestPoll_EmptyStream(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	c := NewStreamConsumer(client, failingIngester{}, testOpts, nil, zap.NewNop())
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testOpts.Stream, testOpts.Group))

	n, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStart_StopsOnCancel(t *testing.T) {
	client := setupRedis(t)
	log := repository.NewMemoryReadingLog()
	c := NewStreamConsumer(client, newIngest(log, nil), testOpts, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	_, err := rediscommon.PublishToStream(context.Background(), client, testOpts.Stream, map[string]interface{}{"raw": "+7.5 G S"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		latest, err := log.Latest(context.Background(), "")
		return err == nil && latest != nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestRequestFromValues(t *testing.T) {
	req := RequestFromValues(map[string]string{
		"raw":     "+1.0 G",
		"weight":  "abc",
		"process": " packaging ",
		"stable":  "true",
		"unit":    "",
	})
	require.NotNil(t, req.Raw)
	assert.Nil(t, req.Weight)
	assert.Nil(t, req.Unit)
	assert.Equal(t, "packaging", *req.Process)
	assert.True(t, *req.Stable)
}
