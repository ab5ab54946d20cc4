package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	rediscommon "github.com/VaTka/wakame/common/redis"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/metrics"
	"github.com/VaTka/wakame/internal/service"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Ingester 入库入口（service.IngestService）
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (domain.Reading, error)
}

// StreamOptions 消费者组参数
type StreamOptions struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration
}

// StreamConsumer 从 Redis Stream 读取网关写入的原始行并入库
type StreamConsumer struct {
	redisClient *redis.Client
	ingester    Ingester
	opts        StreamOptions
	metrics     *metrics.Metrics
	logger      *zap.Logger

	// 待确认列表的读取游标，读满一批后续读，否则回到 "0"
	pendingCursor string
}

func NewStreamConsumer(redisClient *redis.Client, ingester Ingester, opts StreamOptions, m *metrics.Metrics, logger *zap.Logger) *StreamConsumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	// Block 为 0 时 XREADGROUP 会无限阻塞，ctx 取消后无法退出
	if opts.Block <= 0 {
		opts.Block = 2 * time.Second
	}
	return &StreamConsumer{
		redisClient:   redisClient,
		ingester:      ingester,
		opts:          opts,
		metrics:       m,
		logger:        logger,
		pendingCursor: "0",
	}
}

// Start 创建消费者组并循环消费，直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.opts.Stream, c.opts.Group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", c.opts.Stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.opts.Stream),
		zap.String("consumer_group", c.opts.Group),
		zap.String("consumer_name", c.opts.Consumer),
	)

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume stream",
				zap.String("stream", c.opts.Stream),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second
	}
}

// Poll 先重试本消费者未 ACK 的消息，再读取一批新消息，返回处理条数
// 无效消息（ErrInvalidInput）记录后照常 ACK，避免反复投递；存储错误不 ACK，下次 Poll 重试
func (c *StreamConsumer) Poll(ctx context.Context) (int, error) {
	pending, err := rediscommon.ReadPendingFromStream(ctx, c.redisClient, c.opts.Stream, c.opts.Group, c.opts.Consumer, c.pendingCursor, c.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending from stream %s: %w", c.opts.Stream, err)
	}
	if int64(len(pending)) >= c.opts.BatchSize {
		c.pendingCursor = pending[len(pending)-1].ID
	} else {
		c.pendingCursor = "0"
	}
	if len(pending) > 0 {
		c.logger.Info("Retrying pending stream messages",
			zap.String("stream", c.opts.Stream),
			zap.Int("count", len(pending)),
		)
	}
	handled := c.handle(ctx, pending)

	messages, err := rediscommon.ReadFromStream(ctx, c.redisClient, c.opts.Stream, c.opts.Group, c.opts.Consumer, c.opts.BatchSize, c.opts.Block)
	if err != nil {
		return handled, fmt.Errorf("failed to read from stream %s: %w", c.opts.Stream, err)
	}
	return handled + c.handle(ctx, messages), nil
}

func (c *StreamConsumer) handle(ctx context.Context, messages []rediscommon.StreamMessage) int {
	handled := 0
	for _, msg := range messages {
		status := "ok"
		if err := c.processMessage(ctx, msg); err != nil {
			if !errors.Is(err, domain.ErrInvalidInput) {
				c.metrics.StreamMessage("failed")
				c.logger.Error("Failed to process message",
					zap.String("stream", msg.Stream),
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				continue
			}
			status = "rejected"
			c.logger.Warn("Rejected stream message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}

		if err := rediscommon.Ack(ctx, c.redisClient, c.opts.Stream, c.opts.Group, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
		}
		c.metrics.StreamMessage(status)
		handled++
	}
	return handled
}

func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	req := RequestFromValues(msg.Values)
	reading, err := c.ingester.Ingest(ctx, req)
	if err != nil {
		return err
	}

	c.logger.Debug("Ingested stream reading",
		zap.String("message_id", msg.ID),
		zap.Int64("id", reading.ID),
		zap.String("process", string(reading.Process)),
		zap.Bool("is_error", reading.IsError),
	)
	return nil
}

// RequestFromValues 将 Stream 字段映射为入库请求，空字段视为缺省
func RequestFromValues(values map[string]string) service.IngestRequest {
	var req service.IngestRequest
	if v, ok := values["raw"]; ok && strings.TrimSpace(v) != "" {
		req.Raw = &v
	}
	if v := strings.TrimSpace(values["weight"]); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.Weight = &f
		}
	}
	req.Unit = optional(values["unit"])
	req.Status = optional(values["status"])
	req.Source = optional(values["source"])
	req.Process = optional(values["process"])
	if v := strings.TrimSpace(values["stable"]); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			req.Stable = &b
		}
	}
	return req
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
