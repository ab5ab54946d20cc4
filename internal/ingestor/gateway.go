package ingestor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	mqttcommon "github.com/VaTka/wakame/common/mqtt"
	rediscommon "github.com/VaTka/wakame/common/redis"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Publisher 写入原始行 Stream
type Publisher interface {
	Publish(ctx context.Context, stream string, values map[string]interface{}) (string, error)
}

// Subscriber MQTT 订阅端（common/mqtt.Client）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// RedisPublisher 基于 XADD 的 Publisher
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	return rediscommon.PublishToStream(ctx, p.client, stream, values)
}

// Options 网关参数
type Options struct {
	Topic  string // 如 scale/+/raw
	QoS    byte
	Stream string
	Source string // 写入读数的 source
}

// Gateway 秤网关：订阅设备行，逐行写入 Redis Stream，由 API 消费入库
type Gateway struct {
	sub    Subscriber
	pub    Publisher
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewGateway(sub Subscriber, pub Publisher, opts Options, logger *zap.Logger) *Gateway {
	if opts.Source == "" {
		opts.Source = domain.DefaultSource
	}
	return &Gateway{sub: sub, pub: pub, opts: opts, logger: logger, now: time.Now}
}

// Start 订阅主题并阻塞到 ctx 取消
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.sub.Subscribe(g.opts.Topic, g.opts.QoS, g.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", g.opts.Topic, err)
	}
	g.logger.Info("Scale gateway started",
		zap.String("topic", g.opts.Topic),
		zap.String("stream", g.opts.Stream),
		zap.String("source", g.opts.Source),
	)
	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (g *Gateway) Stop() {
	if err := g.sub.Unsubscribe(g.opts.Topic); err != nil {
		g.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	g.logger.Info("Scale gateway stopped")
}

// HandleMessage 一条 MQTT 消息可含多行；每行去除首尾空白，空行丢弃
func (g *Gateway) HandleMessage(topic string, payload []byte) error {
	process, err := ProcessFromTopic(topic)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sc := bufio.NewScanner(bytes.NewReader(payload))
	published := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		values := map[string]interface{}{
			"raw":         line,
			"source":      g.opts.Source,
			"received_at": g.now().UTC().Unix(),
		}
		if process != "" {
			values["process"] = string(process)
		}
		id, err := g.pub.Publish(ctx, g.opts.Stream, values)
		if err != nil {
			return fmt.Errorf("failed to publish to stream %s: %w", g.opts.Stream, err)
		}
		published++
		g.logger.Debug("Published scale line",
			zap.String("topic", topic),
			zap.String("stream_id", id),
			zap.String("raw", line),
		)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	if published == 0 {
		g.logger.Debug("Dropped empty payload", zap.String("topic", topic))
	}
	return nil
}

// ProcessFromTopic 主题格式 scale/<process>/raw；没有工序段时返回空（由 API 使用默认工序）
func ProcessFromTopic(topic string) (domain.Process, error) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) < 3 {
		return "", nil
	}
	return domain.ParseProcess(parts[1])
}
