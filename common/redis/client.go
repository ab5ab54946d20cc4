package redis

import (
	"context"

	"github.com/VaTka/wakame/common/config"

	"github.com/go-redis/redis/v8"
)

// Client go-redis 客户端别名，调用方无需直接引入 go-redis
type Client = redis.Client

// NewRedisClient 根据配置创建 Redis 客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping 探测 Redis 连接
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close 关闭客户端（允许 nil）
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
