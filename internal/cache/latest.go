package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 最小键值接口，便于测试替换
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

const (
	latestKeyPrefix = "scale:latest:"
	allProcesses    = "all"
)

// LatestCache 每个工序最新读数的写穿缓存（scale:latest:<process>）
// 同时维护不区分工序的 scale:latest:all
type LatestCache struct {
	kv  KV
	ttl time.Duration
}

// NewLatestCache ttl 为 0 表示不过期
func NewLatestCache(kv KV, ttl time.Duration) *LatestCache {
	return &LatestCache{kv: kv, ttl: ttl}
}

// LatestKey 缓存键
func LatestKey(process domain.Process) string {
	if process == "" {
		return latestKeyPrefix + allProcesses
	}
	return latestKeyPrefix + string(process)
}

// Put 写入刚入库的读数
func (c *LatestCache) Put(ctx context.Context, r domain.Reading) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	for _, key := range []string{LatestKey(r.Process), LatestKey("")} {
		if err := c.kv.Set(ctx, key, string(b), c.ttl); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// Get 读取缓存的最新读数，未命中返回 ErrMiss
func (c *LatestCache) Get(ctx context.Context, process domain.Process) (*domain.Reading, error) {
	val, err := c.kv.Get(ctx, LatestKey(process))
	if err != nil {
		return nil, err
	}
	var r domain.Reading
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("failed to decode cached reading: %w", err)
	}
	return &r, nil
}
