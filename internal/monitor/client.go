package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIClient wakame-api 读接口客户端，所有响应在这里规整为 domain 类型
type APIClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewAPIClient(baseURL string, timeout time.Duration, logger *zap.Logger) *APIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Accept", "application/json")

	return &APIClient{httpClient: client, logger: logger}
}

// Latest 没有读数时返回 nil
func (c *APIClient) Latest(ctx context.Context, process domain.Process) (*domain.Reading, error) {
	payload, err := c.get(ctx, "/api/measurements/latest", map[string]string{"process": string(process)})
	if err != nil {
		return nil, err
	}
	return decodeReading(payload)
}

// Recent 最新在前
func (c *APIClient) Recent(ctx context.Context, process domain.Process, limit int) ([]domain.Reading, error) {
	payload, err := c.get(ctx, "/api/measurements", map[string]string{
		"process": string(process),
		"limit":   strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return decodeReadings(payload)
}

// Aggregates 按 WindowSpec 请求存储侧聚合
func (c *APIClient) Aggregates(ctx context.Context, process domain.Process, spec domain.WindowSpec) ([]domain.Bucket, error) {
	payload, err := c.get(ctx, "/api/aggregates", map[string]string{
		"process":     string(process),
		"granularity": string(spec.Granularity),
		"windowMin":   strconv.Itoa(spec.WindowMinutes),
		"stepMin":     strconv.Itoa(spec.StepMinutes),
	})
	if err != nil {
		return nil, err
	}
	return decodeBuckets(payload)
}

func (c *APIClient) get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		c.logger.Debug("API call failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	if resp.IsError() {
		if _, perr := unwrapPayload(resp.Body()); perr != nil {
			return nil, fmt.Errorf("%s: status %d: %w", path, resp.StatusCode(), perr)
		}
		return nil, fmt.Errorf("%s: status %d", path, resp.StatusCode())
	}

	payload, err := unwrapPayload(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return payload, nil
}
