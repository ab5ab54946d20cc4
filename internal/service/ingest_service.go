package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/metrics"
	"github.com/VaTka/wakame/internal/repository"
	"go.uber.org/zap"
)

// LatestCache 最新读数缓存（可选）
type LatestCache interface {
	Put(ctx context.Context, r domain.Reading) error
	Get(ctx context.Context, process domain.Process) (*domain.Reading, error)
}

// IngestRequest 入库请求，字段均可缺省，但 raw 与 weight 至少提供一个
type IngestRequest struct {
	Raw     *string  `json:"raw"`
	Weight  *float64 `json:"weight"`
	Unit    *string  `json:"unit"`
	Status  *string  `json:"status"`
	Source  *string  `json:"source"`
	Process *string  `json:"process"`
	Stable  *bool    `json:"stable"`
}

// IngestService 唯一的写入路径：校验、规整、追加、更新缓存
type IngestService struct {
	log        repository.ReadingLog
	cache      LatestCache
	normalizer domain.Normalizer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewIngestService cache 与 m 可为 nil
func NewIngestService(log repository.ReadingLog, cache LatestCache, normalizer domain.Normalizer, m *metrics.Metrics, logger *zap.Logger) *IngestService {
	return &IngestService{
		log:        log,
		cache:      cache,
		normalizer: normalizer,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest 写入一条读数；既无 raw 也无有限 weight 时返回 ErrInvalidInput，不写库。
// 错误读数（无重量或超出范围）照常写入，is_error=true。
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (domain.Reading, error) {
	in := domain.IngestInput{
		Raw:    req.Raw,
		Weight: req.Weight,
		Unit:   req.Unit,
		Status: req.Status,
		Source: req.Source,
		Stable: req.Stable,
	}
	if req.Process != nil && strings.TrimSpace(*req.Process) != "" {
		p, err := domain.ParseProcess(*req.Process)
		if err != nil {
			s.metrics.IngestRejected("unknown_process")
			return domain.Reading{}, err
		}
		in.Process = p
	}
	if !in.HasPayload() {
		s.metrics.IngestRejected("missing_payload")
		return domain.Reading{}, fmt.Errorf("%w: raw or weight required", domain.ErrInvalidInput)
	}

	reading := s.normalizer.Normalize(in, s.now())
	stored, err := s.log.Append(ctx, reading)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("failed to append reading: %w", err)
	}
	s.metrics.Ingested(string(stored.Process), stored.IsError)

	if s.cache != nil {
		if err := s.cache.Put(ctx, stored); err != nil {
			s.logger.Warn("Failed to update latest cache",
				zap.Int64("id", stored.ID),
				zap.String("process", string(stored.Process)),
				zap.Error(err),
			)
		}
	}

	if stored.IsError {
		s.logger.Debug("Stored error reading",
			zap.Int64("id", stored.ID),
			zap.String("process", string(stored.Process)),
			zap.String("status", stored.Status),
		)
	}
	return stored, nil
}
