package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VaTka/wakame/internal/cache"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/metrics"
	"github.com/VaTka/wakame/internal/repository"
	"go.uber.org/zap"
)

// AggregateQuery 聚合查询参数；granularity 优先，其次 windowMin/stepMin，最后工序默认值
type AggregateQuery struct {
	Process     string
	Granularity string
	WindowMin   int
	StepMin     int
}

// AggregateResult 分桶结果并回显实际使用的窗口参数
type AggregateResult struct {
	Process   domain.Process      `json:"process"`
	Data      []domain.Bucket     `json:"data"`
	WindowMin int                 `json:"windowMin"`
	StepMin   int                 `json:"stepMin"`
	Source    domain.SeriesSource `json:"source"`
}

// QueryService 读路径：最近读数、最新读数、存储侧聚合
type QueryService struct {
	log            repository.ReadingLog
	cache          LatestCache
	table          domain.GranularityTable
	defaultProcess domain.Process
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

func NewQueryService(log repository.ReadingLog, cache LatestCache, table domain.GranularityTable, defaultProcess domain.Process, m *metrics.Metrics, logger *zap.Logger) *QueryService {
	return &QueryService{
		log:            log,
		cache:          cache,
		table:          table,
		defaultProcess: defaultProcess,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
}

// optionalProcess 空字符串表示全部工序
func optionalProcess(s string) (domain.Process, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return domain.ParseProcess(s)
}

// requiredProcess 空字符串使用默认工序
func requiredProcess(s string, def domain.Process) (domain.Process, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return domain.ParseProcess(s)
}

// ListRecent 最新在前，limit 限制在 [1, 5000]
func (s *QueryService) ListRecent(ctx context.Context, process string, limit int) ([]domain.Reading, error) {
	p, err := optionalProcess(process)
	if err != nil {
		return nil, err
	}
	readings, err := s.log.ListRecent(ctx, p, domain.ClampListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

// Latest 先查缓存，未命中或缓存异常时回读日志；没有读数时返回 nil
func (s *QueryService) Latest(ctx context.Context, process string) (*domain.Reading, error) {
	p, err := optionalProcess(process)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		r, err := s.cache.Get(ctx, p)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Latest cache read failed, falling back to log", zap.String("process", string(p)), zap.Error(err))
		}
	}

	r, err := s.log.Latest(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return r, nil
}

// Aggregates 存储侧分桶
func (s *QueryService) Aggregates(ctx context.Context, q AggregateQuery) (*AggregateResult, error) {
	p, err := requiredProcess(q.Process, s.defaultProcess)
	if err != nil {
		return nil, err
	}
	ew := s.table.ResolveExportWindow(p, q.Granularity, q.WindowMin, q.StepMin)

	buckets, err := s.log.Aggregate(ctx, p, s.now(), ew.WindowMinutes, ew.StepMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate: %w", err)
	}
	s.metrics.AggregateServed(string(domain.SourceStore))

	return &AggregateResult{
		Process:   p,
		Data:      buckets,
		WindowMin: ew.WindowMinutes,
		StepMin:   ew.StepMinutes,
		Source:    domain.SourceStore,
	}, nil
}
