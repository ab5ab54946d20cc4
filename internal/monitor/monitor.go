package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"go.uber.org/zap"
)

// Source 监视器的数据来源（APIClient）
type Source interface {
	Latest(ctx context.Context, process domain.Process) (*domain.Reading, error)
	Recent(ctx context.Context, process domain.Process, limit int) ([]domain.Reading, error)
	Aggregates(ctx context.Context, process domain.Process, spec domain.WindowSpec) ([]domain.Bucket, error)
}

// Monitor 实时视图：按当前粒度定时刷新最新值与序列，并做公差判定
type Monitor struct {
	src    Source
	table  domain.GranularityTable
	view   *View
	sched  *Scheduler
	logger *zap.Logger
	now    func() time.Time
}

func New(src Source, table domain.GranularityTable, tol domain.ToleranceSpec, logger *zap.Logger) *Monitor {
	m := &Monitor{
		src:    src,
		table:  table,
		view:   NewView(tol),
		logger: logger,
		now:    time.Now,
	}
	m.sched = NewScheduler(m.Refresh)
	return m
}

// Switch 切换工序或粒度：重置序列，停止旧的刷新循环并立即开始新的循环
func (m *Monitor) Switch(ctx context.Context, process domain.Process, granularity string) error {
	spec, ok := m.table.Lookup(granularity)
	if !ok {
		return fmt.Errorf("%w: unknown granularity %q", domain.ErrInvalidInput, granularity)
	}
	m.view.Reset(process, spec.Granularity)
	m.sched.Switch(ctx, process, spec)
	_, _, generation := m.sched.Active()

	m.logger.Info("Monitor switched",
		zap.String("process", string(process)),
		zap.String("granularity", string(spec.Granularity)),
		zap.Uint64("generation", generation),
		zap.Int("window_min", spec.WindowMinutes),
		zap.Int("step_min", spec.StepMinutes),
		zap.Duration("refresh", spec.Refresh),
	)
	return nil
}

// SetTolerance 更新目标值与偏差（百分比）
func (m *Monitor) SetTolerance(tol domain.ToleranceSpec) {
	m.view.SetTolerance(tol)
}

// Snapshot 当前显示状态
func (m *Monitor) Snapshot() State {
	return m.view.Snapshot()
}

// Stop 停止刷新并等待进行中的请求
func (m *Monitor) Stop() {
	m.sched.Stop()
	m.sched.Wait()
}

// Refresh 一次刷新。读取失败只记录日志，显示状态保持不变
func (m *Monitor) Refresh(ctx context.Context, process domain.Process, spec domain.WindowSpec) {
	now := m.now()

	latest, err := m.src.Latest(ctx, process)
	if err != nil {
		m.logger.Warn("Failed to fetch latest reading", zap.String("process", string(process)), zap.Error(err))
	}
	m.view.ApplyLatest(latest, err, now)

	series := m.fetchSeries(ctx, process, spec, now)
	m.view.ApplySeries(series, now)

	m.logState(m.view.Snapshot())
}

func (m *Monitor) fetchSeries(ctx context.Context, process domain.Process, spec domain.WindowSpec, now time.Time) Series {
	if spec.PointSamples {
		recent, err := m.src.Recent(ctx, process, spec.FallbackLimit)
		if err != nil {
			m.logger.Warn("Failed to fetch recent readings", zap.String("process", string(process)), zap.Error(err))
			return Series{Source: domain.SourcePoints}
		}
		return Series{Source: domain.SourcePoints, Points: domain.PointSeries(recent, now, spec.WindowMinutes)}
	}

	buckets, err := m.src.Aggregates(ctx, process, spec)
	if err != nil {
		m.logger.Warn("Failed to fetch aggregates, falling back", zap.String("process", string(process)), zap.Error(err))
		buckets = nil
	}

	var recent []domain.Reading
	if len(buckets) == 0 {
		recent, err = m.src.Recent(ctx, process, spec.FallbackLimit)
		if err != nil {
			m.logger.Warn("Failed to fetch recent readings", zap.String("process", string(process)), zap.Error(err))
		}
	}
	resolved, source := domain.ResolveBuckets(buckets, recent, now, spec.WindowMinutes, spec.StepMinutes)
	return Series{Source: source, Buckets: resolved}
}

func (m *Monitor) logState(st State) {
	fields := []zap.Field{
		zap.String("process", string(st.Process)),
		zap.String("granularity", string(st.Granularity)),
		zap.String("source", string(st.Series.Source)),
		zap.Int("points", st.Series.Len()),
	}
	if st.Latest != nil && st.Latest.Weight != nil {
		fields = append(fields,
			zap.Float64("latest", *st.Latest.Weight),
			zap.Time("latest_ts", st.Latest.Timestamp),
		)
	}
	if st.Evaluation != nil {
		fields = append(fields,
			zap.String("classification", string(st.Evaluation.Classification)),
			zap.Float64("percent_diff", st.Evaluation.PercentDiff),
			zap.Float64("upper", st.Evaluation.Upper),
			zap.Float64("lower", st.Evaluation.Lower),
		)
		if st.Evaluation.OutOfRange() {
			m.logger.Warn("Latest reading out of tolerance", fields...)
			return
		}
	}
	m.logger.Info("Monitor refreshed", fields...)
}
