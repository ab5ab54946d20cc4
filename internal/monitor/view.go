package monitor

import (
	"sync"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

// Series 图表数据：桶平均或按更新的原始样本
type Series struct {
	Source  domain.SeriesSource
	Buckets []domain.Bucket
	Points  []domain.Point
}

// Len 数据点数
func (s Series) Len() int {
	if s.Source == domain.SourcePoints {
		return len(s.Points)
	}
	return len(s.Buckets)
}

// State 某一时刻的显示状态
type State struct {
	Process     domain.Process
	Granularity domain.Granularity
	Latest      *domain.Reading
	Series      Series
	Tolerance   domain.ToleranceSpec
	Evaluation  *domain.ToleranceResult
	UpdatedAt   time.Time
}

// View 当前显示状态。
// 读取失败或最新读数不可用（null/0/非有限值）时保留上一次的最新值；
// 刷新得到空序列时保留上一次的序列；切换工序或粒度时清空序列。
type View struct {
	mu    sync.RWMutex
	state State
}

func NewView(tol domain.ToleranceSpec) *View {
	return &View{state: State{Tolerance: tol}}
}

// Reset 切换工序/粒度；最新值跨粒度保留，工序变化时清空
func (v *View) Reset(process domain.Process, g domain.Granularity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Process != process {
		v.state.Latest = nil
		v.state.Evaluation = nil
	}
	v.state.Process = process
	v.state.Granularity = g
	v.state.Series = Series{}
}

// SetTolerance 更新目标值与偏差并重新判定
func (v *View) SetTolerance(tol domain.ToleranceSpec) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Tolerance = tol
	v.evaluate()
}

// ApplyLatest 返回是否更新了最新值
func (v *View) ApplyLatest(r *domain.Reading, err error, now time.Time) bool {
	if err != nil || !domain.UsableLatest(r) {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	latest := *r
	v.state.Latest = &latest
	v.state.UpdatedAt = now
	v.evaluate()
	return true
}

// ApplySeries 返回是否更新了序列
func (v *View) ApplySeries(s Series, now time.Time) bool {
	if s.Len() == 0 {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Series = s
	v.state.UpdatedAt = now
	return true
}

// Snapshot 当前状态的副本
func (v *View) Snapshot() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	st := v.state
	st.Series.Buckets = append([]domain.Bucket(nil), v.state.Series.Buckets...)
	st.Series.Points = append([]domain.Point(nil), v.state.Series.Points...)
	return st
}

func (v *View) evaluate() {
	if v.state.Latest == nil {
		v.state.Evaluation = nil
		return
	}
	v.state.Evaluation = domain.Evaluate(v.state.Latest.Weight, v.state.Tolerance)
}
