package domain

import (
	"sort"
	"time"
)

// SeriesSource 序列数据来源
type SeriesSource string

const (
	SourceStore    SeriesSource = "store"           // 存储侧聚合
	SourceFallback SeriesSource = "fallback:recent" // 基于最近原始读数的本地重算
	SourcePoints   SeriesSource = "points"          // 按更新显示的原始样本
)

// Window 以 now 为终点的聚合窗口
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow 计算 [now - windowMinutes, now]，窗口小于 1 分钟按 1 分钟处理
func NewWindow(now time.Time, windowMinutes int) Window {
	now = now.UTC()
	return Window{
		From: now.Add(-time.Duration(clampMinutes(windowMinutes)) * time.Minute),
		To:   now,
	}
}

// Contains 两端闭区间
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.From) && !ts.After(w.To)
}

// BucketKey 读数所在桶的起点（Unix 秒）：不超过时间戳的最大 stepMinutes*60 的整数倍
func BucketKey(ts time.Time, stepMinutes int) int64 {
	step := int64(clampMinutes(stepMinutes)) * 60
	sec := ts.Unix()
	key := sec - sec%step
	if sec%step < 0 {
		key -= step
	}
	return key
}

type accumulator struct {
	sum   int64 // 0.1 克
	min   float64
	max   float64
	count int
}

// Aggregate 将窗口内的有效读数按纪元对齐的固定桶聚合。
// 结果按桶起点升序，空桶不输出；平均值保留 1 位小数，最小/最大/计数基于原始重量。
// 存储侧 SQL 与本地回退共用这一套规则，同一批读数无论走哪条路径结果一致。
func Aggregate(readings []Reading, now time.Time, windowMinutes, stepMinutes int) []Bucket {
	window := NewWindow(now, windowMinutes)
	acc := make(map[int64]*accumulator)

	for _, r := range readings {
		if !window.Contains(r.Timestamp) || !r.Valid() {
			continue
		}
		w := *r.Weight
		key := BucketKey(r.Timestamp, stepMinutes)
		a, ok := acc[key]
		if !ok {
			acc[key] = &accumulator{sum: Tenths(w), min: w, max: w, count: 1}
			continue
		}
		a.sum += Tenths(w)
		a.count++
		if w < a.min {
			a.min = w
		}
		if w > a.max {
			a.max = w
		}
	}

	keys := make([]int64, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buckets := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		a := acc[k]
		buckets = append(buckets, Bucket{
			Start:     time.Unix(k, 0).UTC(),
			AvgWeight: AvgTenths(a.sum, a.count),
			MinWeight: a.min,
			MaxWeight: a.max,
			Count:     a.count,
		})
	}
	return buckets
}

// ResolveBuckets 回退策略：存储侧结果非空时直接使用，否则对最近的原始读数本地重算。
// 不返回错误，没有数据时返回空序列。
func ResolveBuckets(primary []Bucket, recent []Reading, now time.Time, windowMinutes, stepMinutes int) ([]Bucket, SeriesSource) {
	if len(primary) > 0 {
		return primary, SourceStore
	}
	return Aggregate(recent, now, windowMinutes, stepMinutes), SourceFallback
}

// PointSeries 窗口内的有效读数按时间升序排列（按更新显示，不求平均）
func PointSeries(readings []Reading, now time.Time, windowMinutes int) []Point {
	window := NewWindow(now, windowMinutes)
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		if !window.Contains(r.Timestamp) || !r.Valid() {
			continue
		}
		points = append(points, Point{Timestamp: r.Timestamp, Weight: *r.Weight})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

func clampMinutes(m int) int {
	if m < 1 {
		return 1
	}
	return m
}
