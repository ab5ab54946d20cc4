package domain

import (
	"strings"
	"time"
)

// Granularity 显示粒度
type Granularity string

const (
	GranularityRaw     Granularity = "raw"     // 按更新（原始样本）
	GranularityFine    Granularity = "1min"    // 1 分钟平均
	GranularityMedium  Granularity = "5min"    // 5 分钟平均
	GranularityDefault Granularity = "default" // 既定：30 分钟平均
)

// WindowSpec 某个粒度对应的窗口、桶宽与刷新间隔，选定后不再修改
type WindowSpec struct {
	Granularity   Granularity
	WindowMinutes int
	StepMinutes   int
	Refresh       time.Duration
	PointSamples  bool // true 时直接显示原始样本而不是桶平均
	FallbackLimit int  // 回退重算时拉取的最近原始读数条数
}

// GranularityTable 粒度到 WindowSpec 的映射；实时视图与导出共用同一张表
type GranularityTable map[Granularity]WindowSpec

// DefaultGranularityTable 标准粒度表
func DefaultGranularityTable() GranularityTable {
	return GranularityTable{
		GranularityRaw:     {Granularity: GranularityRaw, WindowMinutes: 3, StepMinutes: 1, Refresh: 2 * time.Second, PointSamples: true, FallbackLimit: 500},
		GranularityFine:    {Granularity: GranularityFine, WindowMinutes: 60, StepMinutes: 1, Refresh: time.Minute, FallbackLimit: 1800},
		GranularityMedium:  {Granularity: GranularityMedium, WindowMinutes: 180, StepMinutes: 5, Refresh: 5 * time.Minute, FallbackLimit: 3000},
		GranularityDefault: {Granularity: GranularityDefault, WindowMinutes: 1440, StepMinutes: 30, Refresh: 30 * time.Minute, FallbackLimit: 5000},
	}
}

// Lookup 查找粒度（支持别名），未知时 ok 为 false
func (t GranularityTable) Lookup(s string) (WindowSpec, bool) {
	g, ok := ParseGranularity(s)
	if !ok {
		return WindowSpec{}, false
	}
	spec, ok := t[g]
	return spec, ok
}

// ParseGranularity 解析粒度名称及别名
func ParseGranularity(s string) (Granularity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "per-update", "update":
		return GranularityRaw, true
	case "1min", "fine":
		return GranularityFine, true
	case "5min", "medium":
		return GranularityMedium, true
	case "default", "coarse", "30min":
		return GranularityDefault, true
	default:
		return "", false
	}
}

// ExportWindow 导出请求使用的窗口参数
type ExportWindow struct {
	WindowMinutes int
	StepMinutes   int
	PointSamples  bool // raw 粒度：导出逐条样本而不是桶平均
	IncludeRaw    bool
	RawLimit      int
}

const (
	defaultRawLimit = 300
	maxRawLimit     = 1000
	pointRawLimit   = 500
)

// DefaultProcessWindow 未指定粒度时的工序默认窗口：包装节拍快，窗口与桶宽更窄
func DefaultProcessWindow(p Process) (windowMinutes, stepMinutes int) {
	if p == ProcessPackaging {
		return 20, 5
	}
	return 60, 15
}

// ResolveExportWindow 解析导出窗口：已知粒度优先，其次显式 windowMin/stepMin（<=0 视为未指定），
// 最后使用工序默认值。raw 粒度附带原始数据页。
func (t GranularityTable) ResolveExportWindow(p Process, granularity string, windowMin, stepMin int) ExportWindow {
	if spec, ok := t.Lookup(granularity); ok {
		ew := ExportWindow{WindowMinutes: spec.WindowMinutes, StepMinutes: spec.StepMinutes, RawLimit: defaultRawLimit}
		if spec.PointSamples {
			ew.PointSamples = true
			ew.IncludeRaw = true
			ew.RawLimit = pointRawLimit
		}
		return ew
	}

	defWindow, defStep := DefaultProcessWindow(p)
	ew := ExportWindow{WindowMinutes: defWindow, StepMinutes: defStep, RawLimit: defaultRawLimit}
	if windowMin > 0 {
		ew.WindowMinutes = windowMin
	}
	if stepMin > 0 {
		ew.StepMinutes = stepMin
	}
	return ew
}

// ClampRawLimit 原始数据页条数限制在 [1, 1000]，非正数使用默认值
func ClampRawLimit(limit int) int {
	if limit <= 0 {
		return defaultRawLimit
	}
	if limit > maxRawLimit {
		return maxRawLimit
	}
	return limit
}
