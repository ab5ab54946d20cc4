package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	weightPattern = regexp.MustCompile(`[+-]?\d+(?:\.\d+)?`)
	flagPattern   = regexp.MustCompile(`[A-Za-z]+`)
)

// ErrorBounds 有效重量区间 [Min, Max]，区间外的读数记为错误
type ErrorBounds struct {
	Min float64
	Max float64
}

// IsError 判断重量是否为错误读数：缺失、非有限值或超出区间
func (b ErrorBounds) IsError(weight *float64) bool {
	if weight == nil {
		return true
	}
	w := *weight
	if !isFinite(w) {
		return true
	}
	return w < b.Min || w > b.Max
}

// ParsedText 从秤输出文本中解析出的字段
type ParsedText struct {
	Weight *float64
	Unit   string
	Flags  string
	Stable bool
}

// ParseRaw 解析秤的一行输出，如 "+23.4 G S"
// 取第一个带符号小数作为重量（保留 1 位小数），所有字母串以空格连接作为状态标记，
// 标记中含 S 视为稳定。单位固定为克。
func ParseRaw(raw string) ParsedText {
	parsed := ParsedText{Unit: DefaultUnit}

	if m := weightPattern.FindString(raw); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			w := Round1(v)
			parsed.Weight = &w
		}
	}

	parsed.Flags = strings.Join(flagPattern.FindAllString(raw, -1), " ")
	parsed.Stable = strings.Contains(strings.ToUpper(parsed.Flags), "S")
	return parsed
}

// IngestInput 入库请求中调用方提供的字段（均可缺省）
type IngestInput struct {
	Raw     *string
	Weight  *float64
	Unit    *string
	Status  *string
	Source  *string
	Process Process
	Stable  *bool
}

// HasPayload 是否至少提供了原始文本或有限重量
func (in IngestInput) HasPayload() bool {
	if in.Raw != nil && strings.TrimSpace(*in.Raw) != "" {
		return true
	}
	return finite(in.Weight)
}

// Normalizer 将入库请求规整为 Reading（纯函数，不写库）
type Normalizer struct {
	Bounds         ErrorBounds
	DefaultProcess Process
}

// Normalize 合并调用方字段与原始文本解析结果，计算 IsError。
// 从不失败：解析不到重量时 Weight 为 nil，由调用方决定是否拒绝。
func (n Normalizer) Normalize(in IngestInput, now time.Time) Reading {
	raw := in.Raw
	if raw != nil && strings.TrimSpace(*raw) == "" {
		raw = nil
	}

	r := Reading{
		Timestamp: now.UTC().Truncate(time.Second),
		Raw:       raw,
		Unit:      DefaultUnit,
		Source:    DefaultSource,
		Process:   in.Process,
		Stable:    in.Stable,
	}

	if finite(in.Weight) {
		w := Round1(*in.Weight)
		r.Weight = &w
	}
	if in.Unit != nil && *in.Unit != "" {
		r.Unit = *in.Unit
	}
	if in.Status != nil {
		r.Status = *in.Status
	}
	if in.Source != nil && *in.Source != "" {
		r.Source = *in.Source
	}
	if r.Process == "" {
		r.Process = n.DefaultProcess
	}

	if raw != nil {
		parsed := ParseRaw(*raw)
		if r.Weight == nil {
			r.Weight = parsed.Weight
		}
		if in.Status == nil {
			r.Status = parsed.Flags
		}
		if r.Stable == nil {
			stable := parsed.Stable
			r.Stable = &stable
		}
	}

	r.IsError = n.Bounds.IsError(r.Weight)
	return r
}

func finite(w *float64) bool {
	return w != nil && isFinite(*w)
}
