package domain

import "math"

// Classification 最新读数相对公差带的位置
type Classification string

const (
	ClassAbove  Classification = "above"
	ClassBelow  Classification = "below"
	ClassWithin Classification = "within"
)

// ToleranceSpec 目标重量与允许偏差（%）
type ToleranceSpec struct {
	Target           float64
	DeviationPercent float64
}

// Bounds 公差带上下限；目标不为正或偏差非有限值时 ok 为 false
func (s ToleranceSpec) Bounds() (upper, lower float64, ok bool) {
	if !isFinite(s.Target) || s.Target <= 0 || !isFinite(s.DeviationPercent) {
		return 0, 0, false
	}
	return s.Target * (1 + s.DeviationPercent/100), s.Target * (1 - s.DeviationPercent/100), true
}

// ToleranceResult 公差判定结果
type ToleranceResult struct {
	Upper          float64        `json:"upper"`
	Lower          float64        `json:"lower"`
	Classification Classification `json:"classification"`
	PercentDiff    float64        `json:"percent_diff"`
}

// OutOfRange 超出上限或低于下限
func (r ToleranceResult) OutOfRange() bool {
	return r.Classification != ClassWithin
}

// Evaluate 判定最新重量；上下限均为开区间（等于上限仍为 within）。
// 无最新重量或公差带无效时返回 nil。
func Evaluate(latest *float64, spec ToleranceSpec) *ToleranceResult {
	if latest == nil || !isFinite(*latest) {
		return nil
	}
	upper, lower, ok := spec.Bounds()
	if !ok {
		return nil
	}

	w := *latest
	res := &ToleranceResult{Upper: upper, Lower: lower, Classification: ClassWithin}
	switch {
	case w > upper:
		res.Classification = ClassAbove
	case w < lower:
		res.Classification = ClassBelow
	}
	res.PercentDiff, _ = PercentDiff(latest, spec.Target)
	return res
}

// PercentDiff (latest - target) / target * 100，只要求 target > 0，与偏差是否有效无关
func PercentDiff(latest *float64, target float64) (float64, bool) {
	if latest == nil || !isFinite(*latest) || !isFinite(target) || target <= 0 {
		return 0, false
	}
	return (*latest - target) / target * 100, true
}

// UsableLatest 最新读数是否可用于显示：重量存在、为有限值且不为 0。
// 0 或非有限值视为“当前无读数”，不会进入公差判定。
func UsableLatest(r *Reading) bool {
	if r == nil || r.Weight == nil {
		return false
	}
	w := *r.Weight
	return isFinite(w) && w != 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
