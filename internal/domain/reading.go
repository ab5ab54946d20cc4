package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Process 生产工序
type Process string

const (
	ProcessMolding   Process = "molding"   // 成型
	ProcessPackaging Process = "packaging" // 包装
)

// DefaultUnit 重量单位（克）
const DefaultUnit = "g"

// DefaultSource 未指定来源时的默认值（串口秤）
const DefaultSource = "serial"

// ParseProcess 解析工序名称（大小写不敏感）
func ParseProcess(s string) (Process, error) {
	switch Process(strings.ToLower(strings.TrimSpace(s))) {
	case ProcessMolding:
		return ProcessMolding, nil
	case ProcessPackaging:
		return ProcessPackaging, nil
	default:
		return "", fmt.Errorf("%w: unknown process %q", ErrInvalidInput, s)
	}
}

// Reading 一次入库的称重读数（对应 scale_readings 表）
// 入库后不可变，按 ID（插入顺序）排序
type Reading struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"ts"` // UTC，秒精度
	Raw       *string   `json:"raw"`
	Weight    *float64  `json:"weight"` // 克，保留 1 位小数
	Unit      string    `json:"unit"`
	Status    string    `json:"status"` // 原始文本中的字母标记，如 "G S"
	Source    string    `json:"source"`
	Process   Process   `json:"process"`
	Stable    *bool     `json:"stable"`
	IsError   bool      `json:"is_error"`
}

// Valid 是否参与聚合：有重量、有限值且不是错误读数
func (r Reading) Valid() bool {
	return r.Weight != nil && !math.IsNaN(*r.Weight) && !math.IsInf(*r.Weight, 0) && !r.IsError
}

// Bucket 固定时间片的聚合结果（派生数据，不落库）
type Bucket struct {
	Start     time.Time `json:"bucket_start_utc"`
	AvgWeight float64   `json:"avg_weight"`
	MinWeight float64   `json:"min_weight"`
	MaxWeight float64   `json:"max_weight"`
	Count     int       `json:"count"`
}

// Point 按更新显示时的单个样本
type Point struct {
	Timestamp time.Time `json:"ts"`
	Weight    float64   `json:"weight"`
}

// Round1 四舍五入到 1 位小数（远离零方向）
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Tenths 重量换算为 0.1 克的整数
func Tenths(w float64) int64 {
	return int64(math.Round(w * 10))
}

// AvgTenths 由 0.1 克整数和与条数求平均，按十进制四舍五入（远离零）到 1 位小数。
// 全程整数运算，存储侧 SQL 与本地聚合得到同一结果
func AvgTenths(sum int64, count int) float64 {
	if count <= 0 {
		return 0
	}
	n := int64(count)
	abs := sum
	if abs < 0 {
		abs = -abs
	}
	q := (2*abs + n) / (2 * n)
	if sum < 0 {
		q = -q
	}
	return float64(q) / 10
}

const (
	DefaultListLimit = 300
	MaxListLimit     = 5000
)

// ClampListLimit 列表条数限制在 [1, 5000]，非正数使用默认值 300
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
