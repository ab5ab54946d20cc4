package export

import (
	"fmt"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

// Format 导出格式
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatSVG  Format = "svg"
	FormatXLSX Format = "xlsx"
)

// ParseFormat 解析导出格式
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatPDF, FormatSVG, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidInput, s)
	}
}

// ContentType HTTP Content-Type
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatSVG:
		return "image/svg+xml; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Filename 附件文件名，如 molding-export.csv / packaging-report.pdf
func (f Format) Filename(p domain.Process) string {
	switch f {
	case FormatCSV, FormatXLSX:
		return fmt.Sprintf("%s-export.%s", p, f)
	case FormatSVG:
		return fmt.Sprintf("%s-chart.svg", p)
	default:
		return fmt.Sprintf("%s-report.%s", p, f)
	}
}

// Report 导出所需的全部数据，已完成分桶与公差判定，渲染器只负责排版
type Report struct {
	Process     domain.Process
	Lang        string // en / ja
	Window      domain.ExportWindow
	GeneratedAt time.Time

	Latest *domain.Reading

	Buckets []domain.Bucket
	Source  domain.SeriesSource
	Points  []domain.Point // raw 粒度时的逐条样本

	Readings []domain.Reading // 窗口内读数，按 ID 正序
	RawDump  []domain.Reading // 最近的原始读数（includeRaw），按时间正序

	Tolerance  *domain.ToleranceSpec
	Evaluation *domain.ToleranceResult
}

var jst = time.FixedZone("JST", 9*3600)

const utcLayout = "2006-01-02 15:04:05"

// FormatUTC 与存储一致的 UTC 文本
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// FormatJST 日本时间
func FormatJST(t time.Time) string {
	return t.In(jst).Format("2006/01/02 15:04:05")
}

func formatWeight(w *float64) string {
	if w == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *w)
}
