package export

import (
	"fmt"
	"io"
	"os"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/go-pdf/fpdf"
)

// PDFOptions 报告渲染参数
type PDFOptions struct {
	FontPath string // 日文字体（TTF），ja 报告需要
}

type pdfLabels struct {
	titleMolding   string
	titlePackaging string
	period         func(w, s int) string
	latestValue    func(w string) string
	latestTime     func(utc, jst string) string
	noLatest       string
	warnError      string
	tolerance      func(lower, upper, diff float64, class domain.Classification) string
	sectionAgg     string
	noData         string
	fallbackNote   string
	aggLine        func(ts, avg string, min, max float64, count int) string
	pointLine      func(ts string, w float64) string
	sectionRaw     string
	rawLine        func(ts, w string, stable, isError bool) string
}

func yesNo(b bool, yes string) string {
	if b {
		return yes
	}
	return "-"
}

var enLabels = pdfLabels{
	titleMolding:   "Process: Molding - Report",
	titlePackaging: "Process: Packaging - Report",
	period:         func(w, s int) string { return fmt.Sprintf("Period: last %d min, Step: %d min", w, s) },
	latestValue:    func(w string) string { return fmt.Sprintf("Latest: %s g", w) },
	latestTime:     func(u, j string) string { return fmt.Sprintf("Time: UTC %s / JST %s", u, j) },
	noLatest:       "No latest value",
	warnError:      "Error value detected",
	tolerance: func(lower, upper, diff float64, class domain.Classification) string {
		return fmt.Sprintf("Tolerance: %.1f - %.1f g, diff %+.1f%% (%s)", lower, upper, diff, class)
	},
	sectionAgg:   "Aggregates (avg/min/max/count)",
	noData:       "No data (adjust window/step)",
	fallbackNote: "Recomputed from recent raw readings",
	aggLine: func(ts, avg string, min, max float64, count int) string {
		return fmt.Sprintf("%s  avg:%s g  min:%.1f  max:%.1f  count:%d", ts, avg, min, max, count)
	},
	pointLine:  func(ts string, w float64) string { return fmt.Sprintf("%s  %.1f g", ts, w) },
	sectionRaw: "Recent raw data",
	rawLine: func(ts, w string, stable, isError bool) string {
		return fmt.Sprintf("%s    %s g    stable:%s    error:%s", ts, w, yesNo(stable, "yes"), yesNo(isError, "yes"))
	},
}

var jaLabels = pdfLabels{
	titleMolding:   "工程: 成型 レポート",
	titlePackaging: "工程: 包装 レポート",
	period:         func(w, s int) string { return fmt.Sprintf("期間: 直近 %d 分, 集計間隔: %d 分", w, s) },
	latestValue:    func(w string) string { return fmt.Sprintf("最新値: %s g", w) },
	latestTime:     func(u, j string) string { return fmt.Sprintf("時刻: UTC %s ／ JST %s", u, j) },
	noLatest:       "最新値: なし",
	warnError:      "※ エラー値を検出しました",
	tolerance: func(lower, upper, diff float64, class domain.Classification) string {
		return fmt.Sprintf("許容範囲: %.1f 〜 %.1f g, 差: %+.1f%% (%s)", lower, upper, diff, class)
	},
	sectionAgg:   "集計（平均・最小・最大・件数）",
	noData:       "データがありません（期間/粒度を見直してください）",
	fallbackNote: "直近の生データから再計算",
	aggLine: func(ts, avg string, min, max float64, count int) string {
		return fmt.Sprintf("%s  平均:%s g  最小:%.1f  最大:%.1f  件数:%d", ts, avg, min, max, count)
	},
	pointLine:  func(ts string, w float64) string { return fmt.Sprintf("%s  %.1f g", ts, w) },
	sectionRaw: "直近の生データ",
	rawLine: func(ts, w string, stable, isError bool) string {
		return fmt.Sprintf("%s    %s g    安定:%s    エラー:%s", ts, w, yesNo(stable, "はい"), yesNo(isError, "はい"))
	},
}

const (
	coreFont  = "Helvetica"
	jpFont    = "jp"
	lineH     = 6.0
	warnJPFnt = "Warning: JP font not found. Set PDF_FONT to a TTF with Japanese glyphs."
)

// RenderPDF 生成报告：标题、期间、最新值（UTC/JST）、错误提示、聚合行、可选原始数据页。
// ja 报告找不到日文字体时回退为英文并在首行给出提示。
func RenderPDF(w io.Writer, r *Report, opts PDFOptions) error {
	pdf := buildPDF(r, opts)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func buildPDF(r *Report, opts PDFOptions) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle(fmt.Sprintf("%s report", r.Process), true)

	wantJA := r.Lang == "ja"
	hasJP := wantJA && loadJPFont(pdf, opts.FontPath)

	labels := enLabels
	family := coreFont
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if hasJP {
		labels = jaLabels
		family = jpFont
		tr = func(s string) string { return s }
	}

	text := func(style string, size float64, s string) {
		pdf.SetFont(family, style, size)
		pdf.MultiCell(0, lineH, tr(s), "", "L", false)
	}
	red := func(fn func()) {
		pdf.SetTextColor(200, 0, 0)
		fn()
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.AddPage()
	if wantJA && !hasJP {
		red(func() { text("", 10, warnJPFnt) })
	}

	title := labels.titleMolding
	if r.Process == domain.ProcessPackaging {
		title = labels.titlePackaging
	}
	text("U", 18, title)
	pdf.Ln(2)
	text("", 12, labels.period(r.Window.WindowMinutes, r.Window.StepMinutes))
	pdf.Ln(2)

	if r.Latest != nil {
		text("", 12, labels.latestValue(formatWeight(r.Latest.Weight)))
		text("", 12, labels.latestTime(FormatUTC(r.Latest.Timestamp), FormatJST(r.Latest.Timestamp)))
		if r.Latest.IsError {
			red(func() { text("", 12, labels.warnError) })
		}
	} else {
		text("", 12, labels.noLatest)
	}
	if e := r.Evaluation; e != nil {
		line := func() { text("", 12, labels.tolerance(e.Lower, e.Upper, e.PercentDiff, e.Classification)) }
		if e.OutOfRange() {
			red(line)
		} else {
			line()
		}
	}

	pdf.Ln(4)
	text("", 14, labels.sectionAgg)
	pdf.Ln(2)
	switch {
	case len(r.Points) > 0:
		for _, p := range r.Points {
			text("", 11, labels.pointLine(FormatJST(p.Timestamp), p.Weight))
		}
	case len(r.Buckets) == 0:
		text("", 11, labels.noData)
	default:
		if r.Source == domain.SourceFallback {
			text("", 9, labels.fallbackNote)
		}
		for _, b := range r.Buckets {
			avg := fmt.Sprintf("%.1f", b.AvgWeight)
			text("", 11, labels.aggLine(FormatJST(b.Start), avg, b.MinWeight, b.MaxWeight, b.Count))
		}
	}

	if r.Window.IncludeRaw {
		pdf.AddPage()
		text("", 14, labels.sectionRaw)
		pdf.Ln(2)
		for _, rr := range r.RawDump {
			stable := rr.Stable != nil && *rr.Stable
			text("", 10, labels.rawLine(FormatJST(rr.Timestamp), formatWeight(rr.Weight), stable, rr.IsError))
		}
	}
	return pdf
}

// loadJPFont 字体文件不存在或无法解析时返回 false，并清除 fpdf 的错误状态
func loadJPFont(pdf *fpdf.Fpdf, path string) (ok bool) {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	// 损坏的 TTF 会让 fpdf 解析时 panic
	defer func() {
		if recover() != nil {
			pdf.ClearError()
			ok = false
		}
	}()
	pdf.AddUTF8Font(jpFont, "", path)
	if pdf.Err() {
		pdf.ClearError()
		return false
	}
	return true
}
