package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	svgWidth  = 960
	svgHeight = 360
)

var (
	lineColor  = drawing.ColorFromHex("4da3ff")
	bandColor  = drawing.ColorFromHex("e0a040")
	targetGray = drawing.ColorFromHex("98a6b3")
)

// RenderSVG 平均值折线图（raw 粒度为逐条样本），可叠加公差带上下限
func RenderSVG(w io.Writer, r *Report) error {
	graph := buildChart(r)
	if err := graph.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("failed to render svg: %w", err)
	}
	return nil
}

func chartTitle(r *Report) string {
	packaging := r.Process == domain.ProcessPackaging
	if r.Lang == "ja" {
		if packaging {
			return "包装 平均"
		}
		return "成型 平均"
	}
	if packaging {
		return "Packaging - avg"
	}
	return "Molding - avg"
}

func buildChart(r *Report) chart.Chart {
	window := domain.NewWindow(r.GeneratedAt, r.Window.WindowMinutes)

	var (
		xs []time.Time
		ys []float64
	)
	if len(r.Points) > 0 {
		for _, p := range r.Points {
			xs = append(xs, p.Timestamp)
			ys = append(ys, p.Weight)
		}
	} else {
		for _, b := range r.Buckets {
			xs = append(xs, b.Start)
			ys = append(ys, b.AvgWeight)
		}
	}

	// 桶起点可能早于窗口起点
	xMin, xMax := window.From, window.To
	if len(xs) > 0 && xs[0].Before(xMin) {
		xMin = xs[0]
	}

	series := []chart.Series{}
	if len(xs) == 1 {
		// 单点无法连线，画成点
		series = append(series, chart.TimeSeries{
			Name: "avg", XValues: xs, YValues: ys,
			Style: chart.Style{StrokeColor: drawing.ColorTransparent, DotWidth: 4, DotColor: lineColor},
		})
	} else if len(xs) > 1 {
		series = append(series, chart.TimeSeries{
			Name: "avg", XValues: xs, YValues: ys,
			Style: chart.Style{StrokeColor: lineColor, StrokeWidth: 2},
		})
	}

	bounds := append([]float64(nil), ys...)
	if r.Tolerance != nil {
		if upper, lower, ok := r.Tolerance.Bounds(); ok {
			edge := []time.Time{xMin, xMax}
			band := chart.Style{StrokeColor: bandColor, StrokeWidth: 1, StrokeDashArray: []float64{5, 3}}
			series = append(series,
				chart.TimeSeries{Name: "upper", XValues: edge, YValues: []float64{upper, upper}, Style: band},
				chart.TimeSeries{Name: "lower", XValues: edge, YValues: []float64{lower, lower}, Style: band},
				chart.TimeSeries{Name: "target", XValues: edge, YValues: []float64{r.Tolerance.Target, r.Tolerance.Target},
					Style: chart.Style{StrokeColor: targetGray, StrokeWidth: 1}},
			)
			bounds = append(bounds, upper, lower)
		}
	}
	if len(series) == 0 {
		// 没有数据时仍输出坐标轴
		series = append(series, chart.TimeSeries{
			XValues: []time.Time{xMin, xMax}, YValues: []float64{0, 0},
			Style: chart.Style{StrokeColor: drawing.ColorTransparent},
		})
	}

	yMin, yMax := paddedRange(bounds)
	return chart.Chart{
		Title:      chartTitle(r),
		Width:      svgWidth,
		Height:     svgHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			ValueFormatter: jstClockFormatter,
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(xMin), Max: chart.TimeToFloat64(xMax)},
		},
		YAxis: chart.YAxis{
			Name:           "g",
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.1f", v) },
		},
		Series: series,
	}
}

// paddedRange 上下各留 10%，区间为 0 时留 1
func paddedRange(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

func jstClockFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return chart.TimeFromFloat64(f).In(jst).Format("01/02 15:04")
	}
	return ""
}
