package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/export"
	"github.com/VaTka/wakame/internal/metrics"
	"github.com/VaTka/wakame/internal/repository"
	"go.uber.org/zap"
)

// ReportQuery 导出参数
type ReportQuery struct {
	Process     string
	Granularity string
	WindowMin   int
	StepMin     int
	IncludeRaw  bool
	RawLimit    int
	Lang        string
	Target      *float64
	Deviation   *float64
}

// ExportService 组装导出数据（窗口、分桶、最新值、公差）并调用渲染器
type ExportService struct {
	log            repository.ReadingLog
	table          domain.GranularityTable
	defaultProcess domain.Process
	pdf            export.PDFOptions
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

func NewExportService(log repository.ReadingLog, table domain.GranularityTable, defaultProcess domain.Process, pdf export.PDFOptions, m *metrics.Metrics, logger *zap.Logger) *ExportService {
	return &ExportService{
		log:            log,
		table:          table,
		defaultProcess: defaultProcess,
		pdf:            pdf,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
}

// BuildReport 窗口参数与实时视图共用粒度表。
// 存储侧聚合失败或为空时用窗口内读数本地重算；最新值读取失败只记录日志。
// 报表只携带窗口内最新的 5000 条读数，完整明细见 Export 的 CSV/XLSX。
func (s *ExportService) BuildReport(ctx context.Context, q ReportQuery) (*export.Report, error) {
	return s.buildReport(ctx, q, false)
}

func (s *ExportService) buildReport(ctx context.Context, q ReportQuery, allReadings bool) (*export.Report, error) {
	p, err := requiredProcess(q.Process, s.defaultProcess)
	if err != nil {
		return nil, err
	}

	ew := s.table.ResolveExportWindow(p, q.Granularity, q.WindowMin, q.StepMin)
	if q.IncludeRaw {
		ew.IncludeRaw = true
	}
	if q.RawLimit > 0 {
		ew.RawLimit = domain.ClampRawLimit(q.RawLimit)
	}

	now := s.now().UTC()
	window := domain.NewWindow(now, ew.WindowMinutes)
	report := &export.Report{
		Process:     p,
		Lang:        normalizeLang(q.Lang),
		Window:      ew,
		GeneratedAt: now,
	}

	var readings []domain.Reading
	if allReadings {
		readings, err = s.loadWindow(ctx, p, window)
	} else {
		readings, err = s.log.ListRangeNewest(ctx, p, window.From, window.To, domain.MaxListLimit)
		readings = reverse(readings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}
	report.Readings = readings

	latest, err := s.log.Latest(ctx, p)
	if err != nil {
		s.logger.Warn("Failed to load latest reading for export", zap.String("process", string(p)), zap.Error(err))
	}
	report.Latest = latest

	if ew.PointSamples {
		report.Points = domain.PointSeries(readings, now, ew.WindowMinutes)
		report.Source = domain.SourcePoints
	} else {
		primary, err := s.log.Aggregate(ctx, p, now, ew.WindowMinutes, ew.StepMinutes)
		if err != nil {
			s.logger.Warn("Store aggregate failed, recomputing locally", zap.String("process", string(p)), zap.Error(err))
			primary = nil
		}
		report.Buckets, report.Source = domain.ResolveBuckets(primary, readings, now, ew.WindowMinutes, ew.StepMinutes)
	}
	s.metrics.AggregateServed(string(report.Source))

	if ew.IncludeRaw {
		recent, err := s.log.ListRecent(ctx, p, ew.RawLimit)
		if err != nil {
			s.logger.Warn("Failed to load raw readings for export", zap.String("process", string(p)), zap.Error(err))
		}
		report.RawDump = reverse(recent)
	}

	if q.Target != nil {
		spec := domain.ToleranceSpec{Target: *q.Target}
		if q.Deviation != nil {
			spec.DeviationPercent = *q.Deviation
		}
		report.Tolerance = &spec
		if domain.UsableLatest(latest) {
			report.Evaluation = domain.Evaluate(latest.Weight, spec)
		}
	}
	return report, nil
}

// loadWindow 按 ID 游标分页读取窗口内全部读数
func (s *ExportService) loadWindow(ctx context.Context, p domain.Process, window domain.Window) ([]domain.Reading, error) {
	var all []domain.Reading
	var afterID int64
	for {
		page, err := s.log.ListRange(ctx, p, window.From, window.To, afterID, domain.MaxListLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < domain.MaxListLimit {
			return all, nil
		}
		afterID = page[len(page)-1].ID
	}
}

// Export 渲染指定格式到 w；CSV 与 XLSX 包含窗口内全部读数
func (s *ExportService) Export(ctx context.Context, format export.Format, q ReportQuery, w io.Writer) (*export.Report, error) {
	full := format == export.FormatCSV || format == export.FormatXLSX
	report, err := s.buildReport(ctx, q, full)
	if err != nil {
		s.metrics.Exported(string(format), err)
		return nil, err
	}

	switch format {
	case export.FormatCSV:
		err = export.WriteCSV(w, report.Readings)
	case export.FormatPDF:
		err = export.RenderPDF(w, report, s.pdf)
	case export.FormatSVG:
		err = export.RenderSVG(w, report)
	case export.FormatXLSX:
		err = export.RenderXLSX(w, report)
	default:
		err = fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidInput, format)
	}
	s.metrics.Exported(string(format), err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func normalizeLang(lang string) string {
	if lang == "ja" {
		return "ja"
	}
	return "en"
}

func reverse(in []domain.Reading) []domain.Reading {
	out := make([]domain.Reading, len(in))
	for i, r := range in {
		out[len(in)-1-i] = r
	}
	return out
}
