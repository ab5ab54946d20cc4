package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(b bool) *bool        { return &b }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleReport() *Report {
	return &Report{
		Process:     domain.ProcessMolding,
		Lang:        "en",
		Window:      domain.ExportWindow{WindowMinutes: 60, StepMinutes: 15, RawLimit: 300},
		GeneratedAt: testNow,
		Latest: &domain.Reading{
			ID: 3, Timestamp: testNow.Add(-time.Minute), Weight: floatPtr(60.4),
			Unit: "g", Process: domain.ProcessMolding,
		},
		Buckets: []domain.Bucket{
			{Start: testNow.Add(-45 * time.Minute), AvgWeight: 59.9, MinWeight: 59.5, MaxWeight: 60.3, Count: 4},
			{Start: testNow.Add(-15 * time.Minute), AvgWeight: 60.2, MinWeight: 60.0, MaxWeight: 60.4, Count: 3},
		},
		Source: domain.SourceStore,
		Readings: []domain.Reading{
			{ID: 1, Timestamp: testNow.Add(-40 * time.Minute), Raw: strPtr("+59.5 G S"), Weight: floatPtr(59.5),
				Unit: "g", Status: "G S", Source: "serial", Process: domain.ProcessMolding, Stable: boolPtr(true)},
			{ID: 2, Timestamp: testNow.Add(-10 * time.Minute), Raw: strPtr("OL"), Unit: "g", Status: "OL",
				Source: "serial", Process: domain.ProcessMolding, Stable: boolPtr(false), IsError: true},
		},
	}
}

func TestEscapeCSV(t *testing.T) {
	assert.Equal(t, "plain", EscapeCSV("plain"))
	assert.Equal(t, "", EscapeCSV(""))
	assert.Equal(t, "\"Hello, \"\"World\"\"\n\"", EscapeCSV("Hello, \"World\"\n"))
	assert.Equal(t, `"a,b"`, EscapeCSV("a,b"))
	assert.Equal(t, "\"line\r\"", EscapeCSV("line\r"))
	assert.Equal(t, `" lead"`, EscapeCSV(" lead"))
	assert.Equal(t, "\"trail\t\"", EscapeCSV("trail\t"))
	assert.Equal(t, "in side", EscapeCSV("in side"))
}

func TestWriteCSV(t *testing.T) {
	r := sampleReport()
	r.Readings = append(r.Readings, domain.Reading{
		ID: 4, Timestamp: testNow, Raw: strPtr("Hello, \"World\"\n"), Weight: floatPtr(12),
		Unit: "g", Source: "bench", Process: domain.ProcessMolding,
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r.Readings))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "\ufeff"))
	lines := strings.Split(strings.TrimPrefix(out, "\ufeff"), "\r\n")
	assert.Equal(t, "id,ts,weight,unit,status,source,process,stable,is_error,raw", lines[0])
	assert.Equal(t, "1,2024-05-01 11:20:00,59.5,g,G S,serial,molding,1,0,+59.5 G S", lines[1])
	assert.Equal(t, "2,2024-05-01 11:50:00,,g,OL,serial,molding,0,1,OL", lines[2])
	assert.Equal(t, "4,2024-05-01 12:00:00,12,g,,bench,molding,,0,\"Hello, \"\"World\"\"\n\"", lines[3])
	assert.Equal(t, "", lines[4])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "\ufeffid,ts,weight,unit,status,source,process,stable,is_error,raw\r\n", buf.String())
}

func TestRenderSVG(t *testing.T) {
	r := sampleReport()
	r.Tolerance = &domain.ToleranceSpec{Target: 60, DeviationPercent: 3}

	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Molding - avg")
}

func TestRenderSVG_EmptyAndSinglePoint(t *testing.T) {
	r := sampleReport()
	r.Buckets = nil
	r.Lang = "ja"
	r.Process = domain.ProcessPackaging

	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, r))
	assert.Contains(t, buf.String(), "包装 平均")

	r.Buckets = []domain.Bucket{{Start: testNow.Add(-time.Minute), AvgWeight: 5, MinWeight: 5, MaxWeight: 5, Count: 1}}
	buf.Reset()
	require.NoError(t, RenderSVG(&buf, r))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderSVG_Points(t *testing.T) {
	r := sampleReport()
	r.Window = domain.ExportWindow{WindowMinutes: 3, StepMinutes: 1, IncludeRaw: true, RawLimit: 500}
	r.Buckets = nil
	r.Source = domain.SourcePoints
	r.Points = []domain.Point{
		{Timestamp: testNow.Add(-90 * time.Second), Weight: 60.1},
		{Timestamp: testNow.Add(-30 * time.Second), Weight: 60.3},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, r))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderPDF(t *testing.T) {
	r := sampleReport()
	r.Evaluation = domain.Evaluate(r.Latest.Weight, domain.ToleranceSpec{Target: 60, DeviationPercent: 3})

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, r, PDFOptions{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestBuildPDF_RawPage(t *testing.T) {
	r := sampleReport()
	r.Window.IncludeRaw = true
	r.RawDump = r.Readings

	pdf := buildPDF(r, PDFOptions{})
	require.NoError(t, pdf.Error())
	assert.Equal(t, 2, pdf.PageNo())

	r.Window.IncludeRaw = false
	pdf = buildPDF(r, PDFOptions{})
	assert.Equal(t, 1, pdf.PageNo())
}

func TestBuildPDF_JapaneseFallsBackWithoutFont(t *testing.T) {
	r := sampleReport()
	r.Lang = "ja"
	r.Latest = nil
	r.Buckets = nil

	pdf := buildPDF(r, PDFOptions{FontPath: filepath.Join(t.TempDir(), "missing.ttf")})
	require.NoError(t, pdf.Error())
	assert.Equal(t, 1, pdf.PageNo())
}

func TestRenderXLSX(t *testing.T) {
	r := sampleReport()

	var buf bytes.Buffer
	require.NoError(t, RenderXLSX(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Aggregates", "Readings"}, f.GetSheetList())

	aggRows, err := f.GetRows("Aggregates")
	require.NoError(t, err)
	require.Len(t, aggRows, 3)
	assert.Equal(t, "Bucket Start (UTC)", aggRows[0][0])
	assert.Equal(t, "2024-05-01 11:15:00", aggRows[1][0])
	assert.Equal(t, "2024/05/01 20:15:00", aggRows[1][1])
	assert.Equal(t, "59.9", aggRows[1][2])

	readRows, err := f.GetRows("Readings")
	require.NoError(t, err)
	require.Len(t, readRows, 3)
	assert.Equal(t, "+59.5 G S", readRows[1][9])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Equal(t, "molding-export.xlsx", f.Filename(domain.ProcessMolding))
	assert.Equal(t, "packaging-report.pdf", FormatPDF.Filename(domain.ProcessPackaging))

	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
