package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetAggregates = "Aggregates"
	sheetReadings   = "Readings"
)

var (
	aggregateHeader = []interface{}{"Bucket Start (UTC)", "Bucket Start (JST)", "Avg (g)", "Min (g)", "Max (g)", "Count"}
	readingHeader   = []interface{}{"ID", "Time (UTC)", "Weight (g)", "Unit", "Status", "Source", "Process", "Stable", "Error", "Raw"}
)

// RenderXLSX 工作簿：Aggregates（分桶结果）与 Readings（窗口内读数）
func RenderXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetAggregates); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetReadings); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSheet(f, sheetAggregates, aggregateHeader, headerStyle, aggregateRows(r)); err != nil {
		return err
	}
	if err := writeSheet(f, sheetReadings, readingHeader, headerStyle, readingRows(r)); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, style int, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2) // 第 1 行是表头
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func aggregateRows(r *Report) [][]interface{} {
	if len(r.Points) > 0 {
		rows := make([][]interface{}, 0, len(r.Points))
		for _, p := range r.Points {
			rows = append(rows, []interface{}{FormatUTC(p.Timestamp), FormatJST(p.Timestamp), p.Weight, p.Weight, p.Weight, 1})
		}
		return rows
	}
	rows := make([][]interface{}, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		rows = append(rows, []interface{}{FormatUTC(b.Start), FormatJST(b.Start), b.AvgWeight, b.MinWeight, b.MaxWeight, b.Count})
	}
	return rows
}

func readingRows(r *Report) [][]interface{} {
	rows := make([][]interface{}, 0, len(r.Readings))
	for _, rd := range r.Readings {
		var weight, stable, raw interface{}
		if rd.Weight != nil {
			weight = *rd.Weight
		}
		if rd.Stable != nil {
			stable = *rd.Stable
		}
		if rd.Raw != nil {
			raw = *rd.Raw
		}
		rows = append(rows, []interface{}{
			rd.ID, FormatUTC(rd.Timestamp), weight, rd.Unit, rd.Status, rd.Source,
			string(rd.Process), stable, rd.IsError, raw,
		})
	}
	return rows
}
