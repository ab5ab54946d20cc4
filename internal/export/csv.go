package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/VaTka/wakame/internal/domain"
)

const (
	utf8BOM = "\ufeff"
	crlf    = "\r\n"
)

// CSVHeader 列顺序固定
var CSVHeader = []string{"id", "ts", "weight", "unit", "status", "source", "process", "stable", "is_error", "raw"}

// WriteCSV 写出 UTF-8 BOM + CRLF 的 CSV，Excel 可直接打开。
// 含逗号、引号、CR/LF 或首尾空白的字段加引号，内部引号加倍；raw 中的换行原样保留在引号内。
func WriteCSV(w io.Writer, readings []domain.Reading) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return err
	}
	writeRow(bw, CSVHeader)

	row := make([]string, len(CSVHeader))
	for _, r := range readings {
		row[0] = strconv.FormatInt(r.ID, 10)
		row[1] = FormatUTC(r.Timestamp)
		row[2] = ""
		if r.Weight != nil {
			row[2] = strconv.FormatFloat(*r.Weight, 'f', -1, 64)
		}
		row[3] = r.Unit
		row[4] = r.Status
		row[5] = r.Source
		row[6] = string(r.Process)
		row[7] = ""
		if r.Stable != nil {
			row[7] = boolDigit(*r.Stable)
		}
		row[8] = boolDigit(r.IsError)
		row[9] = ""
		if r.Raw != nil {
			row[9] = *r.Raw
		}
		writeRow(bw, row)
	}
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString(EscapeCSV(f))
	}
	bw.WriteString(crlf)
}

// EscapeCSV 单个字段的转义
func EscapeCSV(s string) string {
	if !needsQuotes(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func needsQuotes(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, "\",\r\n") {
		return true
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(first) || unicode.IsSpace(last)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
