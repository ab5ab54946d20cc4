package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/VaTka/wakame/internal/export"
	"github.com/VaTka/wakame/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ExportHandler CSV / PDF / SVG / XLSX 导出
type ExportHandler struct {
	svc    *service.ExportService
	logger *zap.Logger
}

func NewExportHandler(svc *service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{svc: svc, logger: logger}
}

// GET /api/export/{format}
// params: process, granularity, windowMin, stepMin, includeRaw, rawLimit, lang, target, deviation
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		return
	}

	q := r.URL.Query()
	query := service.ReportQuery{
		Process:     q.Get("process"),
		Granularity: q.Get("granularity"),
		WindowMin:   parseInt(q.Get("windowMin"), 0),
		StepMin:     parseInt(q.Get("stepMin"), 0),
		IncludeRaw:  parseFlag(q.Get("includeRaw")),
		RawLimit:    parseInt(q.Get("rawLimit"), 0),
		Lang:        q.Get("lang"),
		Target:      parseFloatPtr(q.Get("target")),
		Deviation:   parseFloatPtr(q.Get("deviation")),
	}

	// 先渲染到内存，失败时还能返回 JSON 错误
	var buf bytes.Buffer
	report, err := h.svc.Export(r.Context(), format, query, &buf)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format != export.FormatSVG {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(report.Process)))
	}
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
