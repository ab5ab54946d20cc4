package httpapi

import (
	"net/http"

	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/service"
	"go.uber.org/zap"
)

// ReadingHandler 入库与查询接口
type ReadingHandler struct {
	ingest *service.IngestService
	query  *service.QueryService
	logger *zap.Logger
}

func NewReadingHandler(ingest *service.IngestService, query *service.QueryService, logger *zap.Logger) *ReadingHandler {
	return &ReadingHandler{ingest: ingest, query: query, logger: logger}
}

// POST /api/ingest
// body: {raw?, weight?, unit?, status?, source?, process?, stable?}
func (h *ReadingHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req service.IngestRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid json body"))
		return
	}

	reading, err := h.ingest.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reading))
}

// GET /api/measurements?process=&limit=
func (h *ReadingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	readings, err := h.query.ListRecent(r.Context(), q.Get("process"), parseInt(q.Get("limit"), domain.DefaultListLimit))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(readings))
}

// GET /api/measurements/latest?process=
// 没有读数时 result 为 null
func (h *ReadingHandler) Latest(w http.ResponseWriter, r *http.Request) {
	reading, err := h.query.Latest(r.Context(), r.URL.Query().Get("process"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reading))
}

// GET /api/aggregates?process=&granularity=&windowMin=&stepMin=
func (h *ReadingHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.query.Aggregates(r.Context(), service.AggregateQuery{
		Process:     q.Get("process"),
		Granularity: q.Get("granularity"),
		WindowMin:   parseInt(q.Get("windowMin"), 0),
		StepMin:     parseInt(q.Get("stepMin"), 0),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
