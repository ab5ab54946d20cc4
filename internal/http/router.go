package httpapi

import (
	"net/http"

	"github.com/VaTka/wakame/internal/metrics"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router gorilla/mux 路由，外层依次为 recovery、CORS、请求 ID、访问日志
type Router struct {
	mux     *mux.Router
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRouter(logger *zap.Logger, m *metrics.Metrics) *Router {
	r := &Router{
		mux:     mux.NewRouter(),
		logger:  logger,
		metrics: m,
	}
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	}).Methods(http.MethodGet)
	if m != nil {
		r.mux.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Handle 注册路由并记录指标
func (r *Router) Handle(path string, h http.HandlerFunc, methods ...string) {
	r.mux.Handle(path, r.metrics.WrapHandler(path, h)).Methods(methods...)
}

// RegisterReadingRoutes 入库、查询、聚合
func (r *Router) RegisterReadingRoutes(h *ReadingHandler) {
	r.Handle("/api/ingest", h.Ingest, http.MethodPost)
	r.Handle("/api/measurements", h.List, http.MethodGet)
	r.Handle("/api/measurements/latest", h.Latest, http.MethodGet)
	r.Handle("/api/aggregates", h.Aggregates, http.MethodGet)
}

// RegisterExportRoutes /api/export/{format}
func (r *Router) RegisterExportRoutes(h *ExportHandler) {
	r.Handle("/api/export/{format}", h.Export, http.MethodGet)
}

// Handler 带中间件的完整 handler
func (r *Router) Handler() http.Handler {
	var h http.Handler = r.mux
	h = accessLog(r.logger)(h)
	h = requestID(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", RequestIDHeader}),
		handlers.ExposedHeaders([]string{"Content-Disposition", RequestIDHeader}),
	)(h)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
}
