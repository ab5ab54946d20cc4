package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wakame-api 指标；所有方法允许 nil 接收者
type Metrics struct {
	registry *prometheus.Registry

	ingested        *prometheus.CounterVec
	ingestRejected  *prometheus.CounterVec
	aggregateSource *prometheus.CounterVec
	exports         *prometheus.CounterVec
	streamMessages  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New 使用独立 registry，避免多实例（测试）重复注册
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakame",
			Name:      "readings_ingested_total",
			Help:      "Readings appended to the log by process and error flag.",
		}, []string{"process", "is_error"}),
		ingestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakame",
			Name:      "ingest_rejected_total",
			Help:      "Ingest requests rejected before any write.",
		}, []string{"reason"}),
		aggregateSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakame",
			Name:      "aggregate_series_total",
			Help:      "Bucketed series served by data path.",
		}, []string{"source"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakame",
			Name:      "exports_total",
			Help:      "Exports rendered by format and outcome.",
		}, []string{"format", "status"}),
		streamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakame",
			Name:      "stream_messages_total",
			Help:      "Raw-line stream messages handled by outcome.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wakame",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wakame",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingested,
		m.ingestRejected,
		m.aggregateSource,
		m.exports,
		m.streamMessages,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 测试用
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Ingested(process string, isError bool) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(process, strconv.FormatBool(isError)).Inc()
}

func (m *Metrics) IngestRejected(reason string) {
	if m == nil {
		return
	}
	m.ingestRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) AggregateServed(source string) {
	if m == nil {
		return
	}
	m.aggregateSource.WithLabelValues(source).Inc()
}

func (m *Metrics) Exported(format string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.exports.WithLabelValues(format, status).Inc()
}

func (m *Metrics) StreamMessage(status string) {
	if m == nil {
		return
	}
	m.streamMessages.WithLabelValues(status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler 按路由记录请求数与耗时
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
