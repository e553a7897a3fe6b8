// Package metrics exposes the Prometheus registry for the ingestion and
// retrieval surfaces.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ingestFilesTotal   *prometheus.CounterVec
	ingestBatchesTotal *prometheus.CounterVec

	chatSessionsTotal   *prometheus.CounterVec
	chatQuestionsTotal  *prometheus.CounterVec
	retrievedSegments   *prometheus.HistogramVec
	retrievalDuration   *prometheus.HistogramVec
	corpusDocumentsSeen *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fichas",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fichas",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fichas",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fichas",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total ingested files by final status.",
		},
		[]string{"service", "status"},
	)
	ingestBatchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fichas",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Total ingestion batches by result.",
		},
		[]string{"service", "result"},
	)
	chatSessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fichas",
			Subsystem: "chat",
			Name:      "sessions_total",
			Help:      "Total chat sessions by build result.",
		},
		[]string{"service", "result"},
	)
	chatQuestionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fichas",
			Subsystem: "chat",
			Name:      "questions_total",
			Help:      "Total answered questions.",
		},
		[]string{"service", "result"},
	)
	retrievedSegments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fichas",
			Subsystem: "chat",
			Name:      "retrieved_segments",
			Help:      "Distribution of retrieved segments per question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fichas",
			Subsystem: "chat",
			Name:      "question_duration_seconds",
			Help:      "End-to-end question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	corpusDocumentsSeen := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fichas",
			Subsystem: "chat",
			Name:      "corpus_documents",
			Help:      "Distribution of corpus documents per session build.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ingestFilesTotal,
		ingestBatchesTotal,
		chatSessionsTotal,
		chatQuestionsTotal,
		retrievedSegments,
		retrievalDuration,
		corpusDocumentsSeen,
	)

	return &ServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		ingestFilesTotal:    ingestFilesTotal,
		ingestBatchesTotal:  ingestBatchesTotal,
		chatSessionsTotal:   chatSessionsTotal,
		chatQuestionsTotal:  chatQuestionsTotal,
		retrievedSegments:   retrievedSegments,
		retrievalDuration:   retrievalDuration,
		corpusDocumentsSeen: corpusDocumentsSeen,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var (
	fichaIDPath    = regexp.MustCompile(`^/v1/fichas/[0-9]+$`)
	archiveKeyPath = regexp.MustCompile(`^/v1/arquivos/.+$`)
	chatAskPath    = regexp.MustCompile(`^/v1/chat/sessions/[^/]+/query$`)
	chatDeletePath = regexp.MustCompile(`^/v1/chat/sessions/[^/]+$`)
)

func normalizePath(path string) string {
	switch {
	case fichaIDPath.MatchString(path):
		return "/v1/fichas/{id}"
	case archiveKeyPath.MatchString(path):
		return "/v1/arquivos/{key}"
	case chatAskPath.MatchString(path):
		return "/v1/chat/sessions/{session_id}/query"
	case chatDeletePath.MatchString(path):
		return "/v1/chat/sessions/{session_id}"
	default:
		return path
	}
}

func (m *ServerMetrics) RecordIngestedFile(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.ingestFilesTotal.WithLabelValues(service, status).Inc()
}

func (m *ServerMetrics) RecordIngestBatch(service, result string) {
	m.ingestBatchesTotal.WithLabelValues(service, result).Inc()
}

func (m *ServerMetrics) RecordSessionBuild(service, result string, documents int) {
	m.chatSessionsTotal.WithLabelValues(service, result).Inc()
	if result == "ok" {
		m.corpusDocumentsSeen.WithLabelValues(service).Observe(float64(documents))
	}
}

func (m *ServerMetrics) RecordQuestion(service, result string, segments int, duration time.Duration) {
	m.chatQuestionsTotal.WithLabelValues(service, result).Inc()
	if result != "ok" {
		return
	}
	m.retrievedSegments.WithLabelValues(service).Observe(float64(segments))
	m.retrievalDuration.WithLabelValues(service).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
