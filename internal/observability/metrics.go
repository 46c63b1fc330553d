package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	transitions *prometheus.CounterVec
	conversions *prometheus.CounterVec
	validity    *prometheus.GaugeVec
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik dokumen penjualan.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_sales_transitions_total",
		Help: "Perpindahan status dokumen penjualan per tipe, status tujuan dan hasil.",
	}, []string{"type", "target", "outcome"})
	conversions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_sales_conversions_total",
		Help: "Konversi dokumen penjualan per tipe sumber, tipe tujuan dan hasil.",
	}, []string{"source", "target", "outcome"})
	validity := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odyssey_sales_quotations_by_validity",
		Help: "Jumlah penawaran terbuka per klasifikasi masa berlaku pada pemindaian terakhir.",
	}, []string{"validity"})
	registry.MustRegister(requests, duration, transitions, conversions, validity)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		conversions:     conversions,
		validity:        validity,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveTransition mencatat hasil perpindahan status dokumen.
func (m *Metrics) ObserveTransition(docType, target string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(docType, target, outcome(err)).Inc()
}

// ObserveConversion mencatat hasil konversi dokumen.
func (m *Metrics) ObserveConversion(source, target string, err error) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(source, target, outcome(err)).Inc()
}

// SetQuotationValidity menimpa gauge klasifikasi masa berlaku penawaran.
func (m *Metrics) SetQuotationValidity(counts map[string]int) {
	if m == nil {
		return
	}
	m.validity.Reset()
	for validity, n := range counts {
		m.validity.WithLabelValues(validity).Set(float64(n))
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
