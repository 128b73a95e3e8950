// Package metrics provides Prometheus metrics for the item store
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the item store
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Record store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	RecordsEncodedTotal    prometheus.Counter
	RecordsDecodedTotal    prometheus.Counter
	DecodeFailuresTotal    prometheus.Counter

	// Corpus metrics
	ScanDuration       prometheus.Histogram
	ScansTotal         prometheus.Counter
	DictionaryEntries  prometheus.Gauge
	MatchQueriesTotal  prometheus.Counter
	SearchQueriesTotal prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// means the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itemstore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "itemstore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "itemstore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Record store metrics
	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itemstore_store_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "itemstore_store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.RecordsEncodedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "itemstore_records_encoded_total",
			Help: "Total number of records written",
		},
	)

	m.RecordsDecodedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "itemstore_records_decoded_total",
			Help: "Total number of records decoded during scans",
		},
	)

	m.DecodeFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "itemstore_decode_failures_total",
			Help: "Total number of records skipped because they failed to decode",
		},
	)

	// Corpus metrics
	m.ScanDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "itemstore_scan_duration_seconds",
			Help:    "Duration of corpus scans in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.ScansTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "itemstore_scans_total",
			Help: "Total number of corpus scans",
		},
	)

	m.DictionaryEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "itemstore_dictionary_entries",
			Help: "Number of field paths in the most recent data dictionary",
		},
	)

	m.MatchQueriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "itemstore_match_queries_total",
			Help: "Total number of equality match queries",
		},
	)

	m.SearchQueriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "itemstore_search_queries_total",
			Help: "Total number of index search queries",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "itemstore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// StartUptime periodically updates the uptime gauge until done is closed
func (m *Metrics) StartUptime(done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOperation records a record store operation
func (m *Metrics) RecordStoreOperation(operation string, status string, duration time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if operation == "persist" && status == "success" {
		m.RecordsEncodedTotal.Inc()
	}
}

// RecordScan records the outcome of one corpus scan
func (m *Metrics) RecordScan(records, failures, entries int, duration time.Duration) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(duration.Seconds())
	m.RecordsDecodedTotal.Add(float64(records))
	m.DecodeFailuresTotal.Add(float64(failures))
	m.DictionaryEntries.Set(float64(entries))
}
