// Package metrics exposes Prometheus collectors for the market engine, its
// side channels and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

const namespace = "answermarket"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations   *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	volume       *prometheus.CounterVec
	fees         *prometheus.CounterVec
	events       *prometheus.CounterVec
	sideFailures *prometheus.CounterVec
	ledgerSeq    prometheus.Gauge
	wsClients    prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

// New registers the collectors plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Market operations by name and outcome kind.",
		}, []string{"op", "result"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in a market operation including persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_volume_base_units_total",
			Help:      "Gross traded currency in base units by side.",
		}, []string{"side"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_base_units_total",
			Help:      "Fees collected in base units by recipient class.",
		}, []string{"kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed market events by type.",
		}, []string{"type"}),
		sideFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_channel_failures_total",
			Help:      "Failed post-commit deliveries by channel.",
		}, []string{"channel"}),
		ledgerSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_seq",
			Help:      "Sequence number of the last committed operation.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations, m.opDuration, m.volume, m.fees, m.events,
		m.sideFailures, m.ledgerSeq, m.wsClients, m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOperation records the outcome and latency of one engine call.
func (m *Metrics) ObserveOperation(op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(domain.Kind(err))
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.opDuration.WithLabelValues(op).Observe(took.Seconds())
}

// ObserveChangeSet records the trades and events of a committed operation.
func (m *Metrics) ObserveChangeSet(cs domain.ChangeSet) {
	if m == nil {
		return
	}
	m.ledgerSeq.Set(float64(cs.Seq))
	for _, ev := range cs.Events {
		m.events.WithLabelValues(string(ev.Type)).Inc()
	}
	for _, t := range cs.Trades {
		m.volume.WithLabelValues(string(t.Side)).Add(float64(t.Split.Gross))
		m.fees.WithLabelValues("platform").Add(float64(t.Split.Platform))
		m.fees.WithLabelValues("creator").Add(float64(t.Split.Creator))
		m.fees.WithLabelValues("king").Add(float64(t.Split.King))
	}
}

// SideChannelFailed counts a failed post-commit delivery.
func (m *Metrics) SideChannelFailed(channel string) {
	if m == nil {
		return
	}
	m.sideFailures.WithLabelValues(channel).Inc()
}

// SetLedgerSeq records the sequence number after a restore.
func (m *Metrics) SetLedgerSeq(seq uint64) {
	if m == nil {
		return
	}
	m.ledgerSeq.Set(float64(seq))
}

// WSClientConnected and WSClientDisconnected track the hub size.
func (m *Metrics) WSClientConnected() {
	if m != nil {
		m.wsClients.Inc()
	}
}

func (m *Metrics) WSClientDisconnected() {
	if m != nil {
		m.wsClients.Dec()
	}
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
