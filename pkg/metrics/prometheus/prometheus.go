// Package prometheus implements pkg/metrics.RSMMetrics and pkg/metrics.CCUMetrics
// on top of github.com/prometheus/client_golang, mirroring the promauto.With(reg)
// registration style used elsewhere in this codebase's metrics layer.
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/marmos91/dittofs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reg = metrics.GetRegistry()

// Handler returns the HTTP handler that exposes the registry in the
// Prometheus text exposition format, for mounting under e.g. /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// rsmMetrics is the Prometheus implementation of metrics.RSMMetrics.
type rsmMetrics struct {
	state             *prometheus.GaugeVec
	active            *prometheus.GaugeVec
	bcb               *prometheus.GaugeVec
	messagesReceived  *prometheus.CounterVec
	messagesSent      *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	connectionsOpened *prometheus.CounterVec
	connectionsClosed *prometheus.CounterVec
	handlerDuration   *prometheus.HistogramVec
}

// NewRSMMetrics creates a new Prometheus-backed RSMMetrics instance.
//
// Returns nil if metrics are not enabled (metrics.InitRegistry not called).
func NewRSMMetrics() metrics.RSMMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	return &rsmMetrics{
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsm_instance_state",
				Help: "Current RSM instance state (1 for the active state label, 0 otherwise)",
			},
			[]string{"instance", "state"},
		),
		active: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsm_instance_connection_active",
				Help: "Whether an RSM instance currently has an accepted CCU connection",
			},
			[]string{"instance"},
		),
		bcb: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsm_instance_bcb",
				Help: "Current BCB hardware clock counter value per instance",
			},
			[]string{"instance"},
		),
		messagesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsm_messages_received_total",
				Help: "Total messages dispatched to a handler, by instance and type",
			},
			[]string{"instance", "type"},
		),
		messagesSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsm_messages_sent_total",
				Help: "Total response frames written to the wire, by instance and type",
			},
			[]string{"instance", "type"},
		),
		messagesDropped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsm_messages_dropped_total",
				Help: "Total responses suppressed by fault injection, by instance and type",
			},
			[]string{"instance", "type"},
		),
		connectionsOpened: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsm_connections_accepted_total",
				Help: "Total CCU connections accepted, by instance",
			},
			[]string{"instance"},
		),
		connectionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsm_connections_closed_total",
				Help: "Total connections torn down, by instance and reason",
			},
			[]string{"instance", "reason"},
		),
		handlerDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rsm_handler_duration_milliseconds",
				Help:    "Duration of per-message handler invocations in milliseconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"instance", "type"},
		),
	}
}

func (m *rsmMetrics) SetInstanceState(instanceID int, state string) {
	m.state.WithLabelValues(strconv.Itoa(instanceID), state).Set(1)
}

func (m *rsmMetrics) SetInstanceActive(instanceID int, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	m.active.WithLabelValues(strconv.Itoa(instanceID)).Set(v)
}

func (m *rsmMetrics) SetBCB(instanceID int, bcb uint32) {
	m.bcb.WithLabelValues(strconv.Itoa(instanceID)).Set(float64(bcb))
}

func (m *rsmMetrics) RecordMessageReceived(instanceID int, msgType uint8) {
	m.messagesReceived.WithLabelValues(strconv.Itoa(instanceID), strconv.Itoa(int(msgType))).Inc()
}

func (m *rsmMetrics) RecordMessageSent(instanceID int, msgType uint8) {
	m.messagesSent.WithLabelValues(strconv.Itoa(instanceID), strconv.Itoa(int(msgType))).Inc()
}

func (m *rsmMetrics) RecordMessageDropped(instanceID int, msgType uint8) {
	m.messagesDropped.WithLabelValues(strconv.Itoa(instanceID), strconv.Itoa(int(msgType))).Inc()
}

func (m *rsmMetrics) RecordConnectionAccepted(instanceID int) {
	m.connectionsOpened.WithLabelValues(strconv.Itoa(instanceID)).Inc()
}

func (m *rsmMetrics) RecordConnectionClosed(instanceID int, reason string) {
	m.connectionsClosed.WithLabelValues(strconv.Itoa(instanceID), reason).Inc()
}

func (m *rsmMetrics) RecordHandlerDuration(instanceID int, msgType uint8, d time.Duration) {
	m.handlerDuration.WithLabelValues(strconv.Itoa(instanceID), strconv.Itoa(int(msgType))).
		Observe(float64(d.Microseconds()) / 1000.0)
}

// ccuMetrics is the Prometheus implementation of metrics.CCUMetrics.
type ccuMetrics struct {
	status            *prometheus.GaugeVec
	messagesSent      *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	waitTimeouts      *prometheus.CounterVec
	warnings          *prometheus.CounterVec
	keepAliveFailures *prometheus.CounterVec
	outstandingSends  prometheus.Gauge
}

// NewCCUMetrics creates a new Prometheus-backed CCUMetrics instance.
//
// Returns nil if metrics are not enabled (metrics.InitRegistry not called).
func NewCCUMetrics() metrics.CCUMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	return &ccuMetrics{
		status: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ccu_link_status",
				Help: "Current CCU link status (1 for the active status label, 0 otherwise)",
			},
			[]string{"link", "status"},
		),
		messagesSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ccu_messages_sent_total",
				Help: "Total request frames written to the wire, by link and type",
			},
			[]string{"link", "type"},
		),
		messagesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ccu_messages_received_total",
				Help: "Total response/unsolicited frames read from the wire, by link and type",
			},
			[]string{"link", "type"},
		),
		waitTimeouts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ccu_wait_timeouts_total",
				Help: "Total wait_for_specific_response timeouts, by link and expected type",
			},
			[]string{"link", "type"},
		),
		warnings: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ccu_warnings_total",
				Help: "Total Warning frames received, by link and TKS",
			},
			[]string{"link", "tks"},
		),
		keepAliveFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ccu_keepalive_failures_total",
				Help: "Total keep-alive watchdog timeouts, by link",
			},
			[]string{"link"},
		),
		outstandingSends: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "ccu_outstanding_sends",
				Help: "Current outstanding-sends counter across all links",
			},
		),
	}
}

func (m *ccuMetrics) SetLinkStatus(linkID int, status string) {
	m.status.WithLabelValues(strconv.Itoa(linkID), status).Set(1)
}

func (m *ccuMetrics) RecordMessageSent(linkID int, msgType uint8) {
	m.messagesSent.WithLabelValues(strconv.Itoa(linkID), strconv.Itoa(int(msgType))).Inc()
}

func (m *ccuMetrics) RecordMessageReceived(linkID int, msgType uint8) {
	m.messagesReceived.WithLabelValues(strconv.Itoa(linkID), strconv.Itoa(int(msgType))).Inc()
}

func (m *ccuMetrics) RecordWaitTimeout(linkID int, expectedType uint8) {
	m.waitTimeouts.WithLabelValues(strconv.Itoa(linkID), strconv.Itoa(int(expectedType))).Inc()
}

func (m *ccuMetrics) RecordWarning(linkID int, tks uint8) {
	m.warnings.WithLabelValues(strconv.Itoa(linkID), strconv.Itoa(int(tks))).Inc()
}

func (m *ccuMetrics) RecordKeepAliveFailure(linkID int) {
	m.keepAliveFailures.WithLabelValues(strconv.Itoa(linkID)).Inc()
}

func (m *ccuMetrics) SetOutstandingSends(n int) {
	m.outstandingSends.Set(float64(n))
}
