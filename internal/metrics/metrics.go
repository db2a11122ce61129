package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wsstress"

// Metrics holds the collectors for one stress run.
type Metrics struct {
	connectAttempts  prometheus.Counter
	connectFailures  prometheus.Counter
	opened           prometheus.Counter
	closed           prometheus.Counter
	active           prometheus.Gauge
	messagesReceived prometheus.Counter
	reportsSent      prometheus.Counter
	reportErrors     prometheus.Counter
	reportDigests    prometheus.Histogram
	timerFailures    prometheus.Counter
	fdLimit          prometheus.Gauge

	reg prometheus.Registerer
}

// QueueSample is a point-in-time view of the engine's event queue.
type QueueSample struct {
	Pending   int
	HighWater int
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect calls issued during ramp-up",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Connections that failed before opening",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Connections that completed the opening handshake",
		}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Open connections that were closed",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Currently open connections",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received across all connections",
		}),
		reportsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_sent_total",
			Help:      "Ack reports sent",
		}),
		reportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_errors_total",
			Help:      "Ack reports that failed to send",
		}),
		reportDigests: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_digests",
			Help:      "Distinct digests per ack report",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		timerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_failures_total",
			Help:      "Report timers that fired with an error",
		}),
		fdLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fd_limit",
			Help:      "Effective soft limit on open file descriptors",
		}),
		reg: reg,
	}

	if reg != nil {
		reg.MustRegister(
			m.connectAttempts,
			m.connectFailures,
			m.opened,
			m.closed,
			m.active,
			m.messagesReceived,
			m.reportsSent,
			m.reportErrors,
			m.reportDigests,
			m.timerFailures,
			m.fdLimit,
		)
	}

	return m
}

func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

func (m *Metrics) ConnectFailed() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

func (m *Metrics) Opened() {
	if m == nil {
		return
	}
	m.opened.Inc()
	m.active.Inc()
}

func (m *Metrics) Closed() {
	if m == nil {
		return
	}
	m.closed.Inc()
	m.active.Dec()
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
}

// ReportSent records a report carrying digests distinct payloads.
func (m *Metrics) ReportSent(digests int) {
	if m == nil {
		return
	}
	m.reportsSent.Inc()
	m.reportDigests.Observe(float64(digests))
}

func (m *Metrics) ReportFailed() {
	if m == nil {
		return
	}
	m.reportErrors.Inc()
}

func (m *Metrics) TimerFailed() {
	if m == nil {
		return
	}
	m.timerFailures.Inc()
}

func (m *Metrics) SetFDLimit(limit uint64) {
	if m == nil {
		return
	}
	m.fdLimit.Set(float64(limit))
}

// ObserveEventQueue exports the engine event queue depth. sample is called
// on every scrape.
func (m *Metrics) ObserveEventQueue(sample func() QueueSample) {
	if m == nil || m.reg == nil {
		return
	}
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_pending",
			Help:      "Callbacks waiting on the engine event loop",
		}, func() float64 { return float64(sample().Pending) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_high_water",
			Help:      "Most callbacks ever waiting on the engine event loop",
		}, func() float64 { return float64(sample().HighWater) }),
	)
}
