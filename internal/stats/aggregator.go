package stats

import (
	"log/slog"
	"time"

	"github.com/rickgao/wsstress/internal/engine"
	"github.com/rickgao/wsstress/internal/metrics"
)

// DefaultInterval is the reporting period.
const DefaultInterval = 250 * time.Millisecond

// State is the reporting state of an Aggregator.
type State int

const (
	StateIdle             State = iota // Created, connection not open yet
	StateArmed                         // Report timer pending
	StateReportingStopped              // Timer failed; no more reports, connection may stay open
	StateClosed                        // Connection closed
	StateFailed                        // Connection never opened
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateReportingStopped:
		return "reporting_stopped"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Aggregator counts messages for one connection and periodically reports
// the counts back over it.
type Aggregator struct {
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	table *Table
	timer engine.Timer
	state State
}

var _ engine.Handler = (*Aggregator)(nil)

// NewAggregator creates an Aggregator reporting every interval.
// A non-positive interval selects DefaultInterval.
func NewAggregator(interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{
		interval: interval,
		logger:   logger,
		metrics:  m,
		table:    NewTable(),
	}
}

// State returns the current reporting state.
func (a *Aggregator) State() State {
	return a.state
}

// Pending returns the number of distinct digests not yet reported.
func (a *Aggregator) Pending() int {
	return a.table.Len()
}

// OnOpen arms the report timer the first time the connection opens.
func (a *Aggregator) OnOpen(c engine.Conn) {
	a.metrics.Opened()
	if a.timer != nil {
		return
	}
	a.arm(c)
	a.state = StateArmed
}

// OnMessage counts the payload digest and returns the message to the engine.
func (a *Aggregator) OnMessage(c engine.Conn, msg *engine.Message) {
	a.table.Add(Digest(msg.Payload))
	a.metrics.MessageReceived()
	c.Recycle(msg)
}

// OnFail logs the failure. There is no retry.
func (a *Aggregator) OnFail(c engine.Conn, err error) {
	a.logger.Warn("connection failed", "conn_id", c.ID(), "uri", c.URI(), "error", err)
	a.metrics.ConnectFailed()
	a.state = StateFailed
}

// OnClose cancels the report timer.
func (a *Aggregator) OnClose(c engine.Conn) {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.metrics.Closed()
	a.state = StateClosed
}

func (a *Aggregator) arm(c engine.Conn) {
	a.timer = c.AfterFunc(a.interval, func(err error) {
		a.onTimer(c, err)
	})
}

func (a *Aggregator) onTimer(c engine.Conn, err error) {
	if err != nil {
		a.logger.Error("report timer failed", "conn_id", c.ID(), "error", err)
		a.metrics.TimerFailed()
		a.state = StateReportingStopped
		return
	}

	a.flush(c)
	a.arm(c)
}

// flush sends the pending counts, if any, and clears the table.
func (a *Aggregator) flush(c engine.Conn) {
	if a.table.Len() == 0 {
		return
	}

	acks := a.table.Entries()
	a.table.Reset()

	payload, err := EncodeReport(acks)
	if err != nil {
		a.logger.Error("failed to encode report", "conn_id", c.ID(), "error", err)
		a.metrics.ReportFailed()
		return
	}

	if err := c.Send(payload, false); err != nil {
		a.logger.Warn("failed to send report", "conn_id", c.ID(), "digests", len(acks), "error", err)
		a.metrics.ReportFailed()
		return
	}
	a.metrics.ReportSent(len(acks))
}
