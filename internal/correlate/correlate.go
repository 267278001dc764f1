// Package correlate pairs master commands with slave replies across the two
// observed channels and maintains the run-wide latency statistics.
package correlate

import (
	"time"

	"github.com/camkit/viscatap/internal/monitoring"
	"github.com/camkit/viscatap/internal/visca"
)

// SummaryInterval is the number of framed slave packets between periodic
// summary lines. The tally resets each summary; the averages do not.
const SummaryInterval = 100

// ReplyKind distinguishes which average a measurement fed.
type ReplyKind int

const (
	// KindAck is an intermediate acknowledgement; the exchange stays open.
	KindAck ReplyKind = iota

	// KindCompletion is a terminal reply; the exchange is closed. Error and
	// address replies close the exchange the same way.
	KindCompletion
)

// Letter returns the single-character tag used in trace lines.
func (k ReplyKind) Letter() byte {
	if k == KindAck {
		return 'A'
	}
	return 'D'
}

// Measurement describes what one slave packet contributed to the statistics.
type Measurement struct {
	// Measured is false when no command was outstanding; all other fields
	// are then zero.
	Measured bool

	// Elapsed is the reply latency in whole milliseconds. May be negative
	// on a channel-ordering or clock anomaly.
	Elapsed int64

	// Kind selects the average the sample was offered to.
	Kind ReplyKind

	// Mean and Count snapshot that average after this packet.
	Mean  float64
	Count int64

	// Included is false when the sample was rejected as an outlier or
	// anomaly; the elapsed value is still reported for display.
	Included bool

	// Anomaly flags a negative elapsed time.
	Anomaly bool
}

// Correlator is the cross-channel state machine. It holds at most one
// pending exchange: a command issued while a reply is still outstanding
// overwrites the pending timestamp, so the eventual completion latency is
// measured against the newer command. That mirrors the observed tool's
// behaviour with pipelined commands and is kept as documented behaviour.
type Correlator struct {
	awaiting  bool
	pendingAt time.Time

	ack  *RunningAverage
	done *RunningAverage

	tally int
}

// New creates a correlator with the standard outlier threshold and summary
// interval.
func New() *Correlator {
	return &Correlator{
		ack:  NewRunningAverage(OutlierThreshold),
		done: NewRunningAverage(OutlierThreshold),
	}
}

// RecordMaster notes a framed master-channel packet. The correlator moves
// to (or stays in) the awaiting-reply state with this packet's timestamp as
// the pending exchange.
func (c *Correlator) RecordMaster(p *visca.RawPacket) {
	if c.awaiting {
		monitoring.Debugf("correlate: new command before completion; pending timestamp replaced")
	}
	c.awaiting = true
	c.pendingAt = p.Received
}

// RecordSlave processes a framed slave-channel packet. It returns the
// resulting measurement and whether a periodic summary is due.
func (c *Correlator) RecordSlave(p *visca.RawPacket) (Measurement, bool) {
	var m Measurement

	if c.awaiting {
		m.Measured = true
		m.Elapsed = p.Received.Sub(c.pendingAt).Milliseconds()

		avg := c.done
		m.Kind = KindCompletion
		if p.IsAck() {
			avg = c.ack
			m.Kind = KindAck
		} else {
			// completion closes the exchange; an ack keeps it open for
			// the completion still to come
			c.awaiting = false
		}

		switch {
		case m.Elapsed < 0:
			m.Anomaly = true
			monitoring.Logf("correlate: negative elapsed time (%d ms) on %s; channel ordering or clock anomaly",
				m.Elapsed, p.Channel)
		default:
			m.Included = avg.Add(m.Elapsed)
			if !m.Included {
				monitoring.Logf("correlate: skipping outlier sample (%d ms)", m.Elapsed)
			}
		}

		snap := avg.Snapshot()
		m.Mean = snap.Mean
		m.Count = snap.Count
	} else {
		monitoring.Debugf("correlate: reply on %s with no outstanding command", p.Channel)
	}

	c.tally++
	due := c.tally >= SummaryInterval
	if due {
		c.tally = 0
	}
	return m, due
}

// Awaiting reports whether a master command is outstanding.
func (c *Correlator) Awaiting() bool {
	return c.awaiting
}

// AckSnapshot returns the acknowledgement average.
func (c *Correlator) AckSnapshot() AverageSnapshot {
	return c.ack.Snapshot()
}

// CompletionSnapshot returns the completion average.
func (c *Correlator) CompletionSnapshot() AverageSnapshot {
	return c.done.Snapshot()
}
