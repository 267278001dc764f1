// Package tap drives the capture: it polls the two observed channels, frames
// and classifies their packets, feeds the correlator, and hands everything
// to the reporter. All cross-packet state lives here and in the correlator,
// and it is only ever touched from the single capture goroutine; the
// session mutex exists solely so the admin listener can take consistent
// snapshots.
package tap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/camkit/viscatap/internal/correlate"
	"github.com/camkit/viscatap/internal/monitoring"
	"github.com/camkit/viscatap/internal/serialport"
	"github.com/camkit/viscatap/internal/timeutil"
	"github.com/camkit/viscatap/internal/trace"
	"github.com/camkit/viscatap/internal/visca"
)

// idleDelay paces the poll loop when neither channel has data.
const idleDelay = time.Millisecond

// Channel is one observed stream: its port, its framer, and its cumulative
// counters.
type Channel struct {
	Name string

	port   serialport.Port
	framer *visca.Framer

	packets int64 // successfully framed packets
	unknown int64 // packets classified Unknown
	errors  int64 // counted framing/classification failures

	closed bool
}

// NewChannel wraps a port as an observed channel.
func NewChannel(name string, port serialport.Port, clock timeutil.Clock) *Channel {
	return &Channel{
		Name:   name,
		port:   port,
		framer: visca.NewFramer(name, clock),
	}
}

// Close releases the channel's port. Safe to call more than once.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}

// ChannelStats is a point-in-time view of one channel's counters.
type ChannelStats struct {
	Packets int64
	Unknown int64
	Errors  int64
}

// Stats is a point-in-time view of the whole session.
type Stats struct {
	Master ChannelStats
	Slave  ChannelStats
	Ack    correlate.AverageSnapshot
	Done   correlate.AverageSnapshot
}

// Session owns the capture state: both channels, the shared classifier
// table, the correlator, and the reporter.
type Session struct {
	mu sync.Mutex

	clock  timeutil.Clock
	master *Channel
	slave  *Channel
	table  visca.Table
	corr   *correlate.Correlator
	rep    *trace.Reporter
}

// NewSession assembles a session over the two channels.
func NewSession(master, slave *Channel, rep *trace.Reporter, clock timeutil.Clock) *Session {
	return &Session{
		clock:  clock,
		master: master,
		slave:  slave,
		table:  visca.DefaultTable,
		corr:   correlate.New(),
		rep:    rep,
	}
}

// Run is the capture loop. It polls both channels in turn and services
// whichever has data; framing and correlation failures are reported and the
// loop continues. Run returns only when ctx is cancelled, and both ports
// are closed before it returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		busy := false
		if s.master.port.Available() {
			busy = true
			s.serviceMaster()
		}
		if s.slave.port.Available() {
			busy = true
			s.serviceSlave()
		}

		if !busy {
			s.clock.Sleep(idleDelay)
		}
	}
}

// Close releases both ports. Every exit path of Run comes through here, and
// the command defers it as well for paths that never reach Run.
func (s *Session) Close() {
	if err := s.master.Close(); err != nil {
		monitoring.Logf("tap: closing %s: %v", s.master.Name, err)
	}
	if err := s.slave.Close(); err != nil {
		monitoring.Logf("tap: closing %s: %v", s.slave.Name, err)
	}
}

// Stats returns a consistent snapshot of all counters and averages.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Master: ChannelStats{Packets: s.master.packets, Unknown: s.master.unknown, Errors: s.master.errors},
		Slave:  ChannelStats{Packets: s.slave.packets, Unknown: s.slave.unknown, Errors: s.slave.errors},
		Ack:    s.corr.AckSnapshot(),
		Done:   s.corr.CompletionSnapshot(),
	}
}

func (s *Session) serviceMaster() {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkt, err := s.frame(s.master)
	if err != nil {
		return
	}
	entry := s.classify(s.master, pkt)
	s.corr.RecordMaster(pkt)
	s.rep.Packet(pkt, entry, correlate.Measurement{})
}

func (s *Session) serviceSlave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkt, err := s.frame(s.slave)
	if err != nil {
		return
	}
	entry := s.classify(s.slave, pkt)
	m, summaryDue := s.corr.RecordSlave(pkt)
	s.rep.Packet(pkt, entry, m)

	if summaryDue {
		s.rep.Summary(
			s.corr.AckSnapshot(), s.corr.CompletionSnapshot(),
			trace.ChannelCounts{Unknown: s.master.unknown, Errors: s.master.errors},
			trace.ChannelCounts{Unknown: s.slave.unknown, Errors: s.slave.errors},
		)
	}
}

// frame reads one packet from the channel, applying the error-counting
// rule: a bad header before the channel's first successful packet is
// start-of-stream noise and is not counted or dumped.
func (s *Session) frame(c *Channel) (*visca.RawPacket, error) {
	pkt, err := c.framer.Read(c.port)
	if err == nil {
		c.packets++
		return pkt, nil
	}

	var fe *visca.FrameError
	if !errors.As(err, &fe) {
		c.errors++
		monitoring.Logf("tap: %s: %v", c.Name, err)
		return nil, err
	}

	if fe.Kind != visca.BadHeader || c.packets > 0 {
		c.errors++
	}
	monitoring.Logf("tap: %s: %v", c.Name, fe)
	if fe.Kind != visca.BadHeader {
		s.rep.FrameFailure(fe)
	}
	return nil, err
}

// classify resolves the packet against the catalog, maintaining the unknown
// counter. A classification error (possible only for packets below the
// framer's minimum size) counts as a channel error.
func (s *Session) classify(c *Channel, pkt *visca.RawPacket) *visca.Entry {
	entry, err := s.table.Classify(pkt)
	if err != nil {
		c.errors++
		monitoring.Logf("tap: %s: %v", c.Name, err)
		return nil
	}
	if entry == nil {
		c.unknown++
	}
	return entry
}
