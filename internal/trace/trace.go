// Package trace renders the capture output: one line per packet or framing
// failure and a summary line every hundred slave packets. Rendered lines go
// to a writer (normally stdout) and are also broadcast to subscribers so
// the admin listener can tail the trace live.
package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camkit/viscatap/internal/correlate"
	"github.com/camkit/viscatap/internal/visca"
)

// blankTiming is printed when no measurement applies to a packet. Same
// width as a populated timing field so the name column stays aligned.
const blankTiming = "{    /       } "

// ChannelCounts carries a channel's unknown and error tallies into the
// summary line.
type ChannelCounts struct {
	Unknown int64
	Errors  int64
}

// Reporter renders and distributes trace lines. Rendering happens on the
// capture goroutine; the mutex only guards the subscriber map, which the
// admin listener touches from its own goroutines.
type Reporter struct {
	w io.Writer

	mu          sync.Mutex
	subscribers map[string]chan string
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{
		w:           w,
		subscribers: make(map[string]chan string),
	}
}

// Packet renders one captured packet. entry is nil for an Unknown
// classification; m carries the correlation result for slave packets.
func (r *Reporter) Packet(p *visca.RawPacket, entry *visca.Entry, m correlate.Measurement) {
	name := "??"
	if entry != nil {
		name = entry.Display()
	}

	timing := blankTiming
	if m.Measured {
		timing = fmt.Sprintf("{%04d/%6.2f%c} ", m.Elapsed, m.Mean, m.Kind.Letter())
	}

	r.emit(fmt.Sprintf("%s %3.3s: %s%s - %s",
		formatTime(p.Received), p.Channel, hexDump(p.Data), timing, name))
}

// FrameFailure renders a failed framing attempt: the partial hex dump with
// an explicit error marker instead of a name.
func (r *Reporter) FrameFailure(fe *visca.FrameError) {
	r.emit(fmt.Sprintf("%s %3.3s: %sERROR (%s)",
		formatTime(fe.At), fe.Channel, hexDump(fe.Bytes), fe.Kind))
}

// Summary renders the periodic statistics line: both running means with
// their sample counts, then the unknown and error tallies of both channels
// (master first).
func (r *Reporter) Summary(ack, done correlate.AverageSnapshot, master, slave ChannelCounts) {
	r.emit(fmt.Sprintf("~~~~~~~~~~~~~~~~~~~ ack=%.2f (%d) | done=%.2f (%d) [ms] | unknown=%d/%d | errors=%d/%d",
		ack.Mean, ack.Count,
		done.Mean, done.Count,
		master.Unknown, slave.Unknown,
		master.Errors, slave.Errors))
}

// Rule renders the separator printed at the start and end of a capture.
func (r *Reporter) Rule() {
	r.emit(strings.Repeat("=", 46))
}

// Subscribe registers a listener for rendered lines. The channel is
// buffered; a subscriber that falls behind misses lines rather than
// stalling the capture loop.
func (r *Reporter) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, 64)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (r *Reporter) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

// Close drops all subscribers. The writer is left to its owner.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
}

func (r *Reporter) emit(line string) {
	fmt.Fprintln(r.w, line)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// formatTime renders a capture timestamp as HH:MM:SS[mmmm] with
// millisecond resolution.
func formatTime(t time.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d[%04d]",
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}

// hexDump renders the packet bytes as fixed-width hex, padded out to the
// maximum packet length so every line's columns align.
func hexDump(data []byte) string {
	var b strings.Builder
	for i := 0; i < visca.MaxPacketSize; i++ {
		if i < len(data) {
			fmt.Fprintf(&b, "%02X ", data[i])
		} else {
			b.WriteString("   ")
		}
	}
	return b.String()
}
