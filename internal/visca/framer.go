package visca

import (
	"fmt"
	"time"

	"github.com/camkit/viscatap/internal/timeutil"
)

// ByteReader is the single-byte read contract the framer consumes.
// serialport.Port satisfies it.
type ByteReader interface {
	ReadByte() (byte, error)
}

// FrameKind identifies how a framing attempt failed.
type FrameKind int

const (
	// BadHeader means the first byte did not have its high bit set.
	BadHeader FrameKind = iota

	// Overflow means MaxPacketSize bytes accumulated without a terminator.
	Overflow

	// Timeout means a read stalled before the packet completed.
	Timeout

	// TooShort means a terminated packet was under MinPacketSize bytes.
	TooShort
)

func (k FrameKind) String() string {
	switch k {
	case BadHeader:
		return "bad header"
	case Overflow:
		return "overflow"
	case Timeout:
		return "timeout"
	case TooShort:
		return "packet too short"
	default:
		return fmt.Sprintf("frame kind %d", int(k))
	}
}

// FrameError describes a failed framing attempt. Bytes holds whatever was
// collected before the failure so the partial packet can be dumped.
type FrameError struct {
	Kind    FrameKind
	Channel string
	Bytes   []byte
	At      time.Time
	Err     error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s after %d bytes: %v", e.Channel, e.Kind, len(e.Bytes), e.Err)
	}
	return fmt.Sprintf("%s: %s after %d bytes", e.Channel, e.Kind, len(e.Bytes))
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Framer delimits packets on one channel. It is stateless between packets:
// resynchronization after a failure is implicit, since the next byte with
// its high bit set starts a new packet.
type Framer struct {
	channel string
	clock   timeutil.Clock
}

// NewFramer creates a framer for the named channel.
func NewFramer(channel string, clock timeutil.Clock) *Framer {
	return &Framer{channel: channel, clock: clock}
}

// Read consumes bytes from r until one packet is delimited. On success the
// returned packet carries the exact byte sequence, terminator included, and
// the capture time of the first valid byte. On failure the returned error
// is a *FrameError; the reader's framing state is simply abandoned.
func (f *Framer) Read(r ByteReader) (*RawPacket, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, &FrameError{Kind: Timeout, Channel: f.channel, At: f.clock.Now(), Err: err}
	}
	if b&0x80 == 0 {
		return nil, &FrameError{Kind: BadHeader, Channel: f.channel, Bytes: []byte{b}, At: f.clock.Now()}
	}

	received := f.clock.Now()
	buf := make([]byte, 0, MaxPacketSize)
	buf = append(buf, b)

	for buf[len(buf)-1] != Terminator {
		if len(buf) >= MaxPacketSize {
			return nil, &FrameError{Kind: Overflow, Channel: f.channel, Bytes: buf, At: received}
		}
		b, err = r.ReadByte()
		if err != nil {
			return nil, &FrameError{Kind: Timeout, Channel: f.channel, Bytes: buf, At: received, Err: err}
		}
		buf = append(buf, b)
	}

	if len(buf) < MinPacketSize {
		return nil, &FrameError{Kind: TooShort, Channel: f.channel, Bytes: buf, At: received}
	}

	return &RawPacket{Data: buf, Received: received, Channel: f.channel}, nil
}
