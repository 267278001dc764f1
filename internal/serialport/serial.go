package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/camkit/viscatap/internal/monitoring"
)

// pollTimeout bounds the speculative read used by Available. Long enough to
// pick up a byte already sitting in the driver buffer, short enough that an
// idle channel does not stall the loop's visit to the other channel.
const pollTimeout = time.Millisecond

// realPort adapts a go.bug.st/serial port to the Port contract. The library
// exposes a timed bulk Read, so availability polling is implemented with a
// one-byte read-ahead buffer: Available performs a near-zero-timeout read
// and parks any byte it obtains for the next ReadByte.
type realPort struct {
	name    string
	port    serial.Port
	timeout time.Duration
	debug   bool
	peek    []byte
	closed  bool
}

// Open opens the serial device at name with the given options. Failures are
// wrapped in ErrInvalidPort so callers can treat open and configure errors
// uniformly.
func Open(name string, opts Options) (Port, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPort, name, err)
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPort, name, err)
	}

	if opts.Exclusive {
		// The POSIX backend already holds the device exclusively (TIOCEXCL);
		// the flag is surfaced so operators see that it was requested.
		monitoring.Logf("serialport: %s opened with exclusive access", name)
	}
	monitoring.Logf("serialport: %s opened (%d baud, %d data bits, read timeout %s)",
		name, opts.BaudRate, opts.DataBits, opts.ReadTimeout())

	return &realPort{
		name:    name,
		port:    port,
		timeout: opts.ReadTimeout(),
		debug:   opts.Debug,
	}, nil
}

func (p *realPort) Available() bool {
	if p.closed {
		return false
	}
	if len(p.peek) > 0 {
		return true
	}

	if err := p.port.SetReadTimeout(pollTimeout); err != nil {
		return false
	}
	buf := make([]byte, 1)
	n, err := p.port.Read(buf)
	if err != nil || n == 0 {
		return false
	}

	p.peek = append(p.peek, buf[0])
	if p.debug {
		monitoring.Debugf("serialport: %s poll buffered %02X", p.name, buf[0])
	}
	return true
}

func (p *realPort) ReadByte() (byte, error) {
	if p.closed {
		return 0, ErrPortClosed
	}
	if len(p.peek) > 0 {
		b := p.peek[0]
		p.peek = p.peek[1:]
		return b, nil
	}

	if err := p.port.SetReadTimeout(p.timeout); err != nil {
		return 0, fmt.Errorf("setting read timeout on %s: %w", p.name, err)
	}
	buf := make([]byte, 1)
	n, err := p.port.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", p.name, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s: %w after %s", p.name, ErrReadTimeout, p.timeout)
	}

	if p.debug {
		monitoring.Debugf("serialport: %s read %02X", p.name, buf[0])
	}
	return buf[0], nil
}

func (p *realPort) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", p.name, err)
	}
	monitoring.Logf("serialport: %s closed", p.name)
	return nil
}
