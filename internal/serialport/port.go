// Package serialport abstracts the two observed UART channels behind a
// poll-for-availability plus bounded-wait read interface. The framing layer
// only ever consumes single bytes, so the contract is deliberately narrow;
// real ports are backed by go.bug.st/serial and tests use MockPort.
package serialport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPort indicates the device could not be opened or configured.
	ErrInvalidPort = errors.New("serial port cannot be opened")

	// ErrNoData indicates a read found no byte waiting.
	ErrNoData = errors.New("no data available")

	// ErrReadTimeout indicates a read gave up after the configured timeout.
	ErrReadTimeout = errors.New("read timed out")

	// ErrPortClosed indicates an operation on a closed port.
	ErrPortClosed = errors.New("serial port is closed")
)

// Port is the byte-channel contract consumed by the packet framer and the
// capture loop. Implementations are used from a single goroutine.
type Port interface {
	// Available reports whether at least one byte can be read without
	// waiting for the full read timeout.
	Available() bool

	// ReadByte returns the next byte from the channel, waiting up to the
	// configured per-read timeout. A stall yields ErrReadTimeout.
	ReadByte() (byte, error)

	// Close releases the underlying device. Closing twice is allowed.
	Close() error
}

// Opener opens a Port at the given device path. Injected so the command can
// run against mock ports in tests.
type Opener func(name string, opts Options) (Port, error)

// Options describes how an observed channel is opened. The protocol runs at
// a fixed 9600 8N1, so those are the defaults rather than required input.
type Options struct {
	BaudRate       int
	DataBits       int
	Exclusive      bool // request exclusive access to the device
	Debug          bool // log byte-level channel activity
	TimeoutSeconds int  // per-read timeout; 0 selects the implementation default
}

const defaultReadTimeout = 2 * time.Second

// Normalize validates the options and applies defaults for any unset values.
func (o Options) Normalize() (Options, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.TimeoutSeconds < 0 {
		return opts, fmt.Errorf("invalid timeout %ds: must not be negative", opts.TimeoutSeconds)
	}

	return opts, nil
}

// ReadTimeout converts the configured timeout seconds into a duration,
// falling back to the implementation default when unset.
func (o Options) ReadTimeout() time.Duration {
	if o.TimeoutSeconds > 0 {
		return time.Duration(o.TimeoutSeconds) * time.Second
	}
	return defaultReadTimeout
}
