package serialport

import (
	"sync"
)

// MockPort implements Port with a scripted queue of bytes and errors. It
// provides fine-grained control over stalls and close behaviour for tests.
type MockPort struct {
	mu sync.Mutex

	// queue of pending steps, each either a byte or an error
	steps []mockStep

	// CloseError is returned by the first Close call if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of ReadByte calls
	ReadCalls int
}

type mockStep struct {
	b   byte
	err error
}

// NewMockPort creates an empty MockPort. With nothing enqueued, Available
// reports false and ReadByte stalls with ErrReadTimeout.
func NewMockPort() *MockPort {
	return &MockPort{}
}

// Enqueue appends bytes to be returned by subsequent ReadByte calls.
func (m *MockPort) Enqueue(data ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range data {
		m.steps = append(m.steps, mockStep{b: b})
	}
}

// EnqueueError appends a scripted read failure, e.g. a mid-packet stall.
func (m *MockPort) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
}

// Available reports whether the next scripted step is a byte.
func (m *MockPort) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Closed && len(m.steps) > 0 && m.steps[0].err == nil
}

// ReadByte pops the next scripted step. An exhausted queue behaves like a
// stalled channel.
func (m *MockPort) ReadByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadCalls++

	if m.Closed {
		return 0, ErrPortClosed
	}
	if len(m.steps) == 0 {
		return 0, ErrReadTimeout
	}

	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.err != nil {
		return 0, step.err
	}
	return step.b, nil
}

// Close marks the port as closed.
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.CloseError
	m.CloseError = nil
	m.Closed = true
	return err
}

// Pending returns the number of unconsumed scripted steps.
func (m *MockPort) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// MockOpener implements Opener over a fixed set of ports, recording every
// open call.
type MockOpener struct {
	mu sync.Mutex

	// Ports maps device paths to the port returned for them
	Ports map[string]Port

	// Err is returned by Open if set
	Err error

	// OpenCalls records all open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Name string
	Opts Options
}

// NewMockOpener creates a MockOpener serving the given ports.
func NewMockOpener(ports map[string]Port) *MockOpener {
	return &MockOpener{Ports: ports}
}

// Open returns the configured port for name, or ErrInvalidPort when the
// path is unknown.
func (o *MockOpener) Open(name string, opts Options) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.OpenCalls = append(o.OpenCalls, MockOpenCall{Name: name, Opts: opts})

	if o.Err != nil {
		return nil, o.Err
	}
	port, ok := o.Ports[name]
	if !ok {
		return nil, ErrInvalidPort
	}
	return port, nil
}
