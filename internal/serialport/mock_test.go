package serialport

import (
	"errors"
	"testing"
)

func TestMockPortReadsScriptedBytes(t *testing.T) {
	port := NewMockPort()
	port.Enqueue(0x81, 0x01, 0xFF)

	if !port.Available() {
		t.Fatal("Available() = false with queued bytes")
	}

	for i, want := range []byte{0x81, 0x01, 0xFF} {
		got, err := port.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte() #%d error: %v", i, err)
		}
		if got != want {
			t.Errorf("ReadByte() #%d = %02X, want %02X", i, got, want)
		}
	}

	if port.Available() {
		t.Error("Available() = true on drained port")
	}
	if port.ReadCalls != 3 {
		t.Errorf("ReadCalls = %d, want 3", port.ReadCalls)
	}
}

func TestMockPortStallsWhenDrained(t *testing.T) {
	port := NewMockPort()
	if _, err := port.ReadByte(); !errors.Is(err, ErrReadTimeout) {
		t.Errorf("ReadByte() on empty port = %v, want ErrReadTimeout", err)
	}
}

func TestMockPortScriptedError(t *testing.T) {
	port := NewMockPort()
	port.Enqueue(0x81)
	port.EnqueueError(ErrReadTimeout)
	port.Enqueue(0xFF)

	if _, err := port.ReadByte(); err != nil {
		t.Fatalf("ReadByte() error: %v", err)
	}
	// the scripted error is next, so the port no longer polls as ready
	if port.Available() {
		t.Error("Available() = true with a scripted stall pending")
	}
	if _, err := port.ReadByte(); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("ReadByte() = %v, want scripted ErrReadTimeout", err)
	}
	b, err := port.ReadByte()
	if err != nil || b != 0xFF {
		t.Errorf("ReadByte() after stall = %02X, %v; want FF, nil", b, err)
	}
}

func TestMockPortClose(t *testing.T) {
	port := NewMockPort()
	port.Enqueue(0x81)
	if err := port.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !port.Closed {
		t.Error("Closed = false after Close")
	}
	if port.Available() {
		t.Error("Available() = true on closed port")
	}
	if _, err := port.ReadByte(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("ReadByte() on closed port = %v, want ErrPortClosed", err)
	}
	// closing twice is allowed
	if err := port.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestMockOpener(t *testing.T) {
	master := NewMockPort()
	opener := NewMockOpener(map[string]Port{"/dev/ttyUSB0": master})

	port, err := opener.Open("/dev/ttyUSB0", Options{TimeoutSeconds: 2})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if port != Port(master) {
		t.Error("Open() returned wrong port")
	}

	if _, err := opener.Open("/dev/nope", Options{}); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("Open(unknown) = %v, want ErrInvalidPort", err)
	}

	if len(opener.OpenCalls) != 2 {
		t.Fatalf("OpenCalls = %d, want 2", len(opener.OpenCalls))
	}
	if opener.OpenCalls[0].Opts.TimeoutSeconds != 2 {
		t.Errorf("recorded options = %+v, want TimeoutSeconds 2", opener.OpenCalls[0].Opts)
	}
}
