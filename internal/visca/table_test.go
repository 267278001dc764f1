package visca

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packetFromBytes(data ...byte) *RawPacket {
	return &RawPacket{Data: data, Received: time.Unix(0, 0), Channel: "CTL"}
}

// syntheticPacket builds {leading byte, fixed prefix, zero filler up to the
// declared body length, terminator} for a catalog entry.
func syntheticPacket(e *Entry) *RawPacket {
	lead := byte(0x81)
	if e.Kind == KindReply {
		lead = 0x90
	}
	data := []byte{lead}
	data = append(data, e.Prefix[:e.Comparable]...)
	for len(data)-1 < e.Length {
		data = append(data, 0x00)
	}
	data = append(data, Terminator)
	return packetFromBytes(data...)
}

func TestCatalogInvariants(t *testing.T) {
	require.NotEmpty(t, DefaultTable)
	for i := range DefaultTable {
		e := &DefaultTable[i]
		assert.LessOrEqual(t, e.Comparable, e.Length, "entry %q", e.Name)
		assert.GreaterOrEqual(t, len(e.Prefix), e.Comparable, "entry %q", e.Name)
		assert.Greater(t, e.Length, 0, "entry %q", e.Name)
	}
}

func TestEveryEntryClassifiesToItself(t *testing.T) {
	for i := range DefaultTable {
		e := &DefaultTable[i]
		t.Run(e.Name, func(t *testing.T) {
			pkt := syntheticPacket(e)
			got, err := DefaultTable.Classify(pkt)
			require.NoError(t, err)
			require.NotNil(t, got, "packet % X classified Unknown", pkt.Data)
			// shared-name entries (Not Executable, **ERROR**) may collapse
			// onto an earlier entry with identical shape semantics; the
			// match must at least resolve by table order to the first
			// entry that fits.
			assert.Equal(t, firstMatch(pkt), got)
		})
	}
}

// firstMatch re-derives the expected winner by a naive scan, pinning the
// first-match-wins policy independently of Classify's implementation.
func firstMatch(p *RawPacket) *Entry {
	body := p.Data[1 : len(p.Data)-1]
	for i := range DefaultTable {
		e := &DefaultTable[i]
		if e.Length != len(body) {
			continue
		}
		ok := true
		for j := 0; j < e.Comparable; j++ {
			if body[j] != e.Prefix[j] {
				ok = false
				break
			}
		}
		if ok {
			return e
		}
	}
	return nil
}

func TestClassifyUnknownLength(t *testing.T) {
	// no catalog entry declares a body length of 6
	pkt := packetFromBytes(0x81, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0xFF)
	got, err := DefaultTable.Classify(pkt)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClassifyUnknownPrefix(t *testing.T) {
	pkt := packetFromBytes(0x81, 0x7F, 0x7F, 0x7F, 0xFF)
	got, err := DefaultTable.Classify(pkt)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClassifyTooShortIsError(t *testing.T) {
	pkt := packetFromBytes(0x81, 0xFF)
	got, err := DefaultTable.Classify(pkt)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestClassifyIsPure(t *testing.T) {
	pkt := packetFromBytes(0x81, 0x01, 0x00, 0x01, 0xFF)
	first, err := DefaultTable.Classify(pkt)
	require.NoError(t, err)
	second, err := DefaultTable.Classify(pkt)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []byte{0x81, 0x01, 0x00, 0x01, 0xFF}, pkt.Data)
}

func TestClassifyIfClearScenario(t *testing.T) {
	cmd, err := DefaultTable.Classify(packetFromBytes(0x81, 0x01, 0x00, 0x01, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "IfClear", cmd.Name)
	assert.Equal(t, KindCommand, cmd.Kind)
	assert.Equal(t, "CMD: IfClear", cmd.Display())

	done, err := DefaultTable.Classify(packetFromBytes(0x90, 0x50, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, "Done", done.Name)
	assert.Equal(t, "RPL: Done", done.Display())
}

func TestClassifyReplyLengthVariants(t *testing.T) {
	// PowerInq gets a parameterized reply: same leading 0x50 byte as Done
	// but with a parameter byte, so total length must disambiguate.
	inq, err := DefaultTable.Classify(packetFromBytes(0x81, 0x09, 0x04, 0x00, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, inq)
	assert.Equal(t, "PowerInq", inq.Name)

	byteReply, err := DefaultTable.Classify(packetFromBytes(0x90, 0x50, 0x02, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, byteReply)
	assert.Equal(t, "Byte", byteReply.Name)

	wordReply, err := DefaultTable.Classify(packetFromBytes(0x90, 0x50, 0x01, 0x02, 0x03, 0x04, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, wordReply)
	assert.Equal(t, "Word", wordReply.Name)
}

func TestClassifyFirstMatchWinsOnOrder(t *testing.T) {
	// 0x61 0x41 fits both "Not Executable" (comparable 2) and "**ERROR**"
	// (comparable 1); declaration order picks Not Executable.
	got, err := DefaultTable.Classify(packetFromBytes(0x90, 0x61, 0x41, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Not Executable", got.Name)

	// any other second byte falls through to the generic error entry
	got, err = DefaultTable.Classify(packetFromBytes(0x90, 0x61, 0x02, 0xFF))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "**ERROR**", got.Name)
}

func TestReplyTypeNibbles(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		typ   byte
		isAck bool
	}{
		{"ack", []byte{0x90, 0x41, 0xFF}, ReplyAck, true},
		{"done", []byte{0x90, 0x50, 0xFF}, ReplyCompleted, false},
		{"done sock2", []byte{0x90, 0x52, 0xFF}, ReplyCompleted, false},
		{"error", []byte{0x90, 0x61, 0x02, 0xFF}, ReplyError, false},
		{"address", []byte{0x90, 0x30, 0x02, 0xFF}, ReplyAddress, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := packetFromBytes(tt.data...)
			assert.Equal(t, tt.typ, pkt.ReplyType())
			assert.Equal(t, tt.isAck, pkt.IsAck())
		})
	}
}
