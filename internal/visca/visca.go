// Package visca implements the wire-level model of the VISCA master/slave
// protocol as seen by a passive tap: delimiting raw packets on a byte
// channel and classifying them against the catalog of known sequences.
package visca

import "time"

// Wire framing constants.
const (
	// Terminator ends every packet.
	Terminator = 0xFF

	// MinPacketSize and MaxPacketSize bound a legal packet, terminator
	// included.
	MinPacketSize = 3
	MaxPacketSize = 16
)

// Reply-type nibbles carried in the second byte of a slave packet. Socket
// variants (0x41, 0x51, ...) share the nibble of their base type.
const (
	ReplyAddress   = 0x30
	ReplyAck       = 0x40
	ReplyCompleted = 0x50
	ReplyError     = 0x60
)

// RawPacket is one delimited packet captured from a channel. It lives only
// long enough to be classified and reported.
type RawPacket struct {
	// Data holds the full packet including the leading byte and terminator.
	Data []byte

	// Received is the capture time of the first valid byte.
	Received time.Time

	// Channel names the stream the packet was captured on.
	Channel string
}

// Len returns the packet length in bytes.
func (p *RawPacket) Len() int {
	return len(p.Data)
}

// ReplyType returns the reply-type nibble of the second byte. Only
// meaningful for slave-channel packets.
func (p *RawPacket) ReplyType() byte {
	if len(p.Data) < 2 {
		return 0
	}
	return p.Data[1] & 0xF0
}

// IsAck reports whether the packet is an acknowledgement-type reply. Any
// other reply type (completion, error, address) terminates an exchange.
func (p *RawPacket) IsAck() bool {
	return p.ReplyType() == ReplyAck
}
