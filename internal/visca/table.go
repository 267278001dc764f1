package visca

import (
	"bytes"
	"fmt"
)

// EntryKind distinguishes master commands from slave replies in the catalog.
type EntryKind int

const (
	KindCommand EntryKind = iota
	KindReply
)

// Entry describes one known packet shape. A packet body (the bytes between
// the leading byte and the terminator) matches when its length equals
// Length and its first Comparable bytes equal the first Comparable bytes of
// Prefix. The remaining Length-Comparable bytes are variable parameters and
// are never compared.
type Entry struct {
	Name       string
	Kind       EntryKind
	Prefix     []byte
	Length     int // declared body length, parameter bytes included
	Comparable int // leading bytes of the body that must match exactly
}

// Display returns the name as printed in trace lines.
func (e *Entry) Display() string {
	if e.Kind == KindReply {
		return "RPL: " + e.Name
	}
	return "CMD: " + e.Name
}

// Table is an ordered, immutable catalog of known packet shapes. Order is
// load-bearing: the first matching entry wins, which is how shapes sharing
// a prefix (Word/Byte/Done, NotExecutable/Error) are disambiguated.
type Table []Entry

// Classify maps a framed packet to the first matching catalog entry, or nil
// when no entry matches (the Unknown outcome). A packet too short to carry
// a body is an error, not Unknown; the framer's minimum size makes that
// unreachable in normal operation.
func (t Table) Classify(p *RawPacket) (*Entry, error) {
	if p.Len() <= 2 {
		return nil, fmt.Errorf("packet too short to classify (%d bytes)", p.Len())
	}
	body := p.Data[1 : p.Len()-1]

	for i := range t {
		e := &t[i]
		if e.Length != len(body) {
			continue
		}
		if bytes.Equal(body[:e.Comparable], e.Prefix[:e.Comparable]) {
			return e, nil
		}
	}
	return nil, nil
}

// DefaultTable is the VISCA sequence catalog. Entries whose Comparable is
// shorter than their Prefix (Title) compare only the leading bytes; the
// trailing prefix bytes document the usual parameter value.
var DefaultTable = Table{
	{Name: "IfClear", Kind: KindCommand, Prefix: []byte{0x01, 0x00, 0x01}, Length: 3, Comparable: 3},
	{Name: "Power", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x00}, Length: 4, Comparable: 3},
	{Name: "Zoom", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x07}, Length: 4, Comparable: 3},
	{Name: "Focus", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x08}, Length: 4, Comparable: 3},
	{Name: "Iris", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x0B}, Length: 4, Comparable: 3},
	{Name: "WBTrigger", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x10, 0x05}, Length: 4, Comparable: 4},
	{Name: "FocusTrigger", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x18, 0x01}, Length: 4, Comparable: 4},
	{Name: "WB", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x35}, Length: 4, Comparable: 3},
	{Name: "DZoom", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x36, 0x00}, Length: 4, Comparable: 4},
	{Name: "FocusMode", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x38}, Length: 4, Comparable: 3},
	{Name: "AE", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x39}, Length: 4, Comparable: 3},
	{Name: "ZoomDirect", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x47}, Length: 7, Comparable: 3},
	{Name: "Freeze", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x62}, Length: 4, Comparable: 3},
	{Name: "Title", Kind: KindCommand, Prefix: []byte{0x01, 0x04, 0x74, 0x03}, Length: 4, Comparable: 3},
	{Name: "PowerInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x00}, Length: 3, Comparable: 3},
	{Name: "FocusModeInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x38}, Length: 3, Comparable: 3},
	{Name: "FocusPositionInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x48}, Length: 3, Comparable: 3},
	{Name: "AEModeInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x39}, Length: 3, Comparable: 3},
	{Name: "ZoomPosInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x47}, Length: 3, Comparable: 3},
	{Name: "IrisPosInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x4B}, Length: 3, Comparable: 3},
	{Name: "FreezeModeInq", Kind: KindCommand, Prefix: []byte{0x09, 0x04, 0x62}, Length: 3, Comparable: 3},
	{Name: "SetAddress", Kind: KindCommand, Prefix: []byte{0x30, 0x01}, Length: 2, Comparable: 2},
	{Name: "ExtTurn", Kind: KindCommand, Prefix: []byte{0x77, 0x01}, Length: 3, Comparable: 2},
	{Name: "ExtPairing", Kind: KindCommand, Prefix: []byte{0x77, 0x02}, Length: 2, Comparable: 2},

	{Name: "Address", Kind: KindReply, Prefix: []byte{0x30, 0x02}, Length: 2, Comparable: 2},
	{Name: "Ack", Kind: KindReply, Prefix: []byte{0x40}, Length: 1, Comparable: 1},
	{Name: "Ack Sock1", Kind: KindReply, Prefix: []byte{0x41}, Length: 1, Comparable: 1},
	{Name: "Ack Sock2", Kind: KindReply, Prefix: []byte{0x42}, Length: 1, Comparable: 1},
	{Name: "Word", Kind: KindReply, Prefix: []byte{0x50}, Length: 5, Comparable: 1},
	{Name: "Byte", Kind: KindReply, Prefix: []byte{0x50}, Length: 2, Comparable: 1},
	{Name: "Done", Kind: KindReply, Prefix: []byte{0x50}, Length: 1, Comparable: 1},
	{Name: "Done Sock1", Kind: KindReply, Prefix: []byte{0x51}, Length: 1, Comparable: 1},
	{Name: "Done Sock2", Kind: KindReply, Prefix: []byte{0x52}, Length: 1, Comparable: 1},
	{Name: "Not Executable", Kind: KindReply, Prefix: []byte{0x61, 0x41}, Length: 2, Comparable: 2},
	{Name: "Not Executable", Kind: KindReply, Prefix: []byte{0x62, 0x41}, Length: 2, Comparable: 2},
	{Name: "**ERROR**", Kind: KindReply, Prefix: []byte{0x61}, Length: 2, Comparable: 1},
	{Name: "**ERROR**", Kind: KindReply, Prefix: []byte{0x62}, Length: 2, Comparable: 1},
}
