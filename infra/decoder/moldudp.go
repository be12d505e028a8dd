package decoder

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	moldHeaderLen  = 20 // [session:10][sequence:8][count:2]
	moldSessionLen = 10

	// EndOfSession is the message count that closes a MoldUDP64 session.
	EndOfSession = 0xFFFF
)

// Packet is one MoldUDP64 downstream packet. Messages alias the input buffer.
type Packet struct {
	Session  string
	Sequence uint64 // sequence number of the first message
	Count    uint16
	Messages [][]byte
}

// Heartbeat reports a packet that carries no messages.
func (p Packet) Heartbeat() bool { return p.Count == 0 }

// EndOfSession reports the session terminator.
func (p Packet) EndOfSession() bool { return p.Count == EndOfSession }

// DecodePacket splits a MoldUDP64 packet into its message blocks.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < moldHeaderLen {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	p := Packet{
		Session:  strings.TrimRight(string(b[:moldSessionLen]), " "),
		Sequence: binary.BigEndian.Uint64(b[10:18]),
		Count:    binary.BigEndian.Uint16(b[18:20]),
	}
	if p.Heartbeat() || p.EndOfSession() {
		return p, nil
	}

	p.Messages = make([][]byte, 0, p.Count)
	rest := b[moldHeaderLen:]
	for i := 0; i < int(p.Count); i++ {
		if len(rest) < 2 {
			return Packet{}, fmt.Errorf("%w: block %d has no length", ErrShortPacket, i)
		}
		n := int(binary.BigEndian.Uint16(rest[:2]))
		rest = rest[2:]
		if len(rest) < n {
			return Packet{}, fmt.Errorf("%w: block %d wants %d bytes, have %d", ErrShortPacket, i, n, len(rest))
		}
		p.Messages = append(p.Messages, rest[:n:n])
		rest = rest[n:]
	}
	return p, nil
}

// AppendPacket appends a MoldUDP64 packet carrying msgs to dst.
func AppendPacket(dst []byte, session string, seq uint64, msgs [][]byte) []byte {
	dst = appendAlpha(dst, session, moldSessionLen)
	dst = binary.BigEndian.AppendUint64(dst, seq)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(msgs)))
	for _, m := range msgs {
		dst = AppendFrame(dst, m)
	}
	return dst
}
