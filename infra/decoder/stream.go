package decoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"

	"itchbook/domain/itch"
)

const defaultBufSize = 64 << 10

// Stream reads length-prefixed ITCH messages, the framing used by capture
// files: [len:2 big-endian][message].
type Stream struct {
	r     *bufio.Reader
	buf   []byte
	count uint64
}

func NewStream(r io.Reader) *Stream {
	return &Stream{
		r:   bufio.NewReaderSize(r, defaultBufSize),
		buf: make([]byte, 0, 64),
	}
}

// NextMessage returns the next raw message. The slice is reused by the next
// call. It returns io.EOF at a clean frame boundary and ErrTruncatedFrame if
// the input ends inside a frame. Zero-length frames are skipped.
func (s *Stream) NextMessage() ([]byte, error) {
	for {
		var lenBuf [2]byte
		if _, err := io.ReadFull(s.r, lenBuf[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncatedFrame
			}
			return nil, err
		}
		n := int(binary.BigEndian.Uint16(lenBuf[:]))
		if n == 0 {
			continue
		}

		if cap(s.buf) < n {
			s.buf = make([]byte, n)
		}
		s.buf = s.buf[:n]
		if _, err := io.ReadFull(s.r, s.buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncatedFrame
			}
			return nil, err
		}
		s.count++
		return s.buf, nil
	}
}

// Next decodes the next event. ctx is checked between frames.
func (s *Stream) Next(ctx context.Context) (itch.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := s.NextMessage()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(msg)
}

// Count returns the number of frames read so far.
func (s *Stream) Count() uint64 {
	return s.count
}

// PacketStream reads length-prefixed frames that each carry a MoldUDP64
// packet, as produced by packet captures re-framed for storage, and yields
// the packet's messages in order.
type PacketStream struct {
	frames  *Stream
	pending [][]byte
	last    Packet
}

func NewPacketStream(r io.Reader) *PacketStream {
	return &PacketStream{frames: NewStream(r)}
}

// Next decodes the next message. Heartbeats are skipped; io.EOF is returned
// at the end of input or after an end-of-session packet.
func (s *PacketStream) Next(ctx context.Context) (itch.Event, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.last.EndOfSession() {
			return nil, io.EOF
		}
		frame, err := s.frames.NextMessage()
		if err != nil {
			return nil, err
		}
		// Messages alias the frame buffer, which the next read reuses.
		pkt, err := DecodePacket(append([]byte(nil), frame...))
		if err != nil {
			return nil, err
		}
		s.last = pkt
		s.pending = pkt.Messages
	}
	msg := s.pending[0]
	s.pending = s.pending[1:]
	return DecodeMessage(msg)
}

// Session and Sequence describe the most recent packet.
func (s *PacketStream) Session() string  { return s.last.Session }
func (s *PacketStream) Sequence() uint64 { return s.last.Sequence }
