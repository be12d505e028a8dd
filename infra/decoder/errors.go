package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrShortMessage is returned when a message is smaller than its type's layout.
	ErrShortMessage = errors.New("short message")

	// ErrTruncatedFrame is returned when the stream ends inside a frame.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrShortPacket is returned when a MoldUDP64 packet cannot hold its header
	// or its declared messages.
	ErrShortPacket = errors.New("short packet")

	// ErrUnsupportedEvent is returned by Encode for events it cannot serialize.
	ErrUnsupportedEvent = errors.New("unsupported event")
)

// DecodeError describes a message that could not be decoded.
type DecodeError struct {
	Type byte // ITCH message type
	Len  int  // bytes available
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q (%d bytes): %v", e.Type, e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
