package service

import (
	"fmt"
	"io"

	"itchbook/infra/decoder"
)

// Framing names accepted by NewStreamSource.
const (
	FramingLengthPrefixed = "length_prefixed"
	FramingMoldUDP64      = "moldudp64"
)

// NewStreamSource wraps r in the decoder for framing. Length-prefixed input
// carries one ITCH message per frame; moldudp64 input carries one packet per
// frame.
func NewStreamSource(r io.Reader, framing string) (Source, error) {
	switch framing {
	case "", FramingLengthPrefixed:
		return decoder.NewStream(r), nil
	case FramingMoldUDP64:
		return decoder.NewPacketStream(r), nil
	default:
		return nil, fmt.Errorf("unknown framing %q", framing)
	}
}
