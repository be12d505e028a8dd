package decoder

import (
	"encoding/binary"
	"fmt"

	"itchbook/domain/itch"
)

// Encode serializes an event into its ITCH 5.0 layout. It is the inverse of
// DecodeMessage for the message types the book consumes; feed simulators and
// tests use it to build wire data.
func Encode(ev itch.Event) ([]byte, error) {
	return AppendMessage(nil, ev)
}

// AppendMessage appends the encoding of ev to dst.
func AppendMessage(dst []byte, ev itch.Event) ([]byte, error) {
	h := ev.Head()
	var (
		typ byte
		p   []byte
	)

	switch e := ev.(type) {
	case itch.SystemEvent:
		typ = 'S'
		p = append(p, e.Code)

	case itch.StockDirectory:
		typ = 'R'
		p = appendAlpha(p, e.Symbol, 8)
		p = append(p, e.MarketCategory, e.FinancialStatus)
		p = binary.BigEndian.AppendUint32(p, e.RoundLotSize)
		p = append(p, yesNo(e.RoundLotsOnly))
		// Issue classification through inverse indicator are not modelled.
		p = append(p, make([]byte, lenStockDirectory-headerLen-len(p))...)

	case itch.AddOrder:
		typ = 'A'
		if e.Type == 'F' || e.Attribution != "" {
			typ = 'F'
		}
		p = binary.BigEndian.AppendUint64(p, e.OrderRef)
		p = append(p, e.BuySell)
		p = binary.BigEndian.AppendUint32(p, e.Shares)
		p = appendAlpha(p, e.Symbol, 8)
		p = binary.BigEndian.AppendUint32(p, uint32(e.Price))
		if typ == 'F' {
			p = appendAlpha(p, e.Attribution, 4)
		}

	case itch.OrderExecuted:
		typ = 'E'
		p = binary.BigEndian.AppendUint64(p, e.OrderRef)
		p = binary.BigEndian.AppendUint32(p, e.ExecutedShares)
		p = binary.BigEndian.AppendUint64(p, e.MatchNumber)
		if e.HasPrice {
			typ = 'C'
			p = append(p, yesNo(e.Printable))
			p = binary.BigEndian.AppendUint32(p, uint32(e.ExecutionPrice))
		}

	case itch.OrderCancel:
		typ = 'X'
		p = binary.BigEndian.AppendUint64(p, e.OrderRef)
		p = binary.BigEndian.AppendUint32(p, e.CanceledShares)

	case itch.OrderDelete:
		typ = 'D'
		p = binary.BigEndian.AppendUint64(p, e.OrderRef)

	case itch.OrderReplace:
		typ = 'U'
		p = binary.BigEndian.AppendUint64(p, e.OriginalRef)
		p = binary.BigEndian.AppendUint64(p, e.NewRef)
		p = binary.BigEndian.AppendUint32(p, e.Shares)
		p = binary.BigEndian.AppendUint32(p, uint32(e.Price))

	case itch.Other:
		if _, known := messageLen[h.Type]; known || h.Type == 0 {
			return dst, fmt.Errorf("%w: other with type %q", ErrUnsupportedEvent, h.Type)
		}
		typ = h.Type
		p = e.Payload

	default:
		return dst, fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}

	var head [headerLen]byte
	head[0] = typ
	binary.BigEndian.PutUint16(head[1:3], h.Locate)
	binary.BigEndian.PutUint16(head[3:5], h.Tracking)
	putUint48(head[5:11], h.Timestamp)

	dst = append(dst, head[:]...)
	return append(dst, p...), nil
}

// AppendFrame appends msg with the 2-byte big-endian length prefix used by
// ITCH capture files.
func AppendFrame(dst, msg []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(msg)))
	return append(dst, msg...)
}

func appendAlpha(dst []byte, s string, n int) []byte {
	for i := 0; i < n; i++ {
		if i < len(s) {
			dst = append(dst, s[i])
		} else {
			dst = append(dst, ' ')
		}
	}
	return dst
}

func yesNo(v bool) byte {
	if v {
		return 'Y'
	}
	return 'N'
}
