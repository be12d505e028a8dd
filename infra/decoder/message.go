package decoder

import (
	"encoding/binary"
	"strings"

	"itchbook/domain/itch"
	"itchbook/domain/orderbook"
)

// ITCH 5.0 message lengths, type byte included.
const (
	headerLen = 11 // [type:1][locate:2][tracking:2][timestamp:6]

	lenSystemEvent    = 12
	lenStockDirectory = 39
	lenAddOrder       = 36
	lenAddOrderMPID   = 40
	lenExecuted       = 31
	lenExecutedPrice  = 36
	lenCancel         = 23
	lenDelete         = 19
	lenReplace        = 35
)

var messageLen = map[byte]int{
	'S': lenSystemEvent,
	'R': lenStockDirectory,
	'A': lenAddOrder,
	'F': lenAddOrderMPID,
	'E': lenExecuted,
	'C': lenExecutedPrice,
	'X': lenCancel,
	'D': lenDelete,
	'U': lenReplace,
}

// DecodeMessage decodes one ITCH 5.0 message. Types the book does not use
// decode to itch.Other as long as the common header is present.
func DecodeMessage(b []byte) (itch.Event, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Len: 0, Err: ErrShortMessage}
	}
	typ := b[0]
	want, known := messageLen[typ]
	if !known {
		want = headerLen
	}
	if len(b) < want {
		return nil, &DecodeError{Type: typ, Len: len(b), Err: ErrShortMessage}
	}

	h := itch.Header{
		Type:      typ,
		Locate:    binary.BigEndian.Uint16(b[1:3]),
		Tracking:  binary.BigEndian.Uint16(b[3:5]),
		Timestamp: uint48(b[5:11]),
	}
	p := b[headerLen:]

	switch typ {
	case 'S':
		return itch.SystemEvent{Header: h, Code: p[0]}, nil

	case 'R':
		return itch.StockDirectory{
			Header:          h,
			Symbol:          symbol(p[0:8]),
			MarketCategory:  p[8],
			FinancialStatus: p[9],
			RoundLotSize:    binary.BigEndian.Uint32(p[10:14]),
			RoundLotsOnly:   p[14] == 'Y',
		}, nil

	case 'A', 'F':
		ev := itch.AddOrder{
			Header:   h,
			OrderRef: binary.BigEndian.Uint64(p[0:8]),
			BuySell:  p[8],
			Shares:   binary.BigEndian.Uint32(p[9:13]),
			Symbol:   symbol(p[13:21]),
			Price:    orderbook.Price(binary.BigEndian.Uint32(p[21:25])),
		}
		if typ == 'F' {
			ev.Attribution = symbol(p[25:29])
		}
		return ev, nil

	case 'E', 'C':
		ev := itch.OrderExecuted{
			Header:         h,
			OrderRef:       binary.BigEndian.Uint64(p[0:8]),
			ExecutedShares: binary.BigEndian.Uint32(p[8:12]),
			MatchNumber:    binary.BigEndian.Uint64(p[12:20]),
		}
		if typ == 'C' {
			ev.HasPrice = true
			ev.Printable = p[20] == 'Y'
			ev.ExecutionPrice = orderbook.Price(binary.BigEndian.Uint32(p[21:25]))
		}
		return ev, nil

	case 'X':
		return itch.OrderCancel{
			Header:         h,
			OrderRef:       binary.BigEndian.Uint64(p[0:8]),
			CanceledShares: binary.BigEndian.Uint32(p[8:12]),
		}, nil

	case 'D':
		return itch.OrderDelete{Header: h, OrderRef: binary.BigEndian.Uint64(p[0:8])}, nil

	case 'U':
		return itch.OrderReplace{
			Header:      h,
			OriginalRef: binary.BigEndian.Uint64(p[0:8]),
			NewRef:      binary.BigEndian.Uint64(p[8:16]),
			Shares:      binary.BigEndian.Uint32(p[16:20]),
			Price:       orderbook.Price(binary.BigEndian.Uint32(p[20:24])),
		}, nil

	default:
		payload := make([]byte, len(p))
		copy(payload, p)
		return itch.Other{Header: h, Payload: payload}, nil
	}
}

func uint48(b []byte) uint64 {
	_ = b[5]
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}

func putUint48(b []byte, v uint64) {
	_ = b[5]
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

// symbol trims the space padding of an ITCH alpha field.
func symbol(b []byte) string {
	return strings.TrimRight(string(b), " ")
}
