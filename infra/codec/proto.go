package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"itchbook/domain/orderbook"
)

// Proto encodes reports in protobuf wire format matching:
//
//	message Trade {
//	  uint64 seq = 1;
//	  string symbol = 2;
//	  uint32 locate = 3;
//	  uint64 trade_id = 4;
//	  uint64 maker_order_id = 5;
//	  uint64 taker_order_id = 6;
//	  Side side = 7;        // BUY = 0, SELL = 1
//	  uint32 price = 8;     // fixed point, 4 decimals
//	  uint32 quantity = 9;
//	  uint64 ts = 10;
//	}
type Proto struct{}

const (
	fieldSeq protowire.Number = iota + 1
	fieldSymbol
	fieldLocate
	fieldTradeID
	fieldMaker
	fieldTaker
	fieldSide
	fieldPrice
	fieldQuantity
	fieldTimestamp
)

func (Proto) ContentType() string { return "application/x-protobuf" }

func (Proto) Encode(r TradeReport) ([]byte, error) {
	b := make([]byte, 0, 64)
	b = appendVarint(b, fieldSeq, r.Seq)
	if r.Symbol != "" {
		b = protowire.AppendTag(b, fieldSymbol, protowire.BytesType)
		b = protowire.AppendString(b, r.Symbol)
	}
	b = appendVarint(b, fieldLocate, uint64(r.Locate))
	b = appendVarint(b, fieldTradeID, r.TradeID)
	b = appendVarint(b, fieldMaker, r.MakerOrderID)
	b = appendVarint(b, fieldTaker, r.TakerOrderID)
	b = appendVarint(b, fieldSide, uint64(r.Side))
	b = appendVarint(b, fieldPrice, uint64(r.Price))
	b = appendVarint(b, fieldQuantity, uint64(r.Quantity))
	b = appendVarint(b, fieldTimestamp, r.Timestamp)
	return b, nil
}

// proto3 omits zero scalars.
func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (Proto) Decode(data []byte) (TradeReport, error) {
	var r TradeReport
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return TradeReport{}, fmt.Errorf("%w: %v", ErrCorruptPayload, protowire.ParseError(n))
		}
		data = data[n:]

		if num == fieldSymbol && typ == protowire.BytesType {
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return TradeReport{}, fmt.Errorf("%w: symbol: %v", ErrCorruptPayload, protowire.ParseError(n))
			}
			r.Symbol = s
			data = data[n:]
			continue
		}
		if typ != protowire.VarintType {
			// Unknown fields are skipped for forward compatibility.
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return TradeReport{}, fmt.Errorf("%w: field %d: %v", ErrCorruptPayload, num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return TradeReport{}, fmt.Errorf("%w: field %d: %v", ErrCorruptPayload, num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldSeq:
			r.Seq = v
		case fieldLocate:
			r.Locate = uint16(v)
		case fieldTradeID:
			r.TradeID = v
		case fieldMaker:
			r.MakerOrderID = v
		case fieldTaker:
			r.TakerOrderID = v
		case fieldSide:
			r.Side = orderbook.Side(v)
		case fieldPrice:
			r.Price = orderbook.Price(v)
		case fieldQuantity:
			r.Quantity = orderbook.Quantity(v)
		case fieldTimestamp:
			r.Timestamp = v
		}
	}
	return r, nil
}
