package codec

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"itchbook/domain/orderbook"
)

// JSON encodes reports as one object per trade. Prices are decimal strings
// so consumers never see the fixed-point scale.
type JSON struct{}

type jsonTrade struct {
	V            int             `json:"v"`
	Seq          uint64          `json:"seq"`
	Symbol       string          `json:"symbol"`
	Locate       uint16          `json:"locate"`
	TradeID      uint64          `json:"trade_id"`
	MakerOrderID uint64          `json:"maker_order_id"`
	TakerOrderID uint64          `json:"taker_order_id"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     uint32          `json:"quantity"`
	Timestamp    uint64          `json:"ts"`
}

const jsonVersion = 1

func (JSON) ContentType() string { return "application/json" }

func (JSON) Encode(r TradeReport) ([]byte, error) {
	return json.Marshal(jsonTrade{
		V:            jsonVersion,
		Seq:          r.Seq,
		Symbol:       r.Symbol,
		Locate:       r.Locate,
		TradeID:      r.TradeID,
		MakerOrderID: r.MakerOrderID,
		TakerOrderID: r.TakerOrderID,
		Side:         sideName(r.Side),
		Price:        decimal.New(int64(r.Price), -4),
		Quantity:     uint32(r.Quantity),
		Timestamp:    r.Timestamp,
	})
}

func (JSON) Decode(data []byte) (TradeReport, error) {
	var j jsonTrade
	if err := json.Unmarshal(data, &j); err != nil {
		return TradeReport{}, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	side, err := parseSide(j.Side)
	if err != nil {
		return TradeReport{}, err
	}
	scaled := j.Price.Shift(4)
	if !scaled.IsInteger() || scaled.IsNegative() {
		return TradeReport{}, fmt.Errorf("%w: price %s", ErrCorruptPayload, j.Price)
	}
	return TradeReport{
		Seq:          j.Seq,
		Symbol:       j.Symbol,
		Locate:       j.Locate,
		TradeID:      j.TradeID,
		MakerOrderID: j.MakerOrderID,
		TakerOrderID: j.TakerOrderID,
		Side:         side,
		Price:        orderbook.Price(scaled.IntPart()),
		Quantity:     orderbook.Quantity(j.Quantity),
		Timestamp:    j.Timestamp,
	}, nil
}

func sideName(s orderbook.Side) string {
	if s == orderbook.Bid {
		return "buy"
	}
	return "sell"
}

func parseSide(s string) (orderbook.Side, error) {
	switch s {
	case "buy":
		return orderbook.Bid, nil
	case "sell":
		return orderbook.Ask, nil
	default:
		return 0, fmt.Errorf("%w: side %q", ErrCorruptPayload, s)
	}
}
