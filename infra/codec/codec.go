package codec

import (
	"errors"
	"fmt"

	"itchbook/domain/orderbook"
)

var ErrCorruptPayload = errors.New("codec: corrupt payload")

// TradeReport is a trade as published downstream: the book's trade plus
// the instrument it happened on and its outbox sequence.
type TradeReport struct {
	Seq          uint64
	Symbol       string
	Locate       uint16
	TradeID      uint64
	MakerOrderID uint64
	TakerOrderID uint64
	Side         orderbook.Side
	Price        orderbook.Price
	Quantity     orderbook.Quantity
	Timestamp    uint64
}

// NewTradeReport wraps a book trade.
func NewTradeReport(seq uint64, symbol string, locate uint16, t orderbook.Trade) TradeReport {
	return TradeReport{
		Seq:          seq,
		Symbol:       symbol,
		Locate:       locate,
		TradeID:      t.ID,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		Side:         t.Side,
		Price:        t.Price,
		Quantity:     t.Quantity,
		Timestamp:    t.Timestamp,
	}
}

// Codec serializes trade reports for the outbox and the broker.
type Codec interface {
	Encode(r TradeReport) ([]byte, error)
	Decode(data []byte) (TradeReport, error)
	ContentType() string
}

// ByName returns the codec for a config format name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "proto", "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", name)
	}
}
