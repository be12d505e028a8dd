package orderbook

import "github.com/shopspring/decimal"

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	switch s {
	case Bid:
		return "Bid"
	case Ask:
		return "Ask"
	default:
		return "Unknown"
	}
}

// Price is a fixed-point price: currency units scaled by 10^4.
type Price uint32

// PriceScale is the number of fixed-point units per currency unit.
const PriceScale = 10_000

// String renders the price with four decimals, e.g. 101.2500.
func (p Price) String() string {
	return decimal.New(int64(p), -4).StringFixed(4)
}

type Quantity uint32

// Order is a pure domain entity. While resting, Quantity is the remaining size.
type Order struct {
	ID        uint64
	Side      Side
	Price     Price
	Quantity  Quantity
	Timestamp uint64
}

// Trade is produced when an incoming order crosses the book.
// Side is the taker's side and Price is always the maker's price.
type Trade struct {
	ID           uint64
	MakerOrderID uint64
	TakerOrderID uint64
	Side         Side
	Price        Price
	Quantity     Quantity
	Timestamp    uint64
}

// DepthEntry is one resting order as seen by Depth.
type DepthEntry struct {
	Price    Price
	Quantity Quantity
}

// Level is an aggregated view of one price level.
type Level struct {
	Price    Price
	Quantity uint64
	Orders   int
}
