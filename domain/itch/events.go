package itch

import "itchbook/domain/orderbook"

// Kind enumerates every event variant the decoder can produce.
type Kind uint8

const (
	KindOther Kind = iota
	KindSystemEvent
	KindStockDirectory
	KindAddOrder
	KindOrderExecuted
	KindOrderCancel
	KindOrderDelete
	KindOrderReplace
)

// AllKinds lists every Kind, for exhaustiveness checks.
func AllKinds() []Kind {
	return []Kind{
		KindOther,
		KindSystemEvent,
		KindStockDirectory,
		KindAddOrder,
		KindOrderExecuted,
		KindOrderCancel,
		KindOrderDelete,
		KindOrderReplace,
	}
}

func (k Kind) String() string {
	switch k {
	case KindSystemEvent:
		return "system_event"
	case KindStockDirectory:
		return "stock_directory"
	case KindAddOrder:
		return "add_order"
	case KindOrderExecuted:
		return "order_executed"
	case KindOrderCancel:
		return "order_cancel"
	case KindOrderDelete:
		return "order_delete"
	case KindOrderReplace:
		return "order_replace"
	default:
		return "other"
	}
}

// Header is common to every ITCH 5.0 message.
type Header struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp uint64 // nanoseconds since midnight
}

// Event is a decoded protocol message. The set of implementations is closed.
type Event interface {
	Head() Header
	Kind() Kind
	sealed()
}

// SystemEvent codes.
const (
	StartOfMessages    byte = 'O'
	StartOfSystemHours byte = 'S'
	StartOfMarketHours byte = 'Q'
	EndOfMarketHours   byte = 'M'
	EndOfSystemHours   byte = 'E'
	EndOfMessages      byte = 'C'
)

type SystemEvent struct {
	Header
	Code byte
}

// StockDirectory binds a locate code to a symbol for the session.
type StockDirectory struct {
	Header
	Symbol          string
	MarketCategory  byte
	FinancialStatus byte
	RoundLotSize    uint32
	RoundLotsOnly   bool
}

// AddOrder covers both 'A' and 'F' messages; Attribution is set for 'F'.
type AddOrder struct {
	Header
	OrderRef    uint64
	BuySell     byte // 'B' or 'S'
	Shares      uint32
	Symbol      string
	Price       orderbook.Price
	Attribution string
}

// Side maps the buy/sell indicator to a book side.
func (a AddOrder) Side() orderbook.Side {
	if a.BuySell == 'B' {
		return orderbook.Bid
	}
	return orderbook.Ask
}

// OrderExecuted covers 'E' and 'C'; HasPrice is set for 'C'.
type OrderExecuted struct {
	Header
	OrderRef       uint64
	ExecutedShares uint32
	MatchNumber    uint64
	HasPrice       bool
	Printable      bool
	ExecutionPrice orderbook.Price
}

// OrderCancel is a partial cancel of CanceledShares.
type OrderCancel struct {
	Header
	OrderRef       uint64
	CanceledShares uint32
}

type OrderDelete struct {
	Header
	OrderRef uint64
}

// OrderReplace cancels OriginalRef and adds NewRef on the same side.
type OrderReplace struct {
	Header
	OriginalRef uint64
	NewRef      uint64
	Shares      uint32
	Price       orderbook.Price
}

// Other is any message the book does not consume (trades, imbalances,
// administrative messages). Payload holds the bytes after the header.
type Other struct {
	Header
	Payload []byte
}

func (h Header) Head() Header { return h }

func (SystemEvent) Kind() Kind    { return KindSystemEvent }
func (StockDirectory) Kind() Kind { return KindStockDirectory }
func (AddOrder) Kind() Kind       { return KindAddOrder }
func (OrderExecuted) Kind() Kind  { return KindOrderExecuted }
func (OrderCancel) Kind() Kind    { return KindOrderCancel }
func (OrderDelete) Kind() Kind    { return KindOrderDelete }
func (OrderReplace) Kind() Kind   { return KindOrderReplace }
func (Other) Kind() Kind          { return KindOther }

func (SystemEvent) sealed()    {}
func (StockDirectory) sealed() {}
func (AddOrder) sealed()       {}
func (OrderExecuted) sealed()  {}
func (OrderCancel) sealed()    {}
func (OrderDelete) sealed()    {}
func (OrderReplace) sealed()   {}
func (Other) sealed()          {}
