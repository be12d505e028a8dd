package orderbook

import (
	"fmt"
	"time"
)

// Mode selects whether AddOrder computes crosses itself.
type Mode uint8

const (
	// ModeMatch runs price-time matching on every incoming order.
	ModeMatch Mode = iota
	// ModeReplay mirrors an already-matched feed: orders always rest and
	// book state only shrinks through explicit executions and cancels.
	ModeReplay
)

func (m Mode) String() string {
	if m == ModeReplay {
		return "replay"
	}
	return "match"
}

// CrossPolicy controls how far a marketable order walks the opposite side.
type CrossPolicy uint8

const (
	// StrictLimit stops at the first level priced beyond the order's limit.
	StrictLimit CrossPolicy = iota
	// LegacySweep checks the limit against the best level only; once that
	// crosses, every following level is consumed regardless of price.
	LegacySweep
)

func (c CrossPolicy) String() string {
	if c == LegacySweep {
		return "legacy_sweep"
	}
	return "strict"
}

// ParseMode maps a configured mode name back to its Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "match":
		return ModeMatch, nil
	case "replay":
		return ModeReplay, nil
	}
	return 0, fmt.Errorf("orderbook: unknown mode %q", s)
}

// ParseCrossPolicy is the inverse of CrossPolicy.String.
func ParseCrossPolicy(s string) (CrossPolicy, error) {
	switch s {
	case "strict":
		return StrictLimit, nil
	case "legacy_sweep":
		return LegacySweep, nil
	}
	return 0, fmt.Errorf("orderbook: unknown cross policy %q", s)
}

type Option func(*OrderBook)

func WithMode(m Mode) Option {
	return func(b *OrderBook) { b.mode = m }
}

func WithCrossPolicy(p CrossPolicy) Option {
	return func(b *OrderBook) { b.policy = p }
}

// WithClock sets the timestamp source used when a price change re-submits
// an order.
func WithClock(now func() uint64) Option {
	return func(b *OrderBook) { b.now = now }
}

// orderRef locates a resting order without scanning.
type orderRef struct {
	side  Side
	price Price
	pos   int
}

// OrderBook holds all state for one instrument.
//
// It is single-writer: callers must serialize every call on one instance.
// Each public method leaves the index and the level queues consistent.
type OrderBook struct {
	sides [2]*bookSide
	index map[uint64]*orderRef

	nextTradeID uint64
	mode        Mode
	policy      CrossPolicy
	now         func() uint64
}

func NewOrderBook(opts ...Option) *OrderBook {
	b := &OrderBook{
		sides:       [2]*bookSide{newBookSide(Bid), newBookSide(Ask)},
		index:       make(map[uint64]*orderRef),
		nextTradeID: 1,
		now:         func() uint64 { return uint64(time.Now().UnixNano()) },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OrderBook) Mode() Mode               { return b.mode }
func (b *OrderBook) CrossPolicy() CrossPolicy { return b.policy }

func (b *OrderBook) side(s Side) *bookSide {
	return b.sides[s]
}

// ---- commands ----

// AddOrder submits a limit order and returns the trades it generated.
// A fully filled order never rests. An order whose id is already resting is
// ignored and yields no trades.
func (b *OrderBook) AddOrder(o Order) []Trade {
	if _, dup := b.index[o.ID]; dup || o.Quantity == 0 {
		return nil
	}

	var trades []Trade
	rest := o.Quantity
	if b.mode == ModeMatch {
		trades, rest = b.cross(o)
		if rest == 0 {
			return trades
		}
	}

	o.Quantity = rest
	lvl := b.side(o.Side).upsert(o.Price)
	pos := lvl.enqueue(o)
	b.index[o.ID] = &orderRef{side: o.Side, price: o.Price, pos: pos}
	return trades
}

// cross matches o against the opposite side and returns the trades and the
// unfilled remainder.
func (b *OrderBook) cross(o Order) ([]Trade, Quantity) {
	opp := b.side(o.Side.Opposite())
	rest := o.Quantity

	var trades []Trade
	checked := false
	for rest > 0 {
		lvl := opp.best()
		if lvl == nil {
			break
		}
		if !checked || b.policy == StrictLimit {
			if !opp.crosses(o.Price, lvl.Price) {
				break
			}
			checked = true
		}

		filled := 0
		for i := 0; i < lvl.Len() && rest > 0; i++ {
			maker := lvl.at(i)
			qty := min(maker.Quantity, rest)
			trades = append(trades, Trade{
				ID:           b.nextTradeID,
				MakerOrderID: maker.ID,
				TakerOrderID: o.ID,
				Side:         o.Side,
				Price:        maker.Price,
				Quantity:     qty,
				Timestamp:    o.Timestamp,
			})
			b.nextTradeID++

			maker.Quantity -= qty
			rest -= qty
			if maker.Quantity == 0 {
				delete(b.index, maker.ID)
				filled++
			}
		}

		// Filled makers always form a prefix of the queue.
		lvl.removeFront(filled)
		if lvl.Empty() {
			opp.drop(lvl)
		} else {
			b.reindex(lvl, 0)
		}
	}
	return trades, rest
}

// CancelOrder removes a resting order. It reports false if id is unknown.
func (b *OrderBook) CancelOrder(id uint64) bool {
	ref, ok := b.index[id]
	if !ok {
		return false
	}
	b.remove(id, ref)
	return true
}

// ModifyOrder changes the price and/or quantity of a resting order; nil
// leaves a field unchanged.
//
// A zero quantity cancels. A quantity change at the same price is applied in
// place and keeps time priority, including on increases. A price change
// removes the order and re-submits it with a fresh timestamp under the same
// id, so it may trade immediately; those trades are returned.
func (b *OrderBook) ModifyOrder(id uint64, price *Price, qty *Quantity) ([]Trade, bool) {
	ref, ok := b.index[id]
	if !ok {
		return nil, false
	}
	lvl := b.side(ref.side).find(ref.price)
	ord := lvl.at(ref.pos)

	newPrice, newQty := ord.Price, ord.Quantity
	if price != nil {
		newPrice = *price
	}
	if qty != nil {
		newQty = *qty
	}

	if newQty == 0 {
		b.remove(id, ref)
		return nil, true
	}
	if newPrice == ord.Price {
		ord.Quantity = newQty
		return nil, true
	}

	moved := *ord
	b.remove(id, ref)
	moved.Price = newPrice
	moved.Quantity = newQty
	moved.Timestamp = b.now()
	return b.AddOrder(moved), true
}

// DecreaseQty mirrors a feed-reported execution or partial cancel.
// The order is removed once nothing remains. No trade is generated.
func (b *OrderBook) DecreaseQty(id uint64, delta Quantity) bool {
	ref, ok := b.index[id]
	if !ok {
		return false
	}
	ord := b.side(ref.side).find(ref.price).at(ref.pos)
	if delta >= ord.Quantity {
		b.remove(id, ref)
		return true
	}
	ord.Quantity -= delta
	return true
}

// Clear empties the book and restarts trade ids at 1.
func (b *OrderBook) Clear() {
	for _, s := range b.sides {
		s.reset()
	}
	clear(b.index)
	b.nextTradeID = 1
}

// remove unlinks a resting order from its level and the index in one step.
func (b *OrderBook) remove(id uint64, ref *orderRef) {
	s := b.side(ref.side)
	lvl := s.find(ref.price)
	lvl.removeAt(ref.pos)
	delete(b.index, id)
	if lvl.Empty() {
		s.drop(lvl)
		return
	}
	b.reindex(lvl, ref.pos)
}

// reindex rewrites recorded positions for lvl's orders from pos onward.
func (b *OrderBook) reindex(lvl *PriceLevel, from int) {
	for i := from; i < lvl.Len(); i++ {
		b.index[lvl.orders[i].ID].pos = i
	}
}
