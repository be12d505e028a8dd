package orderbook

// ---- queries ----

func (b *OrderBook) SideOf(id uint64) (Side, bool) {
	ref, ok := b.index[id]
	if !ok {
		return 0, false
	}
	return ref.side, true
}

// Lookup returns a copy of a resting order.
func (b *OrderBook) Lookup(id uint64) (Order, bool) {
	ref, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	return *b.side(ref.side).find(ref.price).at(ref.pos), true
}

// BestBid returns the oldest order at the highest bid price.
func (b *OrderBook) BestBid() (Order, bool) {
	return b.bestOf(Bid)
}

// BestAsk returns the oldest order at the lowest ask price.
func (b *OrderBook) BestAsk() (Order, bool) {
	return b.bestOf(Ask)
}

func (b *OrderBook) bestOf(s Side) (Order, bool) {
	lvl := b.side(s).best()
	if lvl == nil {
		return Order{}, false
	}
	return *lvl.Head(), true
}

// Depth returns every resting order in up to levels price levels, best price
// first and arrival order within a level. Orders are not aggregated.
func (b *OrderBook) Depth(s Side, levels int) []DepthEntry {
	if levels <= 0 {
		return nil
	}
	var out []DepthEntry
	b.side(s).walk(func(lvl *PriceLevel) bool {
		for i := range lvl.orders {
			out = append(out, DepthEntry{Price: lvl.Price, Quantity: lvl.orders[i].Quantity})
		}
		levels--
		return levels > 0
	})
	return out
}

// Levels is the aggregated counterpart of Depth: one entry per price.
func (b *OrderBook) Levels(s Side, levels int) []Level {
	if levels <= 0 {
		return nil
	}
	out := make([]Level, 0, min(levels, b.side(s).Len()))
	b.side(s).walk(func(lvl *PriceLevel) bool {
		out = append(out, Level{Price: lvl.Price, Quantity: lvl.TotalQty(), Orders: lvl.Len()})
		return len(out) < levels
	})
	return out
}

// TotalOrders is the number of resting orders on both sides.
func (b *OrderBook) TotalOrders() int {
	return len(b.index)
}

// LevelCount is the number of price levels on one side.
func (b *OrderBook) LevelCount(s Side) int {
	return b.side(s).Len()
}
