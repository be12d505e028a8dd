package orderbook

// PriceLevel is a FIFO queue at a single price. Orders are held densely,
// oldest first, so a resting order's position is its slice offset.
type PriceLevel struct {
	Price  Price
	orders []Order
}

func (p *PriceLevel) Len() int {
	return len(p.orders)
}

func (p *PriceLevel) Empty() bool {
	return len(p.orders) == 0
}

// Head returns the oldest order at this price.
func (p *PriceLevel) Head() *Order {
	if len(p.orders) == 0 {
		return nil
	}
	return &p.orders[0]
}

// TotalQty sums the remaining quantity of every order at this price.
func (p *PriceLevel) TotalQty() uint64 {
	var total uint64
	for i := range p.orders {
		total += uint64(p.orders[i].Quantity)
	}
	return total
}

// enqueue appends o at the back and returns its position.
func (p *PriceLevel) enqueue(o Order) int {
	p.orders = append(p.orders, o)
	return len(p.orders) - 1
}

func (p *PriceLevel) at(pos int) *Order {
	return &p.orders[pos]
}

// removeAt drops the order at pos, shifting the tail down by one.
// Callers must re-index orders from pos onward.
func (p *PriceLevel) removeAt(pos int) {
	copy(p.orders[pos:], p.orders[pos+1:])
	p.orders[len(p.orders)-1] = Order{}
	p.orders = p.orders[:len(p.orders)-1]
}

// removeFront drops the n oldest orders. Callers must re-index the rest.
func (p *PriceLevel) removeFront(n int) {
	if n == 0 {
		return
	}
	rest := copy(p.orders, p.orders[n:])
	clear(p.orders[rest:])
	p.orders = p.orders[:rest]
}
