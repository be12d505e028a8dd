package orderbook

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// verify checks that the index and the level queues agree.
func (b *OrderBook) verify() error {
	seen := 0
	for _, side := range []Side{Bid, Ask} {
		s := b.side(side)
		if s.tree.Len() != len(s.levels) {
			return fmt.Errorf("%v: tree has %d levels, price index %d", side, s.tree.Len(), len(s.levels))
		}
		var prev *PriceLevel
		var err error
		s.walk(func(lvl *PriceLevel) bool {
			if s.levels[lvl.Price] != lvl {
				err = fmt.Errorf("%v: level %v missing from price index", side, lvl.Price)
				return false
			}
			if lvl.Empty() {
				err = fmt.Errorf("%v: empty level %v", side, lvl.Price)
				return false
			}
			if prev != nil && !betterFor(side)(prev, lvl) {
				err = fmt.Errorf("%v: level %v out of order after %v", side, lvl.Price, prev.Price)
				return false
			}
			prev = lvl
			for pos, o := range lvl.orders {
				ref, ok := b.index[o.ID]
				switch {
				case !ok:
					err = fmt.Errorf("order %d not indexed", o.ID)
				case ref.side != side || ref.price != lvl.Price || ref.pos != pos:
					err = fmt.Errorf("order %d indexed at %v/%v/%d, found at %v/%v/%d",
						o.ID, ref.side, ref.price, ref.pos, side, lvl.Price, pos)
				case o.Quantity == 0:
					err = fmt.Errorf("order %d rests with zero quantity", o.ID)
				case o.Price != lvl.Price || o.Side != side:
					err = fmt.Errorf("order %d stored under wrong key", o.ID)
				}
				if err != nil {
					return false
				}
				seen++
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	if seen != len(b.index) {
		return fmt.Errorf("index has %d entries, levels hold %d orders", len(b.index), seen)
	}
	return nil
}

func checkUncrossed(t *rapid.T, b *OrderBook) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if okBid && okAsk && bid.Price >= ask.Price {
		t.Fatalf("book crossed: bid %v >= ask %v", bid.Price, ask.Price)
	}
}

func TestProperty_IndexMatchesLevels(t *testing.T) {
	for _, policy := range []CrossPolicy{StrictLimit, LegacySweep} {
		for _, mode := range []Mode{ModeMatch, ModeReplay} {
			t.Run(mode.String()+"/"+policy.String(), func(t *testing.T) {
				rapid.Check(t, func(t *rapid.T) {
					book := NewOrderBook(WithMode(mode), WithCrossPolicy(policy))
					idGen := rapid.Uint64Range(1, 40)
					priceGen := rapid.Uint32Range(95, 105)
					qtyGen := rapid.Uint32Range(0, 50)
					var clock uint64

					t.Repeat(map[string]func(*rapid.T){
						"add": func(t *rapid.T) {
							clock++
							o := Order{
								ID:        idGen.Draw(t, "id"),
								Side:      Side(rapid.IntRange(0, 1).Draw(t, "side")),
								Price:     Price(priceGen.Draw(t, "price")),
								Quantity:  Quantity(rapid.Uint32Range(1, 50).Draw(t, "qty")),
								Timestamp: clock,
							}
							before := resting(book, o.ID)
							trades := book.AddOrder(o)
							var filled Quantity
							for _, tr := range trades {
								if tr.Quantity == 0 {
									t.Fatalf("zero-quantity trade %+v", tr)
								}
								filled += tr.Quantity
							}
							if before {
								if len(trades) != 0 {
									t.Fatalf("duplicate id %d traded", o.ID)
								}
								return
							}
							if filled > o.Quantity {
								t.Fatalf("overfill: %d > %d", filled, o.Quantity)
							}
							if _, rests := book.Lookup(o.ID); rests != (filled < o.Quantity) {
								t.Fatalf("order %d rests=%v with filled %d of %d", o.ID, rests, filled, o.Quantity)
							}
						},
						"cancel": func(t *rapid.T) {
							id := idGen.Draw(t, "id")
							existed := resting(book, id)
							if book.CancelOrder(id) != existed {
								t.Fatalf("cancel(%d) disagrees with index", id)
							}
						},
						"modify": func(t *rapid.T) {
							id := idGen.Draw(t, "id")
							var p *Price
							var q *Quantity
							if rapid.Bool().Draw(t, "withPrice") {
								v := Price(priceGen.Draw(t, "newPrice"))
								p = &v
							}
							if rapid.Bool().Draw(t, "withQty") {
								v := Quantity(qtyGen.Draw(t, "newQty"))
								q = &v
							}
							existed := resting(book, id)
							if _, ok := book.ModifyOrder(id, p, q); ok != existed {
								t.Fatalf("modify(%d) disagrees with index", id)
							}
						},
						"decrease": func(t *rapid.T) {
							id := idGen.Draw(t, "id")
							existed := resting(book, id)
							if book.DecreaseQty(id, Quantity(qtyGen.Draw(t, "delta"))) != existed {
								t.Fatalf("decrease(%d) disagrees with index", id)
							}
						},
						"": func(t *rapid.T) {
							if err := book.verify(); err != nil {
								t.Fatal(err)
							}
							if mode == ModeMatch && policy == StrictLimit {
								checkUncrossed(t, book)
							}
						},
					})
				})
			})
		}
	}
}

func resting(b *OrderBook, id uint64) bool {
	_, ok := b.index[id]
	return ok
}

// Trade ids increase by one across every order until Clear.
func TestProperty_TradeIDsMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook()
		var last uint64
		n := rapid.IntRange(1, 60).Draw(t, "n")
		for i := 0; i < n; i++ {
			o := Order{
				ID:       uint64(i + 1),
				Side:     Side(rapid.IntRange(0, 1).Draw(t, "side")),
				Price:    Price(rapid.Uint32Range(98, 102).Draw(t, "price")),
				Quantity: Quantity(rapid.Uint32Range(1, 20).Draw(t, "qty")),
			}
			for _, tr := range book.AddOrder(o) {
				if tr.ID != last+1 {
					t.Fatalf("trade id %d after %d", tr.ID, last)
				}
				last = tr.ID
			}
		}
	})
}
