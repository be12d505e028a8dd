package orderbook

import "github.com/tidwall/btree"

// bookSide is one side of the book: price levels ordered best-first plus a
// price index. Bids and asks are two instances that differ only in the
// ordering function.
type bookSide struct {
	side   Side
	tree   *btree.BTreeG[*PriceLevel]
	levels map[Price]*PriceLevel
}

func newBookSide(side Side) *bookSide {
	return &bookSide{
		side:   side,
		tree:   btree.NewBTreeG(betterFor(side)),
		levels: make(map[Price]*PriceLevel),
	}
}

// betterFor orders levels so the best price sorts first:
// highest for bids, lowest for asks.
func betterFor(side Side) func(a, b *PriceLevel) bool {
	if side == Bid {
		return func(a, b *PriceLevel) bool { return a.Price > b.Price }
	}
	return func(a, b *PriceLevel) bool { return a.Price < b.Price }
}

// crosses reports whether an incoming order on the opposite side with the
// given limit can trade against a level of this side priced at levelPrice.
func (s *bookSide) crosses(limit, levelPrice Price) bool {
	if s.side == Ask {
		return levelPrice <= limit
	}
	return levelPrice >= limit
}

func (s *bookSide) Len() int {
	return len(s.levels)
}

func (s *bookSide) best() *PriceLevel {
	lvl, ok := s.tree.Min()
	if !ok {
		return nil
	}
	return lvl
}

func (s *bookSide) find(price Price) *PriceLevel {
	return s.levels[price]
}

func (s *bookSide) upsert(price Price) *PriceLevel {
	if lvl, ok := s.levels[price]; ok {
		return lvl
	}
	lvl := &PriceLevel{Price: price}
	s.levels[price] = lvl
	s.tree.Set(lvl)
	return lvl
}

func (s *bookSide) drop(lvl *PriceLevel) {
	s.tree.Delete(lvl)
	delete(s.levels, lvl.Price)
}

// walk visits levels best-first until fn returns false.
func (s *bookSide) walk(fn func(*PriceLevel) bool) {
	s.tree.Scan(fn)
}

func (s *bookSide) reset() {
	s.tree = btree.NewBTreeG(betterFor(s.side))
	s.levels = make(map[Price]*PriceLevel)
}
