package service

import (
	"fmt"
	"slices"
	"strings"

	"itchbook/domain/itch"
	"itchbook/domain/orderbook"
)

// Instrument is one tracked stock and its book.
type Instrument struct {
	Locate   uint16
	Symbol   string
	RoundLot uint32
	Book     *orderbook.OrderBook
}

// Registry maps stock locate codes to books. Locate codes are only valid
// for one session; Reset drops them.
type Registry struct {
	filter   map[string]struct{}
	byLocate map[uint16]*Instrument
	bookOpts []orderbook.Option
}

// NewRegistry tracks only symbols when it is non-empty. bookOpts are applied
// to every book the registry creates.
func NewRegistry(symbols []string, bookOpts ...orderbook.Option) *Registry {
	r := &Registry{
		byLocate: make(map[uint16]*Instrument),
		bookOpts: bookOpts,
	}
	if len(symbols) > 0 {
		r.filter = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			r.filter[strings.TrimSpace(s)] = struct{}{}
		}
	}
	return r
}

func (r *Registry) wants(symbol string) bool {
	if r.filter == nil {
		return true
	}
	_, ok := r.filter[symbol]
	return ok
}

// Track registers the directory entry's instrument and reports whether it
// is tracked. A repeated entry for the same symbol keeps the existing book;
// a locate reassigned to a new symbol starts a fresh one.
func (r *Registry) Track(dir itch.StockDirectory) bool {
	if !r.wants(dir.Symbol) {
		delete(r.byLocate, dir.Locate)
		return false
	}
	if inst, ok := r.byLocate[dir.Locate]; ok && inst.Symbol == dir.Symbol {
		inst.RoundLot = dir.RoundLotSize
		return true
	}
	r.byLocate[dir.Locate] = &Instrument{
		Locate:   dir.Locate,
		Symbol:   dir.Symbol,
		RoundLot: dir.RoundLotSize,
		Book:     orderbook.NewOrderBook(r.bookOpts...),
	}
	return true
}

// Resolve returns the book for an add order. Feeds that start mid-session
// carry no directory messages, so an unknown locate is registered from the
// add's own symbol when the filter allows it.
func (r *Registry) Resolve(locate uint16, symbol string) (*orderbook.OrderBook, bool) {
	if inst, ok := r.byLocate[locate]; ok {
		return inst.Book, true
	}
	if symbol == "" {
		symbol = fmt.Sprintf("#%d", locate)
	}
	if !r.wants(symbol) {
		return nil, false
	}
	inst := &Instrument{Locate: locate, Symbol: symbol, Book: orderbook.NewOrderBook(r.bookOpts...)}
	r.byLocate[locate] = inst
	return inst.Book, true
}

func (r *Registry) BookFor(locate uint16) (*orderbook.OrderBook, bool) {
	inst, ok := r.byLocate[locate]
	if !ok {
		return nil, false
	}
	return inst.Book, true
}

func (r *Registry) Instrument(locate uint16) (Instrument, bool) {
	inst, ok := r.byLocate[locate]
	if !ok {
		return Instrument{}, false
	}
	return *inst, true
}

// Instruments returns every tracked instrument ordered by symbol.
func (r *Registry) Instruments() []Instrument {
	out := make([]Instrument, 0, len(r.byLocate))
	for _, inst := range r.byLocate {
		out = append(out, *inst)
	}
	slices.SortFunc(out, func(a, b Instrument) int {
		if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
			return c
		}
		return int(a.Locate) - int(b.Locate)
	})
	return out
}

func (r *Registry) Len() int {
	return len(r.byLocate)
}

// Reset forgets every instrument.
func (r *Registry) Reset() {
	clear(r.byLocate)
}
