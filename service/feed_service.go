package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"itchbook/domain/itch"
	"itchbook/domain/orderbook"
	"itchbook/infra/codec"
	"itchbook/infra/outbox"
	"itchbook/infra/sequence"
)

/*
FeedService is the only write entry point into the books.

Events flow source -> Apply -> registry -> itch.Route -> book. Trades the
books produce are encoded and queued in the outbox, where the broadcaster
picks them up.
*/

// Source yields decoded events until io.EOF.
type Source interface {
	Next(ctx context.Context) (itch.Event, error)
}

// Stats counts what the service has seen.
type Stats struct {
	Events        uint64 // every event handed to Apply
	Applied       uint64 // events that reached a book
	Skipped       uint64 // order events for untracked instruments
	Trades        uint64
	LastTradeSeq  uint64 // outbox sequence of the newest queued trade
	LastTimestamp uint64
	EndOfMessages bool
}

type FeedService struct {
	mu  sync.RWMutex
	reg *Registry

	outbox *outbox.Outbox
	codec  codec.Codec
	seq    *sequence.Sequencer

	stats Stats
	log   *slog.Logger
}

type Option func(*FeedService)

// WithOutbox queues every trade in ob, encoded with c.
func WithOutbox(ob *outbox.Outbox, c codec.Codec) Option {
	return func(s *FeedService) {
		s.outbox = ob
		s.codec = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *FeedService) { s.log = l.With("component", "feed") }
}

// NewFeedService wires the registry and optional outbox. With an outbox,
// trade sequence numbers continue after the highest one already stored.
func NewFeedService(reg *Registry, opts ...Option) (*FeedService, error) {
	s := &FeedService{
		reg: reg,
		log: slog.Default().With("component", "feed"),
	}
	for _, opt := range opts {
		opt(s)
	}

	var start uint64
	if s.outbox != nil {
		if s.codec == nil {
			s.codec = codec.JSON{}
		}
		last, err := s.outbox.LastSeq()
		if err != nil {
			return nil, fmt.Errorf("resume outbox sequence: %w", err)
		}
		start = last
	}
	s.seq = sequence.New(start)
	return s, nil
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Apply routes one event. The returned error only concerns the outbox; the
// book change has already happened when it is reported.
func (s *FeedService) Apply(ev itch.Event) ([]orderbook.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := ev.Head()
	s.stats.Events++
	s.stats.LastTimestamp = h.Timestamp

	var (
		book *orderbook.OrderBook
		ok   bool
	)
	switch e := ev.(type) {
	case itch.StockDirectory:
		if s.reg.Track(e) {
			s.log.Debug("tracking", "symbol", e.Symbol, "locate", e.Locate)
		}
		return nil, nil

	case itch.SystemEvent:
		s.systemEvent(e)
		return nil, nil

	case itch.AddOrder:
		book, ok = s.reg.Resolve(h.Locate, e.Symbol)

	default:
		if !itch.Routable(ev) {
			return nil, nil
		}
		book, ok = s.reg.BookFor(h.Locate)
	}

	if !ok {
		s.stats.Skipped++
		return nil, nil
	}
	s.stats.Applied++

	trades := itch.Route(ev, book)
	if len(trades) == 0 {
		return nil, nil
	}
	s.stats.Trades += uint64(len(trades))
	return trades, s.enqueue(h.Locate, trades)
}

func (s *FeedService) systemEvent(e itch.SystemEvent) {
	s.log.Info("system event", "code", string(e.Code), "ts", e.Timestamp)
	switch e.Code {
	case itch.StartOfMessages:
		s.stats.EndOfMessages = false
	case itch.EndOfMessages:
		s.stats.EndOfMessages = true
	}
}

func (s *FeedService) enqueue(locate uint16, trades []orderbook.Trade) error {
	if s.outbox == nil {
		return nil
	}
	inst, _ := s.reg.Instrument(locate)

	seqs := make([]uint64, len(trades))
	payloads := make([][]byte, len(trades))
	for i, t := range trades {
		seqs[i] = s.seq.Next()
		b, err := s.codec.Encode(codec.NewTradeReport(seqs[i], inst.Symbol, locate, t))
		if err != nil {
			return fmt.Errorf("encode trade %d: %w", t.ID, err)
		}
		payloads[i] = b
	}
	if err := s.outbox.PutBatch(seqs, payloads); err != nil {
		return fmt.Errorf("queue %d trades: %w", len(trades), err)
	}
	return nil
}

// Run applies events from src until it is exhausted, ctx is cancelled or
// an error occurs. Exhaustion (io.EOF) is a clean stop.
func (s *FeedService) Run(ctx context.Context, src Source) error {
	s.log.Info("feed started")
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			st := s.Stats()
			s.log.Info("feed finished", "events", st.Events, "trades", st.Trades, "skipped", st.Skipped, "last_trade_seq", st.LastTradeSeq)
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read feed: %w", err)
		}
		if _, err := s.Apply(ev); err != nil {
			return err
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *FeedService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.LastTradeSeq = s.seq.Current()
	return st
}

// TopOfBook is the first resting order on each side.
type TopOfBook struct {
	Symbol string
	Bid    orderbook.Order
	HasBid bool
	Ask    orderbook.Order
	HasAsk bool
}

func (s *FeedService) Top(locate uint16) (TopOfBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.reg.Instrument(locate)
	if !ok {
		return TopOfBook{}, false
	}
	top := TopOfBook{Symbol: inst.Symbol}
	top.Bid, top.HasBid = inst.Book.BestBid()
	top.Ask, top.HasAsk = inst.Book.BestAsk()
	return top, true
}

// BookSnapshot is an aggregated copy of the top levels of one book.
type BookSnapshot struct {
	Symbol string
	Locate uint16
	Orders int
	Bids   []orderbook.Level
	Asks   []orderbook.Level
}

// Snapshot copies up to levels price levels per side.
func (s *FeedService) Snapshot(locate uint16, levels int) (BookSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.reg.Instrument(locate)
	if !ok {
		return BookSnapshot{}, false
	}
	return BookSnapshot{
		Symbol: inst.Symbol,
		Locate: inst.Locate,
		Orders: inst.Book.TotalOrders(),
		Bids:   inst.Book.Levels(orderbook.Bid, levels),
		Asks:   inst.Book.Levels(orderbook.Ask, levels),
	}, true
}

// WriteReport writes the depth of every tracked book that has resting
// orders, ordered by symbol.
func (s *FeedService) WriteReport(w io.Writer, levels int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inst := range s.reg.Instruments() {
		if inst.Book.TotalOrders() == 0 {
			continue
		}
		if err := WriteBook(w, inst.Symbol, inst.Book, levels); err != nil {
			return err
		}
	}
	return nil
}
