package sequence

import "sync/atomic"

// Sequencer numbers outbox entries. Numbers are issued once, in increasing
// order, from any goroutine.
type Sequencer struct {
	last atomic.Uint64
}

// New continues numbering after last, normally the outbox's LastSeq.
func New(last uint64) *Sequencer {
	s := new(Sequencer)
	s.last.Store(last)
	return s
}

func (s *Sequencer) Next() uint64 { return s.last.Add(1) }

// Current is the most recently issued number, or the starting point when
// nothing has been issued yet.
func (s *Sequencer) Current() uint64 { return s.last.Load() }
