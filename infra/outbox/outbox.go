package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
)

// State is the delivery state of an outbox entry.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound      = errors.New("outbox: entry not found")
	ErrCorruptRecord = errors.New("outbox: corrupt record")
)

const (
	keyPrefix = "trade/"
	keyUpper  = "trade/~"
	metaLen   = 1 + 4 + 8 + 4
)

// Record is one encoded trade waiting for delivery.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64 // unix nanos, 0 if never attempted
	Payload     []byte
}

// encoding: [state:1][retries:4][lastAttempt:8][crc:4][payload]
// The checksum covers the payload only; state updates rewrite the header.
func encodeRecord(r Record) []byte {
	buf := make([]byte, metaLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint32(buf[13:17], checksum(r.Payload))
	copy(buf[metaLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < metaLen {
		return Record{}, fmt.Errorf("%w: seq %d has %d bytes", ErrCorruptRecord, seq, len(b))
	}
	if !checksumValid(b[metaLen:], binary.BigEndian.Uint32(b[13:17])) {
		return Record{}, fmt.Errorf("%w: seq %d checksum mismatch", ErrCorruptRecord, seq)
	}
	payload := make([]byte, len(b)-metaLen)
	copy(payload, b[metaLen:])
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// Outbox is a durable queue of trade reports keyed by sequence number,
// backed by pebble. Entries move NEW -> SENT -> ACKED, or to FAILED once
// the broadcaster gives up on them.
type Outbox struct {
	db   *pebble.DB
	sync bool
	now  func() time.Time
}

// Open opens or creates the outbox in dir. With sync set every write is
// fsynced before returning.
func Open(dir string, sync bool) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", dir, err)
	}
	return &Outbox{db: db, sync: sync, now: time.Now}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

func (o *Outbox) writeOpts() *pebble.WriteOptions {
	if o.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Put stores payload as a NEW entry under seq.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	return o.db.Set(keyFor(seq), encodeRecord(Record{State: StateNew, Payload: payload}), o.writeOpts())
}

// PutBatch stores several NEW entries atomically. seqs and payloads are
// paired by index.
func (o *Outbox) PutBatch(seqs []uint64, payloads [][]byte) error {
	if len(seqs) != len(payloads) {
		return fmt.Errorf("outbox: %d sequences for %d payloads", len(seqs), len(payloads))
	}
	b := o.db.NewBatch()
	defer b.Close()
	for i, seq := range seqs {
		if err := b.Set(keyFor(seq), encodeRecord(Record{State: StateNew, Payload: payloads[i]}), nil); err != nil {
			return err
		}
	}
	return b.Commit(o.writeOpts())
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

// UpdateState records a delivery attempt outcome, keeping the payload.
func (o *Outbox) UpdateState(seq uint64, state State, retries uint32) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = o.now().UnixNano()
	return o.db.Set(keyFor(seq), encodeRecord(rec), o.writeOpts())
}

// Delete removes an entry, normally once it is ACKED.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), o.writeOpts())
}

// ScanByState calls fn for every entry in state, in sequence order. A
// non-nil error from fn stops the scan and is returned.
func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, val)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq returns the highest stored sequence, or 0 when empty.
func (o *Outbox) LastSeq() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// Keys are zero padded so lexical order matches sequence order.
func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	if len(b) <= len(keyPrefix) {
		return 0, fmt.Errorf("%w: key %q", ErrCorruptRecord, b)
	}
	seq, err := strconv.ParseUint(string(b[len(keyPrefix):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q", ErrCorruptRecord, b)
	}
	return seq, nil
}
