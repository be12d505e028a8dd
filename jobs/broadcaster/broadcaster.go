package broadcaster

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"itchbook/infra/outbox"
)

// DefaultMaxRetries bounds how often a FAILED entry is retried.
const DefaultMaxRetries = 10

// Broadcaster drains the trade outbox into a Kafka topic. Delivery is at
// least once: an entry is deleted only after the broker acknowledged it.
type Broadcaster struct {
	outbox      *outbox.Outbox
	producer    sarama.SyncProducer
	topic       string
	interval    time.Duration
	contentType string
	maxRetries  uint32
	retainAcked bool
	log         *slog.Logger
}

type Option func(*Broadcaster)

func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) { b.log = l.With("component", "broadcaster") }
}

func WithContentType(ct string) Option {
	return func(b *Broadcaster) { b.contentType = ct }
}

func WithMaxRetries(n uint32) Option {
	return func(b *Broadcaster) { b.maxRetries = n }
}

// WithRetainAcked keeps acknowledged entries as ACKED instead of deleting
// them, for audit or replay of the published stream.
func WithRetainAcked(keep bool) Option {
	return func(b *Broadcaster) { b.retainAcked = keep }
}

func New(ob *outbox.Outbox, producer sarama.SyncProducer, topic string, interval time.Duration, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		outbox:     ob,
		producer:   producer,
		topic:      topic,
		interval:   interval,
		maxRetries: DefaultMaxRetries,
		log:        slog.Default().With("component", "broadcaster"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial connects a sync producer to brokers and wraps it.
func Dial(ob *outbox.Outbox, brokers []string, topic string, interval time.Duration, opts ...Option) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("broadcaster: dial %v: %w", brokers, err)
	}
	return New(ob, producer, topic, interval, opts...), nil
}

// Run flushes on every tick until ctx is done, then flushes once more so
// trades produced just before shutdown are not left behind.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", "topic", b.topic, "interval", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := b.Flush(); err != nil {
				b.log.Error("final flush", "err", err)
			}
			b.log.Info("stopped")
			return

		case <-ticker.C:
			if _, err := b.Flush(); err != nil {
				b.log.Error("flush", "err", err)
			}
		}
	}
}

// Flush publishes every pending entry once, in sequence order, and returns
// how many were acknowledged. Pending means NEW, SENT left over from an
// interrupted flush, or FAILED with retries remaining.
func (b *Broadcaster) Flush() (int, error) {
	var pending []outbox.Record
	for _, st := range []outbox.State{outbox.StateNew, outbox.StateSent, outbox.StateFailed} {
		err := b.outbox.ScanByState(st, func(r outbox.Record) error {
			if r.State == outbox.StateFailed && r.Retries >= b.maxRetries {
				return nil
			}
			pending = append(pending, r)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("broadcaster: scan %s: %w", st, err)
		}
	}
	// Each scan is ordered; merge them by sequence.
	slices.SortFunc(pending, func(x, y outbox.Record) int { return cmp.Compare(x.Seq, y.Seq) })

	acked := 0
	for _, r := range pending {
		if err := b.outbox.UpdateState(r.Seq, outbox.StateSent, r.Retries); err != nil {
			return acked, fmt.Errorf("broadcaster: mark sent %d: %w", r.Seq, err)
		}

		if err := b.send(r); err != nil {
			retries := r.Retries + 1
			b.log.Warn("publish failed", "seq", r.Seq, "retries", retries, "err", err)
			if uerr := b.outbox.UpdateState(r.Seq, outbox.StateFailed, retries); uerr != nil {
				return acked, fmt.Errorf("broadcaster: mark failed %d: %w", r.Seq, uerr)
			}
			continue
		}

		if err := b.ack(r); err != nil {
			return acked, fmt.Errorf("broadcaster: ack %d: %w", r.Seq, err)
		}
		acked++
	}
	if acked > 0 {
		b.log.Debug("flushed", "acked", acked, "pending", len(pending)-acked)
	}
	return acked, nil
}

func (b *Broadcaster) ack(r outbox.Record) error {
	if b.retainAcked {
		return b.outbox.UpdateState(r.Seq, outbox.StateAcked, r.Retries)
	}
	return b.outbox.Delete(r.Seq)
}

func (b *Broadcaster) send(r outbox.Record) error {
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(r.Seq, 10)),
		Value: sarama.ByteEncoder(r.Payload),
	}
	if b.contentType != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte("content-type"), Value: []byte(b.contentType)}}
	}
	_, _, err := b.producer.SendMessage(msg)
	return err
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
