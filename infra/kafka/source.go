package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"itchbook/domain/itch"
	"itchbook/infra/decoder"
)

// MessageReader is the part of *kafka.Reader the source needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Source turns a Kafka topic into a stream of ITCH events. A record value
// is either one ITCH message or, with packets set, a MoldUDP64 packet.
//
// Offsets are committed once every event of a record has been handed out,
// just before the next record is fetched.
type Source struct {
	r       MessageReader
	packets bool

	pending     [][]byte
	last        kafka.Message
	uncommitted bool
}

func NewSource(brokers []string, topic, group string, packets bool) *Source {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        250 * time.Millisecond,
		CommitInterval: 0,
	})
	return NewSourceFromReader(r, packets)
}

func NewSourceFromReader(r MessageReader, packets bool) *Source {
	return &Source{r: r, packets: packets}
}

// Next returns the next event. Heartbeat and end-of-session packets carry
// no messages and are skipped.
func (s *Source) Next(ctx context.Context) (itch.Event, error) {
	for len(s.pending) == 0 {
		if err := s.commit(ctx); err != nil {
			return nil, err
		}
		msg, err := s.r.FetchMessage(ctx)
		if err != nil {
			return nil, err
		}
		s.last, s.uncommitted = msg, true

		if !s.packets {
			s.pending = append(s.pending, msg.Value)
			continue
		}
		pkt, err := decoder.DecodePacket(msg.Value)
		if err != nil {
			return nil, fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}
		s.pending = append(s.pending, pkt.Messages...)
	}

	raw := s.pending[0]
	s.pending = s.pending[1:]
	return decoder.DecodeMessage(raw)
}

func (s *Source) commit(ctx context.Context) error {
	if !s.uncommitted {
		return nil
	}
	if err := s.r.CommitMessages(ctx, s.last); err != nil {
		return fmt.Errorf("commit offset %d: %w", s.last.Offset, err)
	}
	s.uncommitted = false
	return nil
}

// Close commits the last fully consumed record and closes the reader.
func (s *Source) Close() error {
	var err error
	if len(s.pending) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = s.commit(ctx)
		cancel()
	}
	if cerr := s.r.Close(); err == nil {
		err = cerr
	}
	return err
}
