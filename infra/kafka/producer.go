package kafka

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes raw ITCH messages to a topic. Messages are keyed by
// stock locate so each instrument stays on one partition and keeps its order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes msgs in order. Each element is one complete ITCH message.
func (p *Producer) Publish(ctx context.Context, msgs ...[]byte) error {
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, kafka.Message{Key: locateKey(m), Value: m})
	}
	return p.writer.WriteMessages(ctx, out...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func locateKey(msg []byte) []byte {
	if len(msg) < 3 {
		return nil
	}
	key := make([]byte, 2)
	binary.BigEndian.PutUint16(key, binary.BigEndian.Uint16(msg[1:3]))
	return key
}
