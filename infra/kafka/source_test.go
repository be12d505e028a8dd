package kafka

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itchbook/domain/itch"
	"itchbook/infra/decoder"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
	commitErr error
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func encode(t *testing.T, ev itch.Event) []byte {
	t.Helper()
	b, err := decoder.Encode(ev)
	require.NoError(t, err)
	return b
}

func TestSource_SingleMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 10, Value: encode(t, itch.AddOrder{Header: itch.Header{Type: 'A'}, OrderRef: 1, BuySell: 'B', Shares: 5, Symbol: "X", Price: 1})},
		{Offset: 11, Value: encode(t, itch.OrderDelete{Header: itch.Header{Type: 'D'}, OrderRef: 1})},
	}}
	src := NewSourceFromReader(r, false)
	ctx := context.Background()

	ev, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, itch.KindAddOrder, ev.Kind())
	assert.Empty(t, r.committed)

	ev, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, itch.KindOrderDelete, ev.Kind())
	assert.Equal(t, []int64{10}, r.committed)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []int64{10, 11}, r.committed)

	require.NoError(t, src.Close())
	assert.True(t, r.closed)
}

func TestSource_Packets(t *testing.T) {
	add := encode(t, itch.AddOrder{Header: itch.Header{Type: 'A'}, OrderRef: 1, BuySell: 'S', Shares: 5, Symbol: "X", Price: 1})
	del := encode(t, itch.OrderDelete{Header: itch.Header{Type: 'D'}, OrderRef: 1})

	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 0, Value: decoder.AppendPacket(nil, "S1", 1, nil)},
		{Offset: 1, Value: decoder.AppendPacket(nil, "S1", 1, [][]byte{add, del})},
	}}
	src := NewSourceFromReader(r, true)
	ctx := context.Background()

	var kinds []itch.Kind
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind())
	}
	assert.Equal(t, []itch.Kind{itch.KindAddOrder, itch.KindOrderDelete}, kinds)
	assert.Equal(t, []int64{0, 1}, r.committed)
}

func TestSource_BadPacket(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 4, Value: []byte("short")}}}
	_, err := NewSourceFromReader(r, true).Next(context.Background())
	assert.ErrorIs(t, err, decoder.ErrShortPacket)
}

func TestSource_CommitFailure(t *testing.T) {
	r := &fakeReader{
		msgs:      []kafka.Message{{Offset: 1, Value: encode(t, itch.OrderDelete{Header: itch.Header{Type: 'D'}})}},
		commitErr: errors.New("broker gone"),
	}
	src := NewSourceFromReader(r, false)

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.ErrorContains(t, err, "broker gone")
}

func TestLocateKey(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x02}, locateKey([]byte{'A', 0x01, 0x02, 0, 0}))
	assert.Nil(t, locateKey([]byte{'A'}))
}
