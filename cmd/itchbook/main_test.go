package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itchbook/domain/itch"
	"itchbook/infra/config"
	"itchbook/infra/decoder"
	"itchbook/infra/outbox"
	"itchbook/jobs/broadcaster"
	"itchbook/service"
)

func broadcastConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Feed.Path = "unused.bin"
	cfg.Book.Mode = "match"
	cfg.Outbox.Enabled = true
	cfg.Outbox.Dir = filepath.Join(t.TempDir(), "outbox")
	cfg.Broadcast.Enabled = true
	cfg.Broadcast.Brokers = []string{"localhost:9092"}
	cfg.Broadcast.Topic = "trades"
	cfg.Broadcast.Interval = time.Hour
	require.NoError(t, cfg.Validate())
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func capture(t *testing.T, evs ...itch.Event) service.Source {
	t.Helper()
	var data []byte
	for _, ev := range evs {
		msg, err := decoder.Encode(ev)
		require.NoError(t, err)
		data = decoder.AppendFrame(data, msg)
	}
	src, err := service.NewStreamSource(bytes.NewReader(data), service.FramingLengthPrefixed)
	require.NoError(t, err)
	return src
}

func TestReplay_SourceFailureLeavesNothingRunning(t *testing.T) {
	cfg := broadcastConfig(t)
	boom := errors.New("no such capture")

	dialed := false
	a := &app{
		cfg: cfg,
		log: quietLogger(),
		out: io.Discard,
		openSource: func(*config.Config) (service.Source, func(), error) {
			return nil, nil, boom
		},
		newBroadcaster: func(*outbox.Outbox, *config.Config, ...broadcaster.Option) (*broadcaster.Broadcaster, error) {
			dialed = true
			return nil, errors.New("unexpected dial")
		},
	}

	assert.ErrorIs(t, a.replay(context.Background()), boom)
	assert.False(t, dialed, "broadcaster started before the feed opened")

	// The outbox was closed, so its lock is free again.
	ob, err := outbox.Open(cfg.Outbox.Dir, false)
	require.NoError(t, err)
	require.NoError(t, ob.Close())
}

func TestReplay_BroadcasterDrainsBeforeShutdown(t *testing.T) {
	cfg := broadcastConfig(t)

	pcfg := sarama.NewConfig()
	pcfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, pcfg)
	producer.ExpectSendMessageAndSucceed()

	var report bytes.Buffer
	a := &app{
		cfg: cfg,
		log: quietLogger(),
		out: &report,
		openSource: func(*config.Config) (service.Source, func(), error) {
			return capture(t,
				itch.StockDirectory{Header: itch.Header{Type: 'R', Locate: 1}, Symbol: "AAPL", RoundLotSize: 100},
				itch.AddOrder{Header: itch.Header{Type: 'A', Locate: 1, Timestamp: 10}, OrderRef: 1, BuySell: 'S', Shares: 100, Symbol: "AAPL", Price: 1_500_000},
				itch.AddOrder{Header: itch.Header{Type: 'A', Locate: 1, Timestamp: 20}, OrderRef: 2, BuySell: 'B', Shares: 60, Symbol: "AAPL", Price: 1_500_000},
			), func() {}, nil
		},
		newBroadcaster: func(ob *outbox.Outbox, cfg *config.Config, opts ...broadcaster.Option) (*broadcaster.Broadcaster, error) {
			return broadcaster.New(ob, producer, cfg.Broadcast.Topic, cfg.Broadcast.Interval, opts...), nil
		},
	}

	require.NoError(t, a.replay(context.Background()))

	out := report.String()
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "40 @ 150.0000")
	assert.NotContains(t, out, `"msg"`, "log lines leaked into the report")

	// The trade was delivered and removed before the outbox closed.
	ob, err := outbox.Open(cfg.Outbox.Dir, false)
	require.NoError(t, err)
	defer ob.Close()
	_, err = ob.Get(1)
	assert.ErrorIs(t, err, outbox.ErrNotFound)
}

func TestReplay_BroadcastDialFailure(t *testing.T) {
	cfg := broadcastConfig(t)
	closed := false
	a := &app{
		cfg: cfg,
		log: quietLogger(),
		out: io.Discard,
		openSource: func(*config.Config) (service.Source, func(), error) {
			return capture(t), func() { closed = true }, nil
		},
		newBroadcaster: func(*outbox.Outbox, *config.Config, ...broadcaster.Option) (*broadcaster.Broadcaster, error) {
			return nil, sarama.ErrOutOfBrokers
		},
	}

	assert.ErrorIs(t, a.replay(context.Background()), sarama.ErrOutOfBrokers)
	assert.True(t, closed)
}

func TestBookOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Book.CrossPolicy = "legacy_sweep"
	opts, err := bookOptions(cfg)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	cfg.Book.CrossPolicy = "strict_limit"
	_, err = bookOptions(cfg)
	assert.Error(t, err)
}
