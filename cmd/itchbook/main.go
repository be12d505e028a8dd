package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"itchbook/domain/orderbook"
	"itchbook/infra/codec"
	"itchbook/infra/config"
	"itchbook/infra/decoder"
	"itchbook/infra/kafka"
	"itchbook/infra/logging"
	"itchbook/infra/outbox"
	"itchbook/jobs/broadcaster"
	"itchbook/service"
)

const publishBatch = 512

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config")
		envPath = flag.String("env", ".env", "optional dotenv file")
		publish = flag.Bool("publish", false, "publish feed.path to feed.kafka.topic and exit")
	)
	flag.Parse()

	if err := run(*cfgPath, *envPath, *publish); err != nil {
		fmt.Fprintln(os.Stderr, "itchbook:", err)
		os.Exit(1)
	}
}

func run(cfgPath, envPath string, publish bool) error {
	// ---------------- Config ----------------

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if publish {
		return publishFile(ctx, cfg, log)
	}

	a := &app{
		cfg:            cfg,
		log:            log,
		out:            os.Stdout,
		openSource:     openSource,
		newBroadcaster: dialBroadcaster,
	}
	return a.replay(ctx)
}

// app wires the feed, the book service and the broadcaster for one replay.
// The source and producer edges are swappable.
type app struct {
	cfg *config.Config
	log *slog.Logger
	out io.Writer // depth report

	openSource     func(*config.Config) (service.Source, func(), error)
	newBroadcaster func(*outbox.Outbox, *config.Config, ...broadcaster.Option) (*broadcaster.Broadcaster, error)
}

func (a *app) replay(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	// ---------------- Outbox ----------------

	var (
		ob  *outbox.Outbox
		enc codec.Codec
		err error
	)
	if cfg.Outbox.Enabled {
		ob, err = outbox.Open(cfg.Outbox.Dir, cfg.Outbox.Sync)
		if err != nil {
			return err
		}
		defer ob.Close()

		enc, err = codec.ByName(cfg.Broadcast.Format)
		if err != nil {
			return err
		}
	}

	// ---------------- Service ----------------

	bookOpts, err := bookOptions(cfg)
	if err != nil {
		return err
	}
	reg := service.NewRegistry(cfg.Book.Symbols, bookOpts...)
	opts := []service.Option{service.WithLogger(log)}
	if ob != nil {
		opts = append(opts, service.WithOutbox(ob, enc))
	}
	svc, err := service.NewFeedService(reg, opts...)
	if err != nil {
		return err
	}

	// ---------------- Feed ----------------

	src, closeSrc, err := a.openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	// ---------------- Broadcaster ----------------

	// halt is idempotent. The deferred call runs before b.Close and
	// ob.Close, so the final flush never sees a closed producer or DB.
	halt := func() {}
	if cfg.Broadcast.Enabled {
		b, err := a.newBroadcaster(ob, cfg,
			broadcaster.WithLogger(log),
			broadcaster.WithContentType(enc.ContentType()),
			broadcaster.WithMaxRetries(cfg.Broadcast.MaxRetries),
		)
		if err != nil {
			return err
		}
		defer b.Close()

		var wg sync.WaitGroup
		bctx, stopBroadcast := context.WithCancel(context.Background())
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Run(bctx)
		}()
		halt = func() {
			stopBroadcast()
			wg.Wait()
		}
		defer halt()
	}

	log.Info("replaying feed",
		"source", cfg.Feed.Source,
		"framing", cfg.Feed.Framing,
		"mode", cfg.Book.Mode,
		"cross_policy", cfg.Book.CrossPolicy,
	)

	runErr := svc.Run(ctx, src)
	if errors.Is(runErr, context.Canceled) {
		log.Info("interrupted")
		runErr = nil
	}

	// The broadcaster drains what the feed queued before the report.
	halt()

	if err := svc.WriteReport(a.out, cfg.Report.Levels); err != nil {
		return err
	}
	return runErr
}

func bookOptions(cfg *config.Config) ([]orderbook.Option, error) {
	mode, err := orderbook.ParseMode(cfg.Book.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := orderbook.ParseCrossPolicy(cfg.Book.CrossPolicy)
	if err != nil {
		return nil, err
	}
	return []orderbook.Option{orderbook.WithMode(mode), orderbook.WithCrossPolicy(policy)}, nil
}

func dialBroadcaster(ob *outbox.Outbox, cfg *config.Config, opts ...broadcaster.Option) (*broadcaster.Broadcaster, error) {
	return broadcaster.Dial(ob, cfg.Broadcast.Brokers, cfg.Broadcast.Topic, cfg.Broadcast.Interval, opts...)
}

func openSource(cfg *config.Config) (service.Source, func(), error) {
	if cfg.Feed.Source == "kafka" {
		k := cfg.Feed.Kafka
		src := kafka.NewSource(k.Brokers, k.Topic, k.Group, cfg.Feed.Framing == service.FramingMoldUDP64)
		return src, func() { _ = src.Close() }, nil
	}

	f, err := os.Open(cfg.Feed.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open feed: %w", err)
	}
	src, err := service.NewStreamSource(f, cfg.Feed.Framing)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return src, func() { _ = f.Close() }, nil
}

// publishFile copies the frames of a capture file to the feed topic, one
// Kafka record per frame, so a file can be replayed through the broker.
func publishFile(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Feed.Path == "" || len(cfg.Feed.Kafka.Brokers) == 0 || cfg.Feed.Kafka.Topic == "" {
		return errors.New("publish needs feed.path, feed.kafka.brokers and feed.kafka.topic")
	}
	f, err := os.Open(cfg.Feed.Path)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	p := kafka.NewProducer(cfg.Feed.Kafka.Brokers, cfg.Feed.Kafka.Topic)
	defer p.Close()

	frames := decoder.NewStream(f)
	batch := make([][]byte, 0, publishBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.Publish(ctx, batch...); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		frame, err := frames.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		// The stream reuses its buffer.
		batch = append(batch, append([]byte(nil), frame...))
		if len(batch) == publishBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	log.Info("published", "frames", frames.Count(), "topic", cfg.Feed.Kafka.Topic)
	return nil
}
