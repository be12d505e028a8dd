package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"itchbook/domain/orderbook"
)

// Config holds every setting of the itchbook binary. Load applies defaults,
// then the YAML file, then ITCHBOOK_* environment overrides.
type Config struct {
	Feed struct {
		Source  string `yaml:"source"`  // file | kafka
		Path    string `yaml:"path"`    // capture file for source=file
		Framing string `yaml:"framing"` // length_prefixed | moldudp64
		Kafka   struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
			Group   string   `yaml:"group"`
		} `yaml:"kafka"`
	} `yaml:"feed"`

	Book struct {
		Mode        string   `yaml:"mode"`         // replay | match
		CrossPolicy string   `yaml:"cross_policy"` // strict | legacy_sweep
		Symbols     []string `yaml:"symbols"`      // empty tracks everything
	} `yaml:"book"`

	Outbox struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
		Sync    bool   `yaml:"sync"`
	} `yaml:"outbox"`

	Broadcast struct {
		Enabled    bool          `yaml:"enabled"`
		Brokers    []string      `yaml:"brokers"`
		Topic      string        `yaml:"topic"`
		Interval   time.Duration `yaml:"interval"`
		Format     string        `yaml:"format"` // json | proto
		MaxRetries uint32        `yaml:"max_retries"`
	} `yaml:"broadcast"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Report struct {
		Levels int `yaml:"levels"`
	} `yaml:"report"`
}

// ConfigError names the offending field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	ErrRequired = errors.New("required")
	ErrInvalid  = errors.New("invalid value")
)

// Default returns a configuration that replays a capture file.
func Default() *Config {
	var c Config
	c.Feed.Source = "file"
	c.Feed.Framing = "length_prefixed"
	c.Feed.Kafka.Group = "itchbook"
	c.Book.Mode = "replay"
	c.Book.CrossPolicy = "strict"
	c.Outbox.Dir = "data/outbox"
	c.Broadcast.Topic = "itchbook.trades"
	c.Broadcast.Interval = 250 * time.Millisecond
	c.Broadcast.Format = "json"
	c.Broadcast.MaxRetries = 10
	c.Logging.Level = "info"
	c.Report.Levels = 10
	return &c
}

// Load reads path when it is non-empty; a missing path yields defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Feed.Source {
	case "file":
		if c.Feed.Path == "" {
			return &ConfigError{Field: "feed.path", Err: ErrRequired}
		}
	case "kafka":
		if len(c.Feed.Kafka.Brokers) == 0 {
			return &ConfigError{Field: "feed.kafka.brokers", Err: ErrRequired}
		}
		if c.Feed.Kafka.Topic == "" {
			return &ConfigError{Field: "feed.kafka.topic", Err: ErrRequired}
		}
	default:
		return &ConfigError{Field: "feed.source", Err: fmt.Errorf("%w: %q", ErrInvalid, c.Feed.Source)}
	}

	if err := oneOf("feed.framing", c.Feed.Framing, "length_prefixed", "moldudp64"); err != nil {
		return err
	}
	if _, err := orderbook.ParseMode(c.Book.Mode); err != nil {
		return &ConfigError{Field: "book.mode", Err: fmt.Errorf("%w: %v", ErrInvalid, err)}
	}
	if _, err := orderbook.ParseCrossPolicy(c.Book.CrossPolicy); err != nil {
		return &ConfigError{Field: "book.cross_policy", Err: fmt.Errorf("%w: %v", ErrInvalid, err)}
	}

	if c.Outbox.Enabled && c.Outbox.Dir == "" {
		return &ConfigError{Field: "outbox.dir", Err: ErrRequired}
	}

	if c.Broadcast.Enabled {
		if !c.Outbox.Enabled {
			return &ConfigError{Field: "broadcast.enabled", Err: errors.New("requires outbox.enabled")}
		}
		if len(c.Broadcast.Brokers) == 0 {
			return &ConfigError{Field: "broadcast.brokers", Err: ErrRequired}
		}
		if c.Broadcast.Topic == "" {
			return &ConfigError{Field: "broadcast.topic", Err: ErrRequired}
		}
		if c.Broadcast.Interval <= 0 {
			return &ConfigError{Field: "broadcast.interval", Err: fmt.Errorf("%w: must be positive", ErrInvalid)}
		}
	}
	if err := oneOf("broadcast.format", c.Broadcast.Format, "json", "proto"); err != nil {
		return err
	}

	if err := oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if c.Report.Levels < 0 {
		return &ConfigError{Field: "report.levels", Err: fmt.Errorf("%w: %d", ErrInvalid, c.Report.Levels)}
	}
	return nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &ConfigError{Field: field, Err: fmt.Errorf("%w: %q (want one of %s)", ErrInvalid, v, strings.Join(allowed, ", "))}
}

// overrideWithEnv lets deployments point at brokers and files without
// editing the YAML.
func overrideWithEnv(c *Config) {
	if v := os.Getenv("ITCHBOOK_FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("ITCHBOOK_FEED_PATH"); v != "" {
		c.Feed.Path = v
	}
	if v := os.Getenv("ITCHBOOK_FEED_BROKERS"); v != "" {
		c.Feed.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("ITCHBOOK_FEED_TOPIC"); v != "" {
		c.Feed.Kafka.Topic = v
	}
	if v := os.Getenv("ITCHBOOK_BROADCAST_BROKERS"); v != "" {
		c.Broadcast.Brokers = splitList(v)
	}
	if v := os.Getenv("ITCHBOOK_BROADCAST_TOPIC"); v != "" {
		c.Broadcast.Topic = v
	}
	if v := os.Getenv("ITCHBOOK_BOOK_MODE"); v != "" {
		c.Book.Mode = v
	}
	if v := os.Getenv("ITCHBOOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
