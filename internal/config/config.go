// Package config loads packflow configuration from a YAML file with
// PACKFLOW_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PACKFLOW"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
	DriverNATS     = "nats"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Queue    QueueConfig    `yaml:"queue"`
	HTTP     HTTPConfig     `yaml:"http"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// StoreConfig selects where flow instances live. DSN is a file path for
// sqlite, a connection string for postgres, an address for redis and a URI
// for mongo and nats.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database,omitempty"`
	// Prefix is the redis key prefix, the mongo collection or the nats bucket.
	Prefix string `yaml:"prefix,omitempty"`
	Seed   bool   `yaml:"seed"`
}

// QueueConfig selects the async command queue. The sqlite, postgres, redis
// and mongo queues reuse the store connection, so they require the same
// store driver.
type QueueConfig struct {
	Driver string `yaml:"driver"`
}

type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

type WorkerConfig struct {
	Count       int           `yaml:"count"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SnapshotConfig sets the default snapshot target: Bucket for S3, Dir for
// the local file system.
type SnapshotConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// Default returns an in-memory configuration.
func Default() *Config {
	return &Config{
		Store:  StoreConfig{Driver: DriverMemory},
		Queue:  QueueConfig{Driver: DriverMemory},
		HTTP:   HTTPConfig{Addr: ":8080", Metrics: true},
		Worker: WorkerConfig{Count: 1, MaxAttempts: 3, Backoff: 500 * time.Millisecond},
		Log:    LogConfig{Level: "info", Format: "text"},
		Snapshot: SnapshotConfig{
			Dir:    ".",
			Prefix: "packflow/snapshots/",
		},
	}
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + "_" + name); ok && v != "" {
			*dst = v
		}
	}
	var err error
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + "_" + name); ok && v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = errors.Join(err, fmt.Errorf("config: %s_%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + "_" + name); ok && v != "" {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = errors.Join(err, fmt.Errorf("config: %s_%s: %w", EnvPrefix, name, perr))
				return
			}
			*dst = b
		}
	}

	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("STORE_DATABASE", &c.Store.Database)
	str("STORE_PREFIX", &c.Store.Prefix)
	boolean("STORE_SEED", &c.Store.Seed)
	str("QUEUE_DRIVER", &c.Queue.Driver)
	str("HTTP_ADDR", &c.HTTP.Addr)
	boolean("HTTP_METRICS", &c.HTTP.Metrics)
	integer("WORKER_COUNT", &c.Worker.Count)
	integer("WORKER_MAX_ATTEMPTS", &c.Worker.MaxAttempts)
	if v, ok := lookup(EnvPrefix + "_WORKER_BACKOFF"); ok && v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = errors.Join(err, fmt.Errorf("config: %s_WORKER_BACKOFF: %w", EnvPrefix, perr))
		} else {
			c.Worker.Backoff = d
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("SNAPSHOT_DIR", &c.Snapshot.Dir)
	str("SNAPSHOT_BUCKET", &c.Snapshot.Bucket)
	str("SNAPSHOT_PREFIX", &c.Snapshot.Prefix)
	str("SNAPSHOT_REGION", &c.Snapshot.Region)
	return err
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Queue.Driver = strings.ToLower(strings.TrimSpace(c.Queue.Driver))

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverRedis, DriverMongo, DriverNATS:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres, redis, mongo, nats", c.Store.Driver))
	}

	switch c.Queue.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverRedis, DriverMongo:
		if c.Queue.Driver != c.Store.Driver {
			errs = append(errs, fmt.Errorf("queue.driver %q requires store.driver %q", c.Queue.Driver, c.Queue.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.driver %q is not one of memory, sqlite, postgres, redis, mongo", c.Queue.Driver))
	}

	if c.Worker.Count < 0 {
		errs = append(errs, errors.New("worker.count must not be negative"))
	}
	if c.Worker.MaxAttempts < 1 {
		errs = append(errs, errors.New("worker.maxAttempts must be at least 1"))
	}
	if c.Worker.Backoff < 0 {
		errs = append(errs, errors.New("worker.backoff must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// Logger builds the structured logger described by c.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
