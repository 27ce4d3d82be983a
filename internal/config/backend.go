package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/internal/taskqueue"
)

// Backend holds the opened store and queue and the connections behind them.
type Backend struct {
	Persistence persistence.Persistence
	Queue       taskqueue.Queue

	closers []func() error
}

// Close releases connections in reverse opening order.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Open connects the configured store and queue. The mongo and nats stores
// keep history in process memory.
func Open(ctx context.Context, cfg *Config) (*Backend, error) {
	b := &Backend{}
	if err := b.open(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) open(ctx context.Context, cfg *Config) error {
	sc := cfg.Store
	switch sc.Driver {
	case DriverMemory, "":
		b.Persistence = persistence.NewMemory()

	case DriverSQLite:
		db, err := sql.Open("sqlite", sc.DSN)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		// One writer at a time; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)
		b.closers = append(b.closers, db.Close)
		if b.Persistence, err = openSQL(db, persistence.NewSQLiteStore, persistence.NewSQLiteEventStore); err != nil {
			return err
		}
		if cfg.Queue.Driver == DriverSQLite {
			q, err := taskqueue.NewSQLiteQueue(db)
			if err != nil {
				return err
			}
			b.Queue = q
		}

	case DriverPostgres:
		db, err := sql.Open("pgx", sc.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		if err := pingWithin(ctx, db.PingContext); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if b.Persistence, err = openSQL(db, persistence.NewPostgresStore, persistence.NewPostgresEventStore); err != nil {
			return err
		}
		if cfg.Queue.Driver == DriverPostgres {
			q, err := taskqueue.NewPostgresQueue(db)
			if err != nil {
				return err
			}
			b.Queue = q
		}

	case DriverRedis:
		opts, err := redisOptions(sc.DSN)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		b.closers = append(b.closers, client.Close)
		if err := pingWithin(ctx, func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		b.Persistence = persistence.Persistence{
			Flows:  persistence.NewRedisStore(client, sc.Prefix),
			Events: persistence.NewRedisEventStore(client, sc.Prefix),
		}
		if cfg.Queue.Driver == DriverRedis {
			b.Queue = taskqueue.NewRedisQueue(client, sc.Prefix)
		}

	case DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(sc.DSN))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		b.closers = append(b.closers, func() error { return client.Disconnect(context.Background()) })
		if err := pingWithin(ctx, func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
			return fmt.Errorf("ping mongo: %w", err)
		}
		b.Persistence = persistence.Persistence{
			Flows:  persistence.NewMongoStore(client, sc.Database, sc.Prefix),
			Events: persistence.NewMemoryEventStore(),
		}
		if cfg.Queue.Driver == DriverMongo {
			b.Queue = taskqueue.NewMongoQueue(client, sc.Database, "")
		}

	case DriverNATS:
		nc, err := nats.Connect(sc.DSN, nats.Name("packflow"))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		b.closers = append(b.closers, func() error { nc.Close(); return nil })
		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("jetstream: %w", err)
		}
		flows, err := persistence.NewNATSStore(ctx, js, sc.Prefix)
		if err != nil {
			return err
		}
		b.Persistence = persistence.Persistence{Flows: flows, Events: persistence.NewMemoryEventStore()}

	default:
		return fmt.Errorf("unknown store driver %q", sc.Driver)
	}

	if b.Queue == nil {
		b.Queue = taskqueue.NewInMemoryQueue()
	}
	return nil
}

// openSQL creates the flow and event tables on db.
func openSQL[F persistence.FlowStore, E persistence.EventStore](
	db *sql.DB,
	flows func(*sql.DB) (F, error),
	events func(*sql.DB) (E, error),
) (persistence.Persistence, error) {
	f, err := flows(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	e, err := events(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Flows: f, Events: e}, nil
}

func redisOptions(dsn string) (*redis.Options, error) {
	if strings.Contains(dsn, "://") {
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("redis dsn: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: dsn}, nil
}

func pingWithin(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ping(ctx)
}
