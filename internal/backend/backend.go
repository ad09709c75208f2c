// Package backend opens the key index store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/grumpyguvner/mailkeys/internal/config"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/grumpyguvner/mailkeys/internal/keys/cassandra"
	"github.com/grumpyguvner/mailkeys/internal/keys/pebble"
	"github.com/grumpyguvner/mailkeys/internal/keys/postgres"
	"go.uber.org/zap"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open returns the configured store wrapped for metrics and logging, and
// a closer that releases every client Open created.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (keys.Store, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store  keys.Store
		closer io.Closer
		err    error
	)

	switch cfg.Backend {
	case config.BackendCassandra:
		store, closer, err = openCassandra(cfg)
	case config.BackendPostgres:
		store, closer, err = openPostgres(ctx, cfg)
	case config.BackendPebble:
		var s *pebble.KeysStore
		s, err = pebble.Open(cfg.PebblePath, logger)
		store, closer = s, s
	case config.BackendMemory:
		s := keys.NewMemoryStore()
		store, closer = s, s
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	logger.Info("key index backend ready", zap.String("backend", cfg.Backend))
	return keys.Instrument(store, cfg.Backend, logger), closer, nil
}

func cassandraConfig(cfg *config.Config) cassandra.Config {
	return cassandra.Config{
		Hosts:          cfg.CassandraHosts,
		Keyspace:       cfg.CassandraKeyspace,
		Consistency:    cfg.CassandraConsistency,
		Timeout:        time.Duration(cfg.CassandraTimeout) * time.Millisecond,
		ConnectTimeout: time.Duration(cfg.CassandraConnectTimeout) * time.Millisecond,
	}
}

func openCassandra(cfg *config.Config) (keys.Store, io.Closer, error) {
	session, err := cassandra.Connect(cassandraConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	dao := cassandra.New(session,
		cassandra.WithTable(cfg.CassandraTable),
		cassandra.WithPageSize(cfg.CassandraPageSize),
	)
	return dao, closerFunc(func() error {
		session.Close()
		return nil
	}), nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (keys.Store, io.Closer, error) {
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	repo, err := postgres.NewKeysRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repo, closerFunc(func() error {
		stmtErr := repo.Close()
		if err := db.Close(); err != nil {
			return err
		}
		return stmtErr
	}), nil
}

// Migrate creates the schema the configured backend needs. Pebble and
// memory stores need none.
func Migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case config.BackendCassandra:
		if err := cassandra.EnsureSchema(ctx, cassandraConfig(cfg), cfg.CassandraTable, cfg.CassandraReplicationFactor); err != nil {
			return fmt.Errorf("cassandra schema: %w", err)
		}
		logger.Info("cassandra schema ready",
			zap.String("keyspace", cfg.CassandraKeyspace),
			zap.String("table", cfg.CassandraTable),
		)
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer db.Close()
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	case config.BackendPebble, config.BackendMemory:
		logger.Info("backend needs no schema", zap.String("backend", cfg.Backend))
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}
