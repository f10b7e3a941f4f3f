// Package persistence selects a document store backend from configuration
// and copies documents between backends.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tplearn/tplearn-bot/config"
	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/bolt"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/memory"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/postgres"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/redis"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence/sqlite"
	"github.com/tplearn/tplearn-bot/pkg/retry"
)

// Backend is a document store that owns a connection or file handle.
type Backend interface {
	planner.Store
	Close() error
}

// Open connects to the configured backend. Network backends are retried
// with backoff since the bot usually starts alongside its database.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "store", "backend", string(cfg.Backend))

	retrier := retry.StoreRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("store connection failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	})

	var (
		store Backend
		err   error
	)
	switch cfg.Backend {
	case config.StoreRedis:
		rc := redis.DefaultConfig()
		rc.URL = cfg.RedisURL
		if cfg.RedisPrefix != "" {
			rc.Prefix = cfg.RedisPrefix
		}
		err = retrier.Do(ctx, func(ctx context.Context) error {
			s, err := redis.NewStore(ctx, rc)
			if err != nil {
				return err
			}
			store = s
			return nil
		})
	case config.StorePostgres:
		pc := postgres.DefaultConfig()
		pc.URL = cfg.DatabaseURL
		err = retrier.Do(ctx, func(ctx context.Context) error {
			s, err := postgres.Open(ctx, pc)
			if err != nil {
				return err
			}
			store = s
			return nil
		})
	case config.StoreBolt:
		var s *bolt.Store
		if s, err = bolt.Open(cfg.BoltPath); err == nil {
			store = s
		}
	case config.StoreSQLite:
		var s *sqlite.Store
		if s, err = sqlite.Open(ctx, cfg.SQLitePath); err == nil {
			store = s
		}
	case config.StoreMemory:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("store opened")
	return store, nil
}

// Copy moves every bot document from src to dst unchanged. Missing
// documents are skipped. It returns the number of documents written.
func Copy(ctx context.Context, src, dst planner.Store) (int, error) {
	copied := 0
	for _, key := range planner.DocumentKeys {
		var doc json.RawMessage
		ok, err := src.Load(ctx, key, &doc)
		if err != nil {
			return copied, fmt.Errorf("load %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if err := dst.Dump(ctx, key, doc); err != nil {
			return copied, fmt.Errorf("dump %s: %w", key, err)
		}
		copied++
	}
	return copied, nil
}
