package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inotherwords/internal/history"
)

// newHistoryStore builds the guess history backend named in the config. The
// returned close func releases its connections.
func newHistoryStore(ctx context.Context, cfg *Config) (history.Store, func() error, error) {
	switch cfg.historyBackend {
	case "memory":
		logInfo("Guess history kept in memory only")
		return history.NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.redisAddr, err)
		}
		logInfo("Guess history stored in redis at %s", cfg.redisAddr)
		return history.NewRedisStore(rdb, cfg.historyMaxAge), rdb.Close, nil
	default:
		logInfo("Guess history stored in %s", cfg.historyDir)
		return history.NewFileStore(cfg.historyDir, cfg.historyMaxAge), func() error { return nil }, nil
	}
}

// runHistoryCleanup periodically removes expired history for stores that do
// not expire records on their own.
func runHistoryCleanup(ctx context.Context, store history.Store, maxAge, every time.Duration) error {
	cleaner, ok := store.(history.Cleaner)
	if !ok {
		return nil
	}
	logInfo("Starting cleanup of guess history older than %v every %v", maxAge, every)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := cleaner.Cleanup(ctx, maxAge)
			if err != nil {
				logWarn("History cleanup failed: %v", err)
				continue
			}
			if removed > 0 {
				logInfo("History cleanup completed: removed %d records", removed)
			}
		}
	}
}
