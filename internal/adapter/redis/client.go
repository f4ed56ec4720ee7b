package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/redis/go-redis/v9"
)

// NewClient parses redisURL, connects and pings the server. Commands are
// recorded in m when it is non-nil.
func NewClient(ctx context.Context, redisURL string, m *metrics.StorageMetrics) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if m != nil {
		client.AddHook(NewMetricsHook(m))
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
