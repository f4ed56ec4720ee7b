package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/redis/go-redis/v9"
)

const backendName = "redis"

// MetricsHook records every command and pipeline in StorageMetrics.
type MetricsHook struct {
	metrics *metrics.StorageMetrics
}

var _ redis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(m *metrics.StorageMetrics) *MetricsHook {
	return &MetricsHook{metrics: m}
}

func (h *MetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.metrics.ConnectionErrors.WithLabelValues(backendName).Inc()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.metrics.Observe(backendName, cmd.Name(), time.Since(start).Seconds(), commandError(err))
		return err
	}
}

// ProcessPipelineHook records a pipeline or MULTI/EXEC block as one operation.
func (h *MetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.metrics.Observe(backendName, pipelineName(cmds), time.Since(start).Seconds(), commandError(err))
		return err
	}
}

// commandError drops redis.Nil, a missing key is not a failure.
func commandError(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func pipelineName(cmds []redis.Cmder) string {
	if len(cmds) > 0 && strings.EqualFold(cmds[0].Name(), "multi") {
		return "tx_pipeline"
	}
	return "pipeline"
}
