package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
)

func TestOperationName(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT address FROM client_identities", "select"},
		{"\n\t\t\tDELETE FROM client_identities c", "delete"},
		{"insert into x values (1)", "insert"},
		{"", "unknown"},
		{"   ", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, operationName(tt.sql), tt.sql)
	}
}

func TestMetricsTracer(t *testing.T) {
	m := metrics.NewStorageMetrics(prometheus.NewRegistry())
	tracer := NewMetricsTracer(m)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "INSERT INTO t VALUES (1)"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("duplicate key")})

	// end without start is ignored
	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("postgres", "select", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("postgres", "insert", "error")))
}
