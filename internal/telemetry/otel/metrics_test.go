package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func total(sum metricdata.Sum[int64], kv ...attribute.KeyValue) int64 {
	want := attribute.NewSet(kv...)
	var n int64
	for _, dp := range sum.DataPoints {
		if len(kv) == 0 || dp.Attributes.Equals(&want) {
			n += dp.Value
		}
	}
	return n
}

func TestAuthMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewAuthMetrics(mp)
	require.NoError(t, err)
	ctx := context.Background()

	m.SignIn(ctx, "success")
	m.SignIn(ctx, "success")
	m.SignIn(ctx, "incorrect_password")
	m.Refresh(ctx, "success")
	m.Revocation(ctx, "session_mismatch", 2, false)
	m.Revocation(ctx, "refresh_reuse", 1, true)
	m.ReuseDetected(ctx)

	sums := collect(t, reader)
	assert.Equal(t, int64(2), total(sums["ger.auth.signin"], attribute.String("outcome", "success")))
	assert.Equal(t, int64(1), total(sums["ger.auth.signin"], attribute.String("outcome", "incorrect_password")))
	assert.Equal(t, int64(1), total(sums["ger.auth.refresh"]))
	assert.Equal(t, int64(3), total(sums["ger.auth.revocations"]))
	assert.Equal(t, int64(2), total(sums["ger.auth.revocations"],
		attribute.String("reason", "session_mismatch"), attribute.Bool("failed", false)))
	assert.Equal(t, int64(1), total(sums["ger.auth.reuse_detected"]))
}

func TestAuthMetrics_NilIsNoop(t *testing.T) {
	var m *AuthMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.SignIn(ctx, "success")
		m.Refresh(ctx, "success")
		m.Revocation(ctx, "x", 1, false)
		m.ReuseDetected(ctx)
	})
}
