package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"ger/backend/internal/telemetry/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	require.NotNil(t, em)
	assert.NoError(t, em.Emit(context.Background(), nil))
	assert.NoError(t, em.Emit(context.Background(), &domain.SecurityEvent{Type: domain.EventRefreshReuse}))
}

func TestNewEventEmitter_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	assert.NoError(t, em.Emit(context.Background(), nil))
	assert.NoError(t, em.Emit(context.Background(), &domain.SecurityEvent{Type: domain.EventSessionMismatch}))
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, em.Emit(context.Background(), &domain.SecurityEvent{
		ID:         "evt-1",
		Type:       domain.EventSessionMismatch,
		UserID:     "u1",
		SessionIDs: []string{"s1", "s2"},
		Detail:     "access and refresh tokens belong to different sessions",
		CreatedAt:  created,
	}))

	rec := capture.rec
	assert.Equal(t, otellog.SeverityWarn, rec.Severity())
	assert.Equal(t, created, rec.Timestamp())
	assert.Equal(t, "access and refresh tokens belong to different sessions", rec.Body().AsString())
	assert.Equal(t, map[string]string{
		"event_type":  "session_mismatch",
		"event_id":    "evt-1",
		"user_id":     "u1",
		"session_ids": "s1,s2",
	}, attributes(rec))
}

func TestEmit_MinimalEvent(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)

	before := time.Now().UTC()
	require.NoError(t, em.Emit(context.Background(), &domain.SecurityEvent{Type: domain.EventRevocationFailed}))
	after := time.Now().UTC()

	rec := capture.rec
	assert.True(t, rec.Body().Empty())
	assert.Equal(t, map[string]string{"event_type": "revocation_failed"}, attributes(rec))
	assert.False(t, rec.Timestamp().Before(before))
	assert.False(t, rec.Timestamp().After(after))
}

func TestEmit_NilEventSkipsLogger(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	require.NoError(t, em.Emit(context.Background(), nil))
	assert.Zero(t, capture.calls)
}
