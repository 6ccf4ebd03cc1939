package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts auth outcomes. A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	signIn        metric.Int64Counter
	refresh       metric.Int64Counter
	revocations   metric.Int64Counter
	reuseDetected metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on mp's meter.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter(instrumentationName)
	var (
		m   AuthMetrics
		err error
	)
	if m.signIn, err = meter.Int64Counter("ger.auth.signin",
		metric.WithDescription("Sign-in attempts by outcome.")); err != nil {
		return nil, err
	}
	if m.refresh, err = meter.Int64Counter("ger.auth.refresh",
		metric.WithDescription("Refresh attempts by outcome.")); err != nil {
		return nil, err
	}
	if m.revocations, err = meter.Int64Counter("ger.auth.revocations",
		metric.WithDescription("Sessions revoked by the auth flow, by reason.")); err != nil {
		return nil, err
	}
	if m.reuseDetected, err = meter.Int64Counter("ger.auth.reuse_detected",
		metric.WithDescription("Stale refresh tokens presented after rotation.")); err != nil {
		return nil, err
	}
	return &m, nil
}

// SignIn counts one sign-in attempt.
func (m *AuthMetrics) SignIn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.signIn.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Refresh counts one refresh attempt.
func (m *AuthMetrics) Refresh(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.refresh.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Revocation counts sessions removed for reason. failed marks a delete that did not reach the store.
func (m *AuthMetrics) Revocation(ctx context.Context, reason string, sessions int, failed bool) {
	if m == nil {
		return
	}
	m.revocations.Add(ctx, int64(sessions), metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.Bool("failed", failed),
	))
}

// ReuseDetected counts one detected refresh token replay.
func (m *AuthMetrics) ReuseDetected(ctx context.Context) {
	if m == nil {
		return
	}
	m.reuseDetected.Add(ctx, 1)
}
