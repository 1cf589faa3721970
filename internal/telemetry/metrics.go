package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/shortlink"
)

// Attribute keys shared by the security instruments.
var (
	AttrReason      = attribute.Key("reason")
	AttrAttemptType = attribute.Key("attempt_type")
	AttrEndpoint    = attribute.Key("endpoint")
	AttrResource    = attribute.Key("resource")
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	SessionsCreatedTotal     metric.Int64Counter
	SessionsRevokedTotal     metric.Int64Counter
	SessionValidationFailure metric.Int64Counter

	// Lockout metrics
	FailedAttemptsTotal metric.Int64Counter
	LockoutsTotal       metric.Int64Counter

	// Rate limit metrics
	RateLimitDeniedTotal   metric.Int64Counter
	RateLimitFailOpenTotal metric.Int64Counter

	// Credential check metrics
	CredentialCheckDuration metric.Float64Histogram

	// Housekeeping metrics
	CleanupDeletedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Session metrics
	m.SessionsCreatedTotal, _ = meter.Int64Counter(
		"shortlink.sessions.created.total",
		metric.WithDescription("Total number of admin sessions created"),
		metric.WithUnit("{session}"),
	)

	m.SessionsRevokedTotal, _ = meter.Int64Counter(
		"shortlink.sessions.revoked.total",
		metric.WithDescription("Total number of admin sessions revoked"),
		metric.WithUnit("{session}"),
	)

	m.SessionValidationFailure, _ = meter.Int64Counter(
		"shortlink.sessions.validation.failures.total",
		metric.WithDescription("Total number of rejected session validations by reason"),
		metric.WithUnit("{session}"),
	)

	// Lockout metrics
	m.FailedAttemptsTotal, _ = meter.Int64Counter(
		"shortlink.lockout.failed_attempts.total",
		metric.WithDescription("Total number of failed verification attempts by attempt type"),
		metric.WithUnit("{attempt}"),
	)

	m.LockoutsTotal, _ = meter.Int64Counter(
		"shortlink.lockout.lockouts.total",
		metric.WithDescription("Total number of lockouts started by attempt type"),
		metric.WithUnit("{lockout}"),
	)

	// Rate limit metrics
	m.RateLimitDeniedTotal, _ = meter.Int64Counter(
		"shortlink.ratelimit.denied.total",
		metric.WithDescription("Total number of requests denied by the rate limiter"),
		metric.WithUnit("{request}"),
	)

	m.RateLimitFailOpenTotal, _ = meter.Int64Counter(
		"shortlink.ratelimit.fail_open.total",
		metric.WithDescription("Total number of requests allowed because the counter store failed"),
		metric.WithUnit("{request}"),
	)

	// Credential check metrics
	m.CredentialCheckDuration, _ = meter.Float64Histogram(
		"shortlink.credential.check.duration",
		metric.WithDescription("Duration of constant-time credential checks"),
		metric.WithUnit("ms"),
	)

	// Housekeeping metrics
	m.CleanupDeletedTotal, _ = meter.Int64Counter(
		"shortlink.cleanup.deleted.total",
		metric.WithDescription("Total number of records deleted by cleanup sweeps by resource"),
		metric.WithUnit("{record}"),
	)

	return m
}
