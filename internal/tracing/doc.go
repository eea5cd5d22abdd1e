// Package tracing configures the OpenTelemetry tracer provider and offers
// helpers for starting spans around pipeline stages.
package tracing
