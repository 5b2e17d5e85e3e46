package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder is the subset of Metrics used by request-path components.
// Tests substitute a mock.
type Recorder interface {
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
	RecordUpstreamRequest(ctx context.Context, upstream string, status int, duration time.Duration)
	RecordRateLimited(ctx context.Context)
	RecordCORSRejection(ctx context.Context)
}

type Metrics struct {
	HTTPRequests     metric.Int64Counter
	HTTPDuration     metric.Float64Histogram
	UpstreamRequests metric.Int64Counter
	UpstreamDuration metric.Float64Histogram
	RateLimited      metric.Int64Counter
	CORSRejections   metric.Int64Counter
	RelaySessions    metric.Int64UpDownCounter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequests, err = meter.Int64Counter(
		"gateway_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"gateway_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.UpstreamRequests, err = meter.Int64Counter(
		"gateway_upstream_requests_total",
		metric.WithDescription("Total number of calls to upstream providers"),
	)
	if err != nil {
		return nil, err
	}

	m.UpstreamDuration, err = meter.Float64Histogram(
		"gateway_upstream_duration_seconds",
		metric.WithDescription("Upstream call duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.RateLimited, err = meter.Int64Counter(
		"gateway_rate_limited_total",
		metric.WithDescription("Requests rejected by the per-client rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	m.CORSRejections, err = meter.Int64Counter(
		"gateway_cors_rejections_total",
		metric.WithDescription("Requests rejected by the CORS policy"),
	)
	if err != nil {
		return nil, err
	}

	m.RelaySessions, err = meter.Int64UpDownCounter(
		"gateway_rpc_ws_sessions",
		metric.WithDescription("Number of active RPC WebSocket relay sessions"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordUpstreamRequest records one outbound call. status 0 means the call
// failed before a response arrived.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, upstream string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("upstream", upstream),
		attribute.Int("status", status),
	)

	m.UpstreamRequests.Add(ctx, 1, labels)
	m.UpstreamDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordRateLimited(ctx context.Context) {
	m.RateLimited.Add(ctx, 1)
}

func (m *Metrics) RecordCORSRejection(ctx context.Context) {
	m.CORSRejections.Add(ctx, 1)
}

func (m *Metrics) IncrementRelaySessions(ctx context.Context) {
	m.RelaySessions.Add(ctx, 1)
}

func (m *Metrics) DecrementRelaySessions(ctx context.Context) {
	m.RelaySessions.Add(ctx, -1)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}
func (Nop) RecordUpstreamRequest(context.Context, string, int, time.Duration)     {}
func (Nop) RecordRateLimited(context.Context)                                     {}
func (Nop) RecordCORSRejection(context.Context)                                   {}
func (Nop) IncrementRelaySessions(context.Context)                                {}
func (Nop) DecrementRelaySessions(context.Context)                                {}
