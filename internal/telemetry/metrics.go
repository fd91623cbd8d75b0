package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RunMetrics holds the instruments recorded for each fetch-and-emit run.
type RunMetrics struct {
	fetchDuration   metric.Float64Histogram
	fetchTotal      metric.Int64Counter
	readingsEmitted metric.Int64Counter
	iaqiUndefined   metric.Int64Counter
}

// NewRunMetrics creates the run instruments on meter.
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	fetchDuration, err := meter.Float64Histogram(
		"getaq.fetch.duration",
		metric.WithDescription("Duration of sensor-listing requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"getaq.fetch.total",
		metric.WithDescription("Total number of sensor-listing requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	readingsEmitted, err := meter.Int64Counter(
		"getaq.readings.emitted",
		metric.WithDescription("Number of readings written to output"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	iaqiUndefined, err := meter.Int64Counter(
		"getaq.iaqi.undefined",
		metric.WithDescription("Readings whose PM2.5 index could not be computed"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		fetchDuration:   fetchDuration,
		fetchTotal:      fetchTotal,
		readingsEmitted: readingsEmitted,
		iaqiUndefined:   iaqiUndefined,
	}, nil
}

// RecordFetch records one sensor-listing request.
func (m *RunMetrics) RecordFetch(ctx context.Context, provider string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmitted records how many readings were written and how many of them
// carried a null PM2.5 index.
func (m *RunMetrics) RecordEmitted(ctx context.Context, provider string, emitted, undefined int) {
	attrs := metric.WithAttributes(attribute.String("provider.name", provider))
	m.readingsEmitted.Add(ctx, int64(emitted), attrs)
	m.iaqiUndefined.Add(ctx, int64(undefined), attrs)
}
