// Package app runs one fetch, normalize and emit pass.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/getaq/internal/airquality"
	"github.com/breatheroute/getaq/internal/emit"
	"github.com/breatheroute/getaq/internal/telemetry"
)

const tracerName = "github.com/breatheroute/getaq/internal/app"

// Provider fetches one batch of sensor records.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// FetchSensors fetches every sensor matching the query.
	FetchSensors(ctx context.Context, q airquality.Query) (*airquality.Batch, error)
}

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	// Provider is the sensor data source.
	Provider Provider

	// Output receives the newline-delimited JSON readings.
	Output io.Writer

	// Logger for run operations.
	Logger zerolog.Logger

	// Tracer for the run span. Defaults to the global tracer.
	Tracer trace.Tracer

	// Metrics is optional.
	Metrics *telemetry.RunMetrics
}

// Runner fetches, normalizes and emits readings.
type Runner struct {
	provider Provider
	writer   *emit.NDJSONWriter
	logger   zerolog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.RunMetrics
}

// Summary describes a completed run.
type Summary struct {
	Emitted    int
	Undefined  int
	Categories map[airquality.Category]int
}

// NewRunner creates a new runner.
func NewRunner(cfg RunnerConfig) *Runner {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Runner{
		provider: cfg.Provider,
		writer:   emit.NewNDJSONWriter(cfg.Output),
		logger:   cfg.Logger,
		tracer:   tracer,
		metrics:  cfg.Metrics,
	}
}

// Run performs a single pass. Either every reading of the batch is written
// or, on any error, nothing is.
func (r *Runner) Run(ctx context.Context, q airquality.Query) (Summary, error) {
	ctx, span := r.tracer.Start(ctx, "getaq.run",
		trace.WithAttributes(
			attribute.String("provider.name", r.provider.Name()),
			attribute.Int("query.max_age", q.MaxAge),
			attribute.Float64("query.nwlat", q.Box.NWLat),
			attribute.Float64("query.nwlng", q.Box.NWLng),
			attribute.Float64("query.selat", q.Box.SELat),
			attribute.Float64("query.selng", q.Box.SELng),
		),
	)
	defer span.End()

	if !q.Box.Valid() {
		r.logger.Warn().
			Float64("nwlat", q.Box.NWLat).
			Float64("selat", q.Box.SELat).
			Msg("bounding box north edge is not above south edge, sending as given")
	}

	start := time.Now()
	batch, err := r.provider.FetchSensors(ctx, q)
	if r.metrics != nil {
		r.metrics.RecordFetch(ctx, r.provider.Name(), time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return Summary{}, fmt.Errorf("fetch sensors: %w", err)
	}

	received := r.logger.Debug().
		Int("sensors", len(batch.Records)).
		Dur("took", time.Since(start))
	if batch.DataTimeStamp != nil {
		received = received.Str("data_time_stamp", airquality.ISOTime(*batch.DataTimeStamp))
	}
	received.Msg("sensor batch received")

	readings := airquality.Normalize(batch)
	summary := summarize(readings)

	if _, err := r.writer.WriteAll(readings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "emit failed")
		return Summary{}, err
	}

	if r.metrics != nil {
		r.metrics.RecordEmitted(ctx, r.provider.Name(), summary.Emitted, summary.Undefined)
	}

	span.SetAttributes(
		attribute.Int("readings.emitted", summary.Emitted),
		attribute.Int("readings.iaqi_undefined", summary.Undefined),
	)

	event := r.logger.Info().
		Int("readings", summary.Emitted).
		Int("iaqi_undefined", summary.Undefined)
	for category, count := range summary.Categories {
		event = event.Int(string(category), count)
	}
	event.Msg("readings emitted")

	return summary, nil
}

func summarize(readings []airquality.Reading) Summary {
	s := Summary{
		Emitted:    len(readings),
		Categories: make(map[airquality.Category]int),
	}
	for _, reading := range readings {
		if reading.EPAIAQI25 == nil || reading.PM25 == nil {
			s.Undefined++
			continue
		}
		if category, ok := airquality.CategoryPM25(*reading.PM25); ok {
			s.Categories[category]++
		}
	}
	return s
}
