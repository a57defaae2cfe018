package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/scscodes/flsd/internal/infrastructure"
	"github.com/scscodes/flsd/internal/table"
)

// Result describes one completed dispatch.
type Result struct {
	DataType    DataType      `json:"-"`
	Label       string        `json:"type"`
	Routine     string        `json:"routine"`
	Trigger     Trigger       `json:"trigger"`
	RawPath     string        `json:"raw_path"`
	StampedPath string        `json:"processed_file"`
	LatestPath  string        `json:"latest_file"`
	RowsIn      int           `json:"rows_in"`
	RowsOut     int           `json:"rows_out"`
	Stats       Stats         `json:"stats"`
	Degraded    bool          `json:"degraded"`
	Warnings    []string      `json:"warnings,omitempty"`
	FutureRows  int           `json:"future_rows,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Table       *table.Table  `json:"-"`
}

// Record is one ingestion attempt as kept by a Recorder.
type Record struct {
	Result *Result
	Err    error
}

// Recorder persists ingestion attempts.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Dispatcher routes raw files to cleaning routines and publishes the result.
type Dispatcher struct {
	env       Env
	publisher *Publisher
	recorder  Recorder
	metrics   *infrastructure.PipelineMetrics
	tracer    trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder records every dispatch in r. Recorder failures are logged only.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithMetrics records dispatch outcomes on m.
func WithMetrics(m *infrastructure.PipelineMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer opens a span per dispatch on tracer.
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = tracer }
}

// NewDispatcher creates a Dispatcher publishing through publisher.
func NewDispatcher(env Env, publisher *Publisher, opts ...DispatcherOption) *Dispatcher {
	env = env.withDefaults()
	d := &Dispatcher{
		env:       Env{Logger: env.Logger.With(slog.String("component", "dispatcher")), Now: env.Now},
		publisher: publisher,
		tracer:    tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch reads the raw CSV at filePath, cleans it with the routine selected
// by label and publishes it. Unrecognized labels use the default routine.
// Read, parse and write failures are returned; routine problems only degrade
// the output to baseline cleaning.
func (d *Dispatcher) Dispatch(ctx context.Context, filePath, label string) (*Result, error) {
	dt := ParseDataType(label)
	res := &Result{
		DataType:  dt,
		Label:     NormalizeLabel(label),
		Routine:   dt.String(),
		Trigger:   TriggerFromContext(ctx),
		RawPath:   filePath,
		StartedAt: d.env.Now(),
	}

	ctx, span := d.tracer.Start(ctx, "pipeline.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.data_type", res.Routine),
			attribute.String("pipeline.label", res.Label),
			attribute.String("pipeline.trigger", string(res.Trigger)),
			attribute.String("pipeline.file", filepath.Base(filePath)),
		),
	)
	defer span.End()

	logger := infrastructure.LoggerWithContext(ctx, d.env.Logger).With(
		slog.String("file", filepath.Base(filePath)),
		slog.String("data_type", res.Routine),
		slog.String("trigger", string(res.Trigger)))

	if dt == Default && res.Label != Default.String() {
		logger.DebugContext(ctx, "unrecognized type label, using default routine",
			slog.String("label", res.Label))
	}

	start := time.Now()
	err := d.run(ctx, logger, res)
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("pipeline.rows_in", res.RowsIn),
		attribute.Int("pipeline.rows_out", res.RowsOut),
		attribute.Bool("pipeline.degraded", res.Degraded),
	)

	outcome := "success"
	if err != nil {
		outcome = "error"
		infrastructure.RecordError(ctx, err)
		logger.ErrorContext(ctx, "dispatch failed", slog.String("error", err.Error()))
	} else {
		logger.InfoContext(ctx, "dispatch complete",
			slog.String("processed_file", res.StampedPath),
			slog.Int("rows_in", res.RowsIn),
			slog.Int("rows_out", res.RowsOut),
			slog.Int("duplicates_removed", res.Stats.DuplicatesRemoved),
			slog.Int("nulls_filled", res.Stats.NullsFilled),
			slog.Bool("degraded", res.Degraded),
			slog.Duration("duration", res.Duration))
	}

	d.metrics.RecordIngestion(ctx, infrastructure.IngestionSample{
		DataType:   res.Routine,
		Trigger:    string(res.Trigger),
		Outcome:    outcome,
		Rows:       res.RowsOut,
		Duplicates: res.Stats.DuplicatesRemoved,
		Nulls:      res.Stats.NullsFilled,
		Degraded:   res.Degraded,
		Duration:   res.Duration,
	})

	if d.recorder != nil {
		if rerr := d.recorder.Record(ctx, Record{Result: res, Err: err}); rerr != nil {
			logger.WarnContext(ctx, "failed to record ingestion", slog.String("error", rerr.Error()))
		}
	}

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := table.ReadFile(res.RawPath)
	if err != nil {
		return fmt.Errorf("failed to read raw file: %w", err)
	}
	res.RowsIn = raw.Len()

	out := runRoutine(ctx, Env{Logger: logger, Now: d.env.Now}, res.DataType, raw)
	res.Stats = out.Stats
	res.Degraded = out.Degraded
	res.Warnings = out.Warnings
	res.FutureRows = out.FutureRows
	res.RowsOut = out.Table.Len()
	res.Table = out.Table

	if res.DataType == Forecast && !out.Degraded {
		logger.InfoContext(ctx, "forecast rows beyond today", slog.Int("future_rows", out.FutureRows))
	}

	stamped, err := d.publisher.Publish(ctx, out.Table, res.Label, filepath.Base(res.RawPath))
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	res.StampedPath = stamped
	res.LatestPath = d.publisher.LatestPath()
	return nil
}
