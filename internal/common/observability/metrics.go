package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability holds the OpenTelemetry instruments exported through the
// Prometheus registry served on /metrics.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	scoreCounter  otelmetric.Int64Counter
	rowCounter    otelmetric.Int64Counter
	scoreDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	scoreCounter, _ := meter.Int64Counter(
		"scoring.calls",
		otelmetric.WithDescription("Number of scoring calls"),
	)

	rowCounter, _ := meter.Int64Counter(
		"scoring.rows",
		otelmetric.WithDescription("Number of rows scored"),
	)

	scoreDuration, _ := meter.Float64Histogram(
		"scoring.duration",
		otelmetric.WithDescription("Scoring call duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		scoreCounter:  scoreCounter,
		rowCounter:    rowCounter,
		scoreDuration: scoreDuration,
	}
}

// RecordScore records one scoring call with its source and outcome.
func (o *Observability) RecordScore(ctx context.Context, source, status string, rows int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	if o.scoreCounter != nil {
		o.scoreCounter.Add(ctx, 1, attrs)
	}
	if o.rowCounter != nil && rows > 0 {
		o.rowCounter.Add(ctx, int64(rows), otelmetric.WithAttributes(attribute.String("source", source)))
	}
	if o.scoreDuration != nil {
		o.scoreDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
