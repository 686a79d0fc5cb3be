package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the meter instruments and the tracer used by the
// store and the sync queue. A nil *Observability records nothing.
type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	mutations       otelmetric.Int64Counter
	persistDuration otelmetric.Float64Histogram
	syncOutcomes    otelmetric.Int64Counter
	tracer          trace.Tracer
}

// New wires an OpenTelemetry meter provider to a Prometheus exporter that
// registers on reg (the default registerer when nil).
func New(serviceName string, reg promclient.Registerer) *Observability {
	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{tracer: GetTracer(serviceName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	mutations, _ := meter.Int64Counter(
		"tracker.store.mutations",
		otelmetric.WithDescription("Number of local store mutations"),
	)

	persistDuration, _ := meter.Float64Histogram(
		"tracker.persist.duration",
		otelmetric.WithDescription("Durable storage write duration"),
		otelmetric.WithUnit("ms"),
	)

	syncOutcomes, _ := meter.Int64Counter(
		"tracker.sync.outcomes",
		otelmetric.WithDescription("Number of finished sync tasks"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		mutations:       mutations,
		persistDuration: persistDuration,
		syncOutcomes:    syncOutcomes,
		tracer:          GetTracer(serviceName),
	}
}

func (o *Observability) RecordMutation(ctx context.Context, operation string) {
	if o != nil && o.mutations != nil {
		o.mutations.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("operation", operation),
		))
	}
}

func (o *Observability) RecordPersist(ctx context.Context, duration time.Duration, result string) {
	if o != nil && o.persistDuration != nil {
		o.persistDuration.Record(ctx, float64(duration.Microseconds())/1000, otelmetric.WithAttributes(
			attribute.String("result", result),
		))
	}
}

func (o *Observability) RecordSyncOutcome(ctx context.Context, kind, result string) {
	if o != nil && o.syncOutcomes != nil {
		o.syncOutcomes.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("result", result),
		))
	}
}

// StartSpan starts a span on the configured tracer, or on the global one
// when o is nil.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.GetTracerProvider().Tracer("application-tracker")
	if o != nil && o.tracer != nil {
		tr = o.tracer
	}
	return tr.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
