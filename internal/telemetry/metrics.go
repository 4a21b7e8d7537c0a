package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const meterName = "storefront-api"

// Metrics holds the business counters the API records.
// Instruments come from the global meter provider, a no-op until Initialize installs a real one.
type Metrics struct {
	subscriptions otelmetric.Int64Counter
	uploads       otelmetric.Int64Counter
	uploadBytes   otelmetric.Int64Counter
}

// NewMetrics creates the counters on mp. A nil mp means the global provider.
func NewMetrics(mp otelmetric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	subscriptions, err := meter.Int64Counter("newsletter.subscriptions",
		otelmetric.WithDescription("Newsletter subscription attempts by outcome"))
	if err != nil {
		return nil, err
	}
	uploads, err := meter.Int64Counter("storage.uploads",
		otelmetric.WithDescription("Image uploads by bucket and outcome"))
	if err != nil {
		return nil, err
	}
	uploadBytes, err := meter.Int64Counter("storage.upload.bytes",
		otelmetric.WithDescription("Bytes written to the object store"),
		otelmetric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		subscriptions: subscriptions,
		uploads:       uploads,
		uploadBytes:   uploadBytes,
	}, nil
}

// RecordSubscription counts one subscription attempt. Safe on a nil receiver.
func (m *Metrics) RecordSubscription(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.subscriptions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordUpload counts one upload attempt and, on success, its size. Safe on a nil receiver.
func (m *Metrics) RecordUpload(ctx context.Context, bucket, outcome string, size int64) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("bucket", bucket),
		attribute.String("outcome", outcome),
	)
	m.uploads.Add(ctx, 1, attrs)
	if outcome == "ok" && size > 0 {
		m.uploadBytes.Add(ctx, size, otelmetric.WithAttributes(attribute.String("bucket", bucket)))
	}
}
