package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "imagedrop-api"

// UploadMetrics records upload outcomes.
type UploadMetrics struct {
	images   metric.Int64Counter
	bytes    metric.Int64Counter
	rejected metric.Int64Counter
	orphans  metric.Int64Counter
}

// NewUploadMetrics creates the upload instruments. A nil provider means the
// global one, which stays a no-op until Initialize installs a real one.
func NewUploadMetrics(provider metric.MeterProvider) *UploadMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	// Creation errors only happen on invalid names; the returned no-op
	// instrument is still safe to use.
	images, _ := meter.Int64Counter("uploads.images",
		metric.WithDescription("Images stored"),
		metric.WithUnit("{image}"))
	bytes, _ := meter.Int64Counter("uploads.bytes",
		metric.WithDescription("Bytes written to storage"),
		metric.WithUnit("By"))
	rejected, _ := meter.Int64Counter("uploads.rejected",
		metric.WithDescription("Upload requests rejected, by reason"),
		metric.WithUnit("{request}"))
	orphans, _ := meter.Int64Counter("uploads.cleanup_failures",
		metric.WithDescription("Stored files that could not be removed after a failed upload"),
		metric.WithUnit("{file}"))

	return &UploadMetrics{images: images, bytes: bytes, rejected: rejected, orphans: orphans}
}

// Stored records one successfully stored image
func (m *UploadMetrics) Stored(ctx context.Context, contentType string, size int64) {
	attrs := metric.WithAttributes(attribute.String("content_type", contentType))
	m.images.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, size, attrs)
}

// Rejected records a request that failed before anything was stored
func (m *UploadMetrics) Rejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// CleanupFailed records a file left behind by a failed upload
func (m *UploadMetrics) CleanupFailed(ctx context.Context) {
	m.orphans.Add(ctx, 1)
}
