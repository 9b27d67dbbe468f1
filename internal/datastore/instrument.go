package datastore

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// RegisterGauge reports m.Len() as the ttlkv.keys gauge on the global meter
// provider.
func RegisterGauge(m *Memory) (metric.Registration, error) {
	meter := otel.Meter("github.com/UltraSive/ttlkv/internal/datastore")
	gauge, err := meter.Int64ObservableGauge("ttlkv.keys",
		metric.WithDescription("Resident keys, including expired keys not yet evicted."),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(m.Len()))
		return nil
	}, gauge)
}
