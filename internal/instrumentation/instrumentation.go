// Package instrumentation wires OpenTelemetry metrics for the playground.
// When disabled every instrument is backed by a no-op provider.
package instrumentation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/wadahiro/hydralens"

// Config holds instrumentation configuration.
type Config struct {
	// Enabled exports metrics in Prometheus format. When false, no-op
	// instruments are used.
	Enabled bool
}

// Instrumentation owns the meter provider and the pre-built instruments.
type Instrumentation struct {
	meterProvider metric.MeterProvider
	metrics       *Metrics
	handler       http.Handler
	shutdown      func(context.Context) error
}

// New creates the instrumentation. With Enabled set it registers an OTel
// Prometheus exporter on a private registry and exposes it through Handler.
func New(cfg Config) (*Instrumentation, error) {
	if !cfg.Enabled {
		return NewWithMeterProvider(noop.NewMeterProvider())
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	inst, err := NewWithMeterProvider(mp)
	if err != nil {
		return nil, err
	}
	inst.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	inst.shutdown = mp.Shutdown
	return inst, nil
}

// NewWithMeterProvider builds instruments on an existing provider.
func NewWithMeterProvider(mp metric.MeterProvider) (*Instrumentation, error) {
	m, err := newMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	return &Instrumentation{meterProvider: mp, metrics: m}, nil
}

// Metrics returns the metric instruments.
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Handler returns the Prometheus scrape handler, or nil when metrics are disabled.
func (i *Instrumentation) Handler() http.Handler {
	return i.handler
}

// Shutdown flushes and stops the meter provider.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	if i.shutdown == nil {
		return nil
	}
	return i.shutdown(ctx)
}
