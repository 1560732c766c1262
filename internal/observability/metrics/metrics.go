package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	checkRequests   metric.Int64Counter
	usageEvents     metric.Int64Counter
	reconcileItems  metric.Int64Counter
	providerCalls   metric.Int64Counter
	previewFailures metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "usagegate"
	}
	meter := provider.Meter(name)

	checkRequests, err := meter.Int64Counter("usagegate_check_requests_total")
	if err != nil {
		return nil, err
	}
	usageEvents, err := meter.Int64Counter("usagegate_usage_events_total")
	if err != nil {
		return nil, err
	}
	reconcileItems, err := meter.Int64Counter("usagegate_reconcile_items_total")
	if err != nil {
		return nil, err
	}
	providerCalls, err := meter.Int64Counter("usagegate_provider_calls_total")
	if err != nil {
		return nil, err
	}
	previewFailures, err := meter.Int64Counter("usagegate_preview_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkRequests:   checkRequests,
		usageEvents:     usageEvents,
		reconcileItems:  reconcileItems,
		providerCalls:   providerCalls,
		previewFailures: previewFailures,
	}, nil
}

// RecordCheck increments feature check counts.
func (m *Metrics) RecordCheck(ctx context.Context, featureType string, allowed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature_type", strings.TrimSpace(featureType)),
		attribute.Bool("allowed", allowed),
	)
	m.checkRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageEvent increments usage event counts.
func (m *Metrics) RecordUsageEvent(ctx context.Context, featureID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature_id", strings.TrimSpace(featureID)))
	m.usageEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileItem increments reconciliation invoice-item counts.
func (m *Metrics) RecordReconcileItem(ctx context.Context, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action", strings.TrimSpace(action)))
	m.reconcileItems.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderCall increments billing provider call counts.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, op string, failed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("op", strings.TrimSpace(op)),
		attribute.Bool("failed", failed),
	)
	m.providerCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPreviewFailure increments check preview failure counts.
func (m *Metrics) RecordPreviewFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.previewFailures.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature_type": {},
	"feature_id":   {},
	"allowed":      {},
	"action":       {},
	"provider":     {},
	"op":           {},
	"failed":       {},
	"endpoint":     {},
	"status_code":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
