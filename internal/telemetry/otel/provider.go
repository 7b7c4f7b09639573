package otel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/strongdm/mdc"

// Config controls OTEL exporter behaviour.
type Config struct {
	ServiceName   string
	EnableMetrics bool
	EnableTraces  bool
	Endpoint      string
}

// Provider owns OTEL meter/tracer providers and the derived instruments.
type Provider struct {
	cfg            Config
	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         trace.Tracer

	instruments  *Instruments
	shutdownOnce sync.Once
}

// Setup initialises metrics (manual reader) and traces (stdout exporter)
// following cfg. With both disabled the provider is inert.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.EnableMetrics && !cfg.EnableTraces {
		return &Provider{cfg: cfg}, nil
	}

	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "mdc"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	p := &Provider{cfg: cfg}

	if cfg.EnableMetrics {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			log.Printf("MDC_OTEL_ENDPOINT=%s ignored: remote OTLP metric export not implemented", cfg.Endpoint)
		}
		p.reader = sdkmetric.NewManualReader()
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(p.reader),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.meterProvider)
		p.meter = p.meterProvider.Meter(instrumentationName)
	}

	if cfg.EnableTraces {
		tp, err := createTracerProvider(cfg, res)
		if err != nil {
			return nil, err
		}
		p.tracerProvider = tp
		otel.SetTracerProvider(tp)
		p.tracer = tp.Tracer(instrumentationName)
	}

	p.instruments = newInstruments(p)
	return p, nil
}

func createTracerProvider(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if strings.TrimSpace(cfg.Endpoint) != "" {
		log.Printf("MDC_OTEL_ENDPOINT=%s ignored: OTLP trace export unsupported; using stdout exporter", cfg.Endpoint)
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("init stdout trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithMaxExportBatchSize(64)),
		sdktrace.WithResource(res),
	), nil
}

// Shutdown flushes and stops the configured providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	p.shutdownOnce.Do(func() {
		var errs []error
		if p.meterProvider != nil {
			if shutdownErr := p.meterProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if p.tracerProvider != nil {
			if shutdownErr := p.tracerProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if len(errs) > 0 {
			err = errors.Join(errs...)
		}
	})
	return err
}

// Instruments returns the completion and catalog instruments. Nil when
// telemetry is disabled.
func (p *Provider) Instruments() *Instruments {
	if p == nil {
		return nil
	}
	return p.instruments
}

// Collect reads the current metric state from the manual reader.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p == nil || p.reader == nil {
		return rm, fmt.Errorf("metrics disabled")
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// EnvBool interprets MDC_* env toggles.
func EnvBool(value string, defaultOn bool) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "":
		return defaultOn
	case "1", "true", "on", "enable", "enabled", "yes":
		return true
	case "0", "false", "off", "disable", "disabled", "no":
		return false
	default:
		return defaultOn
	}
}

// LoadConfigFromEnv reads OTEL config from the environment.
func LoadConfigFromEnv() Config {
	return Config{
		ServiceName:   "mdc",
		EnableMetrics: EnvBool(os.Getenv("MDC_OTEL_METRICS"), false),
		EnableTraces:  EnvBool(os.Getenv("MDC_OTEL_TRACES"), false),
		Endpoint:      strings.TrimSpace(os.Getenv("MDC_OTEL_ENDPOINT")),
	}
}
