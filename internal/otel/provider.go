package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OTel configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ExportInterval time.Duration
	MetricWriter   io.Writer // where metrics are exported (required when enabled)
	LogWriter      io.Writer // where OTel log records are exported (optional)
	BatchTimeout   time.Duration
	Endpoint       string // OTLP/HTTP log endpoint (optional, only used if set)
	Insecure       bool   // Use insecure connection for OTLP
}

// Provider manages the OpenTelemetry meter and log providers
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	logProvider   *sdklog.LoggerProvider
	config        Config
}

// New creates a new OTel provider with the given configuration and installs
// it as the global meter provider. If OTel is disabled, returns a no-op provider.
func New(cfg Config) (*Provider, error) {
	p := &Provider{
		config: cfg,
	}

	if !cfg.Enabled {
		return p, nil
	}
	if cfg.MetricWriter == nil {
		return nil, errors.New("OTel enabled but no metric writer configured")
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	processors, err := logProcessors(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(processors) > 0 {
		opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
		for _, proc := range processors {
			opts = append(opts, sdklog.WithProcessor(proc))
		}
		p.logProvider = sdklog.NewLoggerProvider(opts...)
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.MetricWriter),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.ExportInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.ExportInterval))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
	otel.SetMeterProvider(p.meterProvider)

	return p, nil
}

// logProcessors builds one batch processor per configured log destination.
func logProcessors(ctx context.Context, cfg Config) ([]sdklog.Processor, error) {
	var batchOpts []sdklog.BatchProcessorOption
	if cfg.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdklog.WithExportTimeout(cfg.BatchTimeout))
	}

	var processors []sdklog.Processor
	if cfg.LogWriter != nil {
		fileExporter, err := stdoutlog.New(
			stdoutlog.WithWriter(cfg.LogWriter),
			stdoutlog.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(fileExporter, batchOpts...))
	}

	if cfg.Endpoint != "" {
		otlpOpts := []otlploghttp.Option{
			otlploghttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlploghttp.WithInsecure())
		}
		otlpExporter, err := otlploghttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(otlpExporter, batchOpts...))
	}
	return processors, nil
}

// LoggerProvider returns the log provider for use with the otelslog bridge.
// Returns nil if OTel is disabled or no log destination is configured.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter with the given name, or a no-op meter when disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Flush forces an export of all pending metrics and logs.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric flush failed: %w", err))
		}
	}
	if p.logProvider != nil {
		if err := p.logProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the meter and log providers.
// Should be called when the application exits.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown failed: %w", err))
		}
	}
	if p.logProvider != nil {
		if err := p.logProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
