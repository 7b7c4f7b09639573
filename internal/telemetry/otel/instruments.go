package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instruments publishes metrics and traces for completion requests and
// catalog refreshes.
type Instruments struct {
	meterEnabled bool
	traceEnabled bool

	counterRequests  metric.Int64Counter
	counterEmpty     metric.Int64Counter
	histItems        metric.Int64Histogram
	histDuration     metric.Int64Histogram
	counterRefreshes metric.Int64Counter
	counterRefreshEr metric.Int64Counter
	histRefresh      metric.Int64Histogram

	tracer trace.Tracer
}

// RequestHandle tracks one in-flight completion or fold request.
type RequestHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// RequestInfo describes a completion or fold request.
type RequestInfo struct {
	Operation string
	Transport string
	Trigger   string
}

func newInstruments(p *Provider) *Instruments {
	if p == nil {
		return nil
	}

	inst := &Instruments{
		meterEnabled: p.meterProvider != nil,
		traceEnabled: p.tracerProvider != nil,
	}
	if p.meterProvider != nil {
		inst.counterRequests, _ = p.meter.Int64Counter(
			"mdc.requests_total",
			metric.WithDescription("Number of completion and folding requests served"),
		)
		inst.counterEmpty, _ = p.meter.Int64Counter(
			"mdc.requests_empty_total",
			metric.WithDescription("Number of completion requests that produced no items"),
		)
		inst.histItems, _ = p.meter.Int64Histogram(
			"mdc.completion.items",
			metric.WithDescription("Number of items returned per completion request"),
		)
		inst.histDuration, _ = p.meter.Int64Histogram(
			"mdc.request.duration",
			metric.WithDescription("Duration of requests in microseconds"),
		)
		inst.counterRefreshes, _ = p.meter.Int64Counter(
			"mdc.catalog.refreshes_total",
			metric.WithDescription("Number of catalog load attempts"),
		)
		inst.counterRefreshEr, _ = p.meter.Int64Counter(
			"mdc.catalog.errors_total",
			metric.WithDescription("Number of catalog loads that failed"),
		)
		inst.histRefresh, _ = p.meter.Int64Histogram(
			"mdc.catalog.refresh.duration",
			metric.WithDescription("Duration of catalog loads in milliseconds"),
		)
	}
	if p.tracerProvider != nil {
		inst.tracer = p.tracer
	}
	return inst
}

// Start returns a request handle and context including the active span when
// tracing is enabled.
func (i *Instruments) Start(parent context.Context, info RequestInfo) (*RequestHandle, context.Context) {
	if i == nil {
		return nil, parent
	}

	h := &RequestHandle{
		ctx:   parent,
		start: time.Now(),
		attrs: buildAttributes(info),
	}

	if i.traceEnabled && i.tracer != nil {
		ctx, span := i.tracer.Start(parent, spanNameFor(info.Operation), trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}
	return h, h.ctx
}

// Finish records metrics and closes the span. items is ignored for
// operations that do not produce completion items.
func (i *Instruments) Finish(h *RequestHandle, items int, err error) {
	if i == nil || h == nil {
		return
	}
	elapsed := time.Since(h.start)
	attrs := append([]attribute.KeyValue{}, h.attrs...)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	attrs = append(attrs, attribute.String("outcome", outcome))

	if i.meterEnabled {
		i.counterRequests.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		if err == nil && items == 0 {
			i.counterEmpty.Add(h.ctx, 1, metric.WithAttributes(h.attrs...))
		}
		i.histItems.Record(h.ctx, int64(items), metric.WithAttributes(h.attrs...))
		i.histDuration.Record(h.ctx, elapsed.Microseconds(), metric.WithAttributes(attrs...))
	}

	if h.span != nil {
		h.span.SetAttributes(attrs...)
		h.span.SetAttributes(attribute.Int("mdc.items", items))
		if err != nil {
			h.span.SetStatus(codes.Error, err.Error())
		}
		h.span.End()
	}
}

// RecordRefresh records one catalog load attempt.
func (i *Instruments) RecordRefresh(source string, components int, took time.Duration, err error) {
	if i == nil || !i.meterEnabled {
		return
	}
	ctx := context.Background()
	attrs := []attribute.KeyValue{attribute.String("mdc.catalog.source", source)}
	i.counterRefreshes.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		i.counterRefreshEr.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	i.histRefresh.Record(ctx, took.Milliseconds(), metric.WithAttributes(
		append(attrs, attribute.Int("mdc.catalog.components", components))...,
	))
}

func buildAttributes(info RequestInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if info.Operation != "" {
		attrs = append(attrs, attribute.String("mdc.operation", info.Operation))
	}
	if info.Transport != "" {
		attrs = append(attrs, attribute.String("transport", info.Transport))
	}
	if info.Trigger != "" {
		attrs = append(attrs, attribute.String("mdc.trigger", info.Trigger))
	}
	return attrs
}

func spanNameFor(operation string) string {
	if operation == "" {
		return "mdc.request"
	}
	return "mdc." + operation
}
