package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/observability"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func newTestExtension(t *testing.T) (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	t.Helper()
	reader, mp := setupTestMeter()
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestAttempt() *cascade.Attempt {
	return &cascade.Attempt{
		ChainID: id.NewChainID(),
		Kind:    cascade.KindBatch,
		Job:     "send-invoices",
		Number:  1,
	}
}

// counterValue collects the reader and sums all data points of the named
// counter, returning -1 when the instrument recorded nothing.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64] data type, got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return -1
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension(t)
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_ChainStarted(t *testing.T) {
	e, reader := newTestExtension(t)
	if err := e.OnChainStarted(context.Background(), newTestAttempt()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "cascade.chain.started"); got != 1 {
		t.Errorf("cascade.chain.started: want 1, got %d", got)
	}
}

func TestMetricsExtension_LinkCompletedStatus(t *testing.T) {
	e, reader := newTestExtension(t)
	ctx := context.Background()
	att := newTestAttempt()

	if err := e.OnLinkCompleted(ctx, att, cascade.Success(), 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.OnLinkCompleted(ctx, att, cascade.RecoverableFailure(errors.New("boom")), 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	statuses := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cascade.link.completed" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("expected Sum[int64] data type, got %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				for _, attr := range dp.Attributes.ToSlice() {
					if string(attr.Key) == "status" {
						statuses[attr.Value.AsString()] = true
					}
				}
			}
		}
	}
	if !statuses["success"] {
		t.Error("expected a data point with status=success")
	}
	if !statuses["recoverable"] {
		t.Error("expected a data point with status=recoverable")
	}
}

func TestMetricsExtension_DeferredReason(t *testing.T) {
	e, reader := newTestExtension(t)
	ctx := context.Background()

	if err := e.OnStartDeferred(ctx, newTestAttempt(), time.Now().Add(10*time.Second), "ceiling"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cascade.start.deferred" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				for _, attr := range dp.Attributes.ToSlice() {
					if string(attr.Key) == "reason" && attr.Value.AsString() == "ceiling" {
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("expected reason=ceiling attribute on deferred counter")
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension(t)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	reg := ext.NewRegistry(logger)
	reg.Register(e)

	ctx := context.Background()
	att := newTestAttempt()
	next := newTestAttempt()
	next.Job = "reconcile"

	reg.EmitChainStarted(ctx, att)
	reg.EmitLinkSubmitted(ctx, att)
	reg.EmitLinkCompleted(ctx, att, cascade.Success(), 50*time.Millisecond)
	reg.EmitLinkRetrying(ctx, att, 1, time.Now())
	reg.EmitLinkAborted(ctx, att, errors.New("fail"))
	reg.EmitStartDeferred(ctx, att, time.Now(), "platform")
	reg.EmitChainAdvanced(ctx, att, next)
	reg.EmitChainEnded(ctx, next)
	reg.EmitDeadLettered(ctx, att, errors.New("dead"))
	reg.EmitTriggerFired(ctx, "hourly", id.NewChainID())

	names := []string{
		"cascade.chain.started",
		"cascade.link.submitted",
		"cascade.link.completed",
		"cascade.link.retried",
		"cascade.link.aborted",
		"cascade.start.deferred",
		"cascade.chain.advanced",
		"cascade.chain.ended",
		"cascade.deadletter.recorded",
		"cascade.trigger.fired",
	}
	for _, name := range names {
		if got := counterValue(t, reader, name); got != 1 {
			t.Errorf("%s: want 1, got %d", name, got)
		}
	}
}

func TestMetricsExtension_DefaultNoopSafe(t *testing.T) {
	// Constructing against the global provider must not panic even when no
	// MeterProvider has been configured.
	e := observability.NewMetricsExtension()
	if err := e.OnChainStarted(context.Background(), newTestAttempt()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// testWriter routes registry log output through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
