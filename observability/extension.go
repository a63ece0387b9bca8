package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
)

// meterName is the instrumentation scope name for chain lifecycle metrics.
const meterName = "github.com/xraph/cascade/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.ChainStarted  = (*MetricsExtension)(nil)
	_ ext.LinkSubmitted = (*MetricsExtension)(nil)
	_ ext.LinkCompleted = (*MetricsExtension)(nil)
	_ ext.LinkRetrying  = (*MetricsExtension)(nil)
	_ ext.LinkAborted   = (*MetricsExtension)(nil)
	_ ext.StartDeferred = (*MetricsExtension)(nil)
	_ ext.ChainAdvanced = (*MetricsExtension)(nil)
	_ ext.ChainEnded    = (*MetricsExtension)(nil)
	_ ext.DeadLettered  = (*MetricsExtension)(nil)
	_ ext.TriggerFired  = (*MetricsExtension)(nil)
)

// MetricsExtension records chain lifecycle metrics. Register it on the
// extension registry to automatically track start rates, link outcomes,
// retries, deferrals, handoffs, dead-letter entries, and trigger fires.
//
// Instruments (all Int64Counter):
//   - cascade.chain.started, cascade.chain.advanced, cascade.chain.ended
//   - cascade.link.submitted, cascade.link.completed, cascade.link.retried,
//     cascade.link.aborted
//   - cascade.start.deferred, cascade.deadletter.recorded,
//     cascade.trigger.fired
type MetricsExtension struct {
	chainStarted  metric.Int64Counter
	chainAdvanced metric.Int64Counter
	chainEnded    metric.Int64Counter
	linkSubmitted metric.Int64Counter
	linkCompleted metric.Int64Counter
	linkRetried   metric.Int64Counter
	linkAborted   metric.Int64Counter
	startDeferred metric.Int64Counter
	deadLettered  metric.Int64Counter
	triggerFired  metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If no MeterProvider is configured, noop instruments are
// used and every hook becomes a pass-through.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. This variant allows injecting a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	m.chainStarted = counter(meter, "cascade.chain.started", "Chains launched", "{chain}")
	m.chainAdvanced = counter(meter, "cascade.chain.advanced", "Handoffs from a finished link to its successor", "{handoff}")
	m.chainEnded = counter(meter, "cascade.chain.ended", "Chains that reached a link with no successor", "{chain}")
	m.linkSubmitted = counter(meter, "cascade.link.submitted", "Link attempts accepted by the platform", "{attempt}")
	m.linkCompleted = counter(meter, "cascade.link.completed", "Link attempts that reported an outcome", "{attempt}")
	m.linkRetried = counter(meter, "cascade.link.retried", "Link attempts rescheduled after a recoverable failure", "{attempt}")
	m.linkAborted = counter(meter, "cascade.link.aborted", "Links that failed terminally", "{link}")
	m.startDeferred = counter(meter, "cascade.start.deferred", "Starts handed to the delay scheduler", "{start}")
	m.deadLettered = counter(meter, "cascade.deadletter.recorded", "Aborted attempts recorded as dead letters", "{entry}")
	m.triggerFired = counter(meter, "cascade.trigger.fired", "Trigger fires that launched a chain", "{fire}")
	return m
}

// counter creates an Int64Counter, relying on the OTel noop fallback on error.
func counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	_ = err // noop fallback guaranteed by OTel API contract
	return c
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// attrs returns the standard attribute set for an attempt.
func attrs(att *cascade.Attempt) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("job", att.Job),
		attribute.String("kind", att.Kind.String()),
	)
}

// ── Link lifecycle hooks ────────────────────────────

// OnChainStarted implements ext.ChainStarted.
func (m *MetricsExtension) OnChainStarted(ctx context.Context, att *cascade.Attempt) error {
	m.chainStarted.Add(ctx, 1, attrs(att))
	return nil
}

// OnLinkSubmitted implements ext.LinkSubmitted.
func (m *MetricsExtension) OnLinkSubmitted(ctx context.Context, att *cascade.Attempt) error {
	m.linkSubmitted.Add(ctx, 1, attrs(att))
	return nil
}

// OnLinkCompleted implements ext.LinkCompleted. The outcome kind is attached
// as a status attribute so success and failure rates can be split.
func (m *MetricsExtension) OnLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, _ time.Duration) error {
	m.linkCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", att.Job),
		attribute.String("kind", att.Kind.String()),
		attribute.String("status", string(out.Kind)),
	))
	return nil
}

// OnLinkRetrying implements ext.LinkRetrying.
func (m *MetricsExtension) OnLinkRetrying(ctx context.Context, att *cascade.Attempt, _ int, _ time.Time) error {
	m.linkRetried.Add(ctx, 1, attrs(att))
	return nil
}

// OnLinkAborted implements ext.LinkAborted.
func (m *MetricsExtension) OnLinkAborted(ctx context.Context, att *cascade.Attempt, _ error) error {
	m.linkAborted.Add(ctx, 1, attrs(att))
	return nil
}

// OnStartDeferred implements ext.StartDeferred. The deferral reason is
// attached as an attribute so ceiling pressure and platform rejections can
// be told apart.
func (m *MetricsExtension) OnStartDeferred(ctx context.Context, att *cascade.Attempt, _ time.Time, reason string) error {
	m.startDeferred.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", att.Job),
		attribute.String("kind", att.Kind.String()),
		attribute.String("reason", reason),
	))
	return nil
}

// ── Chain lifecycle hooks ───────────────────────────

// OnChainAdvanced implements ext.ChainAdvanced.
func (m *MetricsExtension) OnChainAdvanced(ctx context.Context, from, to *cascade.Attempt) error {
	m.chainAdvanced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", from.Job),
		attribute.String("kind", from.Kind.String()),
		attribute.String("next", to.Job),
	))
	return nil
}

// OnChainEnded implements ext.ChainEnded.
func (m *MetricsExtension) OnChainEnded(ctx context.Context, att *cascade.Attempt) error {
	m.chainEnded.Add(ctx, 1, attrs(att))
	return nil
}

// ── Other lifecycle hooks ───────────────────────────

// OnDeadLettered implements ext.DeadLettered.
func (m *MetricsExtension) OnDeadLettered(ctx context.Context, att *cascade.Attempt, _ error) error {
	m.deadLettered.Add(ctx, 1, attrs(att))
	return nil
}

// OnTriggerFired implements ext.TriggerFired.
func (m *MetricsExtension) OnTriggerFired(ctx context.Context, triggerName string, _ id.ChainID) error {
	m.triggerFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", triggerName),
	))
	return nil
}
