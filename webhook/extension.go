package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.ChainStarted  = (*Extension)(nil)
	_ ext.LinkSubmitted = (*Extension)(nil)
	_ ext.LinkCompleted = (*Extension)(nil)
	_ ext.LinkRetrying  = (*Extension)(nil)
	_ ext.LinkAborted   = (*Extension)(nil)
	_ ext.StartDeferred = (*Extension)(nil)
	_ ext.ChainAdvanced = (*Extension)(nil)
	_ ext.ChainEnded    = (*Extension)(nil)
	_ ext.DeadLettered  = (*Extension)(nil)
	_ ext.TriggerFired  = (*Extension)(nil)
)

// Delivery is the JSON envelope posted to the endpoint.
type Delivery struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"ts"`
	Data      any       `json:"data"`
}

// Extension posts Cascade lifecycle events to an HTTP endpoint. Each
// lifecycle hook becomes one POST; delivery failures surface as hook
// errors and never affect chain execution.
type Extension struct {
	endpoint string
	secret   string
	client   *http.Client
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension delivering to the given endpoint.
func New(endpoint string, opts ...Option) *Extension {
	e := &Extension{
		endpoint: endpoint,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: 10 * time.Second}
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "webhook" }

// ── Chain lifecycle hooks ───────────────────────────

// OnChainStarted implements ext.ChainStarted.
func (e *Extension) OnChainStarted(ctx context.Context, att *cascade.Attempt) error {
	return e.send(ctx, EventChainStarted, newChainPayload(att))
}

// OnLinkSubmitted implements ext.LinkSubmitted.
func (e *Extension) OnLinkSubmitted(ctx context.Context, att *cascade.Attempt) error {
	return e.send(ctx, EventLinkSubmitted, &linkSubmittedPayload{
		chainPayload: *newChainPayload(att),
		TrackingID:   att.TrackingID.String(),
	})
}

// OnLinkCompleted implements ext.LinkCompleted.
func (e *Extension) OnLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration) error {
	return e.send(ctx, EventLinkCompleted, &linkCompletedPayload{
		chainPayload: *newChainPayload(att),
		Outcome:      string(out.Kind),
		Error:        out.Error,
		Processed:    out.Processed,
		Failed:       out.Failed,
		ElapsedMs:    elapsed.Milliseconds(),
	})
}

// OnLinkRetrying implements ext.LinkRetrying.
func (e *Extension) OnLinkRetrying(ctx context.Context, att *cascade.Attempt, retry int, eligibleAt time.Time) error {
	return e.send(ctx, EventLinkRetrying, &linkRetryingPayload{
		chainPayload: *newChainPayload(att),
		Retry:        retry,
		EligibleAt:   eligibleAt.Format(time.RFC3339),
	})
}

// OnLinkAborted implements ext.LinkAborted.
func (e *Extension) OnLinkAborted(ctx context.Context, att *cascade.Attempt, attErr error) error {
	return e.send(ctx, EventLinkAborted, &linkFailedPayload{
		chainPayload: *newChainPayload(att),
		Error:        attErr.Error(),
	})
}

// OnStartDeferred implements ext.StartDeferred.
func (e *Extension) OnStartDeferred(ctx context.Context, att *cascade.Attempt, eligibleAt time.Time, reason string) error {
	return e.send(ctx, EventStartDeferred, &startDeferredPayload{
		chainPayload: *newChainPayload(att),
		Reason:       reason,
		EligibleAt:   eligibleAt.Format(time.RFC3339),
	})
}

// OnChainAdvanced implements ext.ChainAdvanced.
func (e *Extension) OnChainAdvanced(ctx context.Context, from, to *cascade.Attempt) error {
	return e.send(ctx, EventChainAdvanced, &chainAdvancedPayload{
		ChainID: to.ChainID.String(),
		Kind:    to.Kind.String(),
		FromJob: from.Job,
		ToJob:   to.Job,
		Hops:    to.Hops,
	})
}

// OnChainEnded implements ext.ChainEnded.
func (e *Extension) OnChainEnded(ctx context.Context, att *cascade.Attempt) error {
	return e.send(ctx, EventChainEnded, newChainPayload(att))
}

// OnDeadLettered implements ext.DeadLettered.
func (e *Extension) OnDeadLettered(ctx context.Context, att *cascade.Attempt, attErr error) error {
	return e.send(ctx, EventDeadLettered, &linkFailedPayload{
		chainPayload: *newChainPayload(att),
		Error:        attErr.Error(),
	})
}

// ── Trigger hooks ───────────────────────────────────

// OnTriggerFired implements ext.TriggerFired.
func (e *Extension) OnTriggerFired(ctx context.Context, triggerName string, chainID id.ChainID) error {
	return e.send(ctx, EventTriggerFired, &triggerPayload{
		TriggerName: triggerName,
		ChainID:     chainID.String(),
	})
}

// ── Internal helpers ────────────────────────────────

// send posts the event to the endpoint if the event type is enabled.
func (e *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if e.enabled != nil && !e.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := e.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	body, err := json.Marshal(Delivery{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal %s: %w", eventType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cascade-Event", eventType)
	if e.secret != "" {
		req.Header.Set("X-Cascade-Signature", Sign(e.secret, body))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", eventType, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: post %s: endpoint returned %d", eventType, resp.StatusCode)
	}
	return nil
}

// Sign computes the signature header value for a delivery body:
// "sha256=" followed by the hex HMAC-SHA256 of the body under secret.
// Receivers recompute it to verify authenticity.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// ── Default payload types ───────────────────────────

type chainPayload struct {
	ChainID string `json:"chain_id"`
	Kind    string `json:"kind"`
	Job     string `json:"job"`
	Attempt int    `json:"attempt,omitempty"`
	Hops    int    `json:"hops,omitempty"`
}

func newChainPayload(att *cascade.Attempt) *chainPayload {
	return &chainPayload{
		ChainID: att.ChainID.String(),
		Kind:    att.Kind.String(),
		Job:     att.Job,
		Attempt: att.Number,
		Hops:    att.Hops,
	}
}

type linkSubmittedPayload struct {
	chainPayload
	TrackingID string `json:"tracking_id"`
}

type linkCompletedPayload struct {
	chainPayload
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type linkRetryingPayload struct {
	chainPayload
	Retry      int    `json:"retry"`
	EligibleAt string `json:"eligible_at"`
}

type linkFailedPayload struct {
	chainPayload
	Error string `json:"error"`
}

type startDeferredPayload struct {
	chainPayload
	Reason     string `json:"reason"`
	EligibleAt string `json:"eligible_at"`
}

type chainAdvancedPayload struct {
	ChainID string `json:"chain_id"`
	Kind    string `json:"kind"`
	FromJob string `json:"from_job"`
	ToJob   string `json:"to_job"`
	Hops    int    `json:"hops"`
}

type triggerPayload struct {
	TriggerName string `json:"trigger_name"`
	ChainID     string `json:"chain_id"`
}
