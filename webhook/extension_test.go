package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/webhook"
)

// delivery is one captured POST.
type delivery struct {
	event     string
	signature string
	body      []byte
	envelope  webhook.Delivery
	data      map[string]any
}

// captureServer records webhook deliveries and answers with status.
type captureServer struct {
	srv *httptest.Server

	mu         sync.Mutex
	status     int
	deliveries []delivery
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()
	cs := &captureServer{status: http.StatusOK}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		d := delivery{
			event:     r.Header.Get("X-Cascade-Event"),
			signature: r.Header.Get("X-Cascade-Signature"),
			body:      body,
		}
		_ = json.Unmarshal(body, &d.envelope)
		var env struct {
			Data map[string]any `json:"data"`
		}
		_ = json.Unmarshal(body, &env)
		d.data = env.Data

		cs.mu.Lock()
		cs.deliveries = append(cs.deliveries, d)
		status := cs.status
		cs.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *captureServer) setStatus(code int) {
	cs.mu.Lock()
	cs.status = code
	cs.mu.Unlock()
}

func (cs *captureServer) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.deliveries)
}

func (cs *captureServer) last() *delivery {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.deliveries) == 0 {
		return nil
	}
	return &cs.deliveries[len(cs.deliveries)-1]
}

func testAttempt() *cascade.Attempt {
	return &cascade.Attempt{
		ChainID:    id.NewChainID(),
		Kind:       cascade.KindBatch,
		Job:        "extract-orders",
		Params:     cascade.Params{"region": "eu"},
		Number:     2,
		Hops:       3,
		TrackingID: id.NewTrackingID(),
	}
}

func TestLinkCompletedDelivery(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	e := webhook.New(cs.srv.URL)
	att := testAttempt()
	out := cascade.Outcome{Kind: cascade.OutcomeSuccess, Processed: 5}

	if err := e.OnLinkCompleted(context.Background(), att, out, 1200*time.Millisecond); err != nil {
		t.Fatalf("OnLinkCompleted: %v", err)
	}

	d := cs.last()
	if d == nil {
		t.Fatal("no delivery captured")
	}
	if d.event != webhook.EventLinkCompleted {
		t.Errorf("event header = %q, want %q", d.event, webhook.EventLinkCompleted)
	}
	if d.envelope.Event != webhook.EventLinkCompleted {
		t.Errorf("envelope event = %q, want %q", d.envelope.Event, webhook.EventLinkCompleted)
	}
	if d.envelope.Timestamp.IsZero() {
		t.Error("envelope timestamp is zero")
	}
	if got := d.data["chain_id"]; got != att.ChainID.String() {
		t.Errorf("chain_id = %v, want %s", got, att.ChainID)
	}
	if got := d.data["job"]; got != "extract-orders" {
		t.Errorf("job = %v, want extract-orders", got)
	}
	if got := d.data["outcome"]; got != "success" {
		t.Errorf("outcome = %v, want success", got)
	}
	if got := d.data["processed"]; got != float64(5) {
		t.Errorf("processed = %v, want 5", got)
	}
	if got := d.data["elapsed_ms"]; got != float64(1200) {
		t.Errorf("elapsed_ms = %v, want 1200", got)
	}
}

func TestSignatureHeader(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	e := webhook.New(cs.srv.URL, webhook.WithSecret("topsecret"))

	if err := e.OnChainStarted(context.Background(), testAttempt()); err != nil {
		t.Fatalf("OnChainStarted: %v", err)
	}

	d := cs.last()
	if d == nil {
		t.Fatal("no delivery captured")
	}
	if !strings.HasPrefix(d.signature, "sha256=") {
		t.Fatalf("signature = %q, want sha256= prefix", d.signature)
	}
	if want := webhook.Sign("topsecret", d.body); d.signature != want {
		t.Errorf("signature = %q, want %q", d.signature, want)
	}
	if webhook.Sign("othersecret", d.body) == d.signature {
		t.Error("signature does not depend on the secret")
	}
}

func TestUnsignedWithoutSecret(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	e := webhook.New(cs.srv.URL)

	if err := e.OnChainEnded(context.Background(), testAttempt()); err != nil {
		t.Fatalf("OnChainEnded: %v", err)
	}
	if d := cs.last(); d == nil || d.signature != "" {
		t.Errorf("unexpected signature on unsigned delivery: %v", d)
	}
}

func TestEventFiltering(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	e := webhook.New(cs.srv.URL, webhook.WithEvents(webhook.EventLinkAborted))
	att := testAttempt()

	if err := e.OnChainStarted(context.Background(), att); err != nil {
		t.Fatalf("OnChainStarted: %v", err)
	}
	if got := cs.count(); got != 0 {
		t.Fatalf("filtered event delivered %d times", got)
	}

	if err := e.OnLinkAborted(context.Background(), att, errors.New("bad feed")); err != nil {
		t.Fatalf("OnLinkAborted: %v", err)
	}
	if got := cs.count(); got != 1 {
		t.Fatalf("deliveries = %d, want 1", got)
	}
	if got := cs.last().data["error"]; got != "bad feed" {
		t.Errorf("error = %v, want bad feed", got)
	}
}

func TestCustomPayloadFunc(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	e := webhook.New(cs.srv.URL,
		webhook.WithPayloadFunc(webhook.EventChainEnded, func(args any) (any, error) {
			return map[string]string{"note": "trimmed"}, nil
		}),
	)

	if err := e.OnChainEnded(context.Background(), testAttempt()); err != nil {
		t.Fatalf("OnChainEnded: %v", err)
	}

	d := cs.last()
	if d == nil {
		t.Fatal("no delivery captured")
	}
	if got := d.data["note"]; got != "trimmed" {
		t.Errorf("custom payload note = %v, want trimmed", got)
	}
	if _, ok := d.data["chain_id"]; ok {
		t.Error("custom payload kept the default fields")
	}
}

func TestEndpointFailure(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	cs.setStatus(http.StatusBadGateway)
	e := webhook.New(cs.srv.URL)

	err := e.OnChainStarted(context.Background(), testAttempt())
	if err == nil {
		t.Fatal("delivery to failing endpoint reported success")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want status code mention", err)
	}
}

func TestTriggerFiredDelivery(t *testing.T) {
	t.Parallel()

	cs := newCaptureServer(t)
	e := webhook.New(cs.srv.URL)
	chainID := id.NewChainID()

	if err := e.OnTriggerFired(context.Background(), "nightly-report", chainID); err != nil {
		t.Fatalf("OnTriggerFired: %v", err)
	}

	d := cs.last()
	if d == nil {
		t.Fatal("no delivery captured")
	}
	if got := d.data["trigger_name"]; got != "nightly-report" {
		t.Errorf("trigger_name = %v, want nightly-report", got)
	}
	if got := d.data["chain_id"]; got != chainID.String() {
		t.Errorf("chain_id = %v, want %s", got, chainID)
	}
}
