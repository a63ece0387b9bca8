package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Broker)(nil)
	_ ext.ChainStarted  = (*Broker)(nil)
	_ ext.LinkSubmitted = (*Broker)(nil)
	_ ext.LinkCompleted = (*Broker)(nil)
	_ ext.LinkRetrying  = (*Broker)(nil)
	_ ext.LinkAborted   = (*Broker)(nil)
	_ ext.StartDeferred = (*Broker)(nil)
	_ ext.ChainAdvanced = (*Broker)(nil)
	_ ext.ChainEnded    = (*Broker)(nil)
	_ ext.DeadLettered  = (*Broker)(nil)
	_ ext.TriggerFired  = (*Broker)(nil)
	_ ext.Shutdown      = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker receives lifecycle events through the ext hooks and fans them
// out to subscribers via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	subscribers sync.Map // subscriberID → *Subscriber

	totalPublished atomic.Int64

	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) {
		if credits > 0 {
			b.defaultCredits = credits
		}
	}
}

// NewBroker creates a stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external wiring.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics. TotalDropped covers the currently
// connected subscribers.
func (b *Broker) Stats() BrokerStats {
	count := 0
	var dropped int64
	b.subscribers.Range(func(_, value any) bool {
		count++
		dropped += value.(*Subscriber).Dropped() //nolint:errcheck // sync.Map always stores *Subscriber
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    dropped,
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish resolves an event's topics and broadcasts it.
func (b *Broker) publish(evt *Event) {
	delivered := b.topics.Broadcast(resolveTopics(evt), evt)
	b.totalPublished.Add(int64(delivered))
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

// chainEvent builds the envelope for one attempt-scoped event.
func chainEvent(typ EventType, att *cascade.Attempt, data ChainEventData) *Event {
	return &Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Topic:     ChainTopic(att.ChainID.String()),
		Kind:      att.Kind.String(),
		Data:      mustMarshal(data),
	}
}

// chainData fills the payload fields every attempt-scoped event shares.
func chainData(att *cascade.Attempt) ChainEventData {
	d := ChainEventData{
		ChainID: att.ChainID.String(),
		Kind:    att.Kind.String(),
		Job:     att.Job,
		Attempt: att.Number,
		Hops:    att.Hops,
	}
	if !att.TrackingID.IsNil() {
		d.TrackingID = att.TrackingID.String()
	}
	return d
}

// ── Chain lifecycle hooks ───────────────────────────

func (b *Broker) OnChainStarted(_ context.Context, att *cascade.Attempt) error {
	b.publish(chainEvent(EventChainStarted, att, chainData(att)))
	return nil
}

func (b *Broker) OnLinkSubmitted(_ context.Context, att *cascade.Attempt) error {
	b.publish(chainEvent(EventLinkSubmitted, att, chainData(att)))
	return nil
}

func (b *Broker) OnLinkCompleted(_ context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration) error {
	data := chainData(att)
	data.Outcome = string(out.Kind)
	data.Processed = out.Processed
	data.Failed = out.Failed
	data.ElapsedMs = elapsed.Milliseconds()
	data.Error = out.Error
	b.publish(chainEvent(EventLinkCompleted, att, data))
	return nil
}

func (b *Broker) OnLinkRetrying(_ context.Context, att *cascade.Attempt, retry int, eligibleAt time.Time) error {
	data := chainData(att)
	data.Retry = retry
	data.EligibleAt = eligibleAt.Format(time.RFC3339)
	b.publish(chainEvent(EventLinkRetrying, att, data))
	return nil
}

func (b *Broker) OnLinkAborted(_ context.Context, att *cascade.Attempt, attErr error) error {
	data := chainData(att)
	data.Error = attErr.Error()
	b.publish(chainEvent(EventLinkAborted, att, data))
	return nil
}

func (b *Broker) OnStartDeferred(_ context.Context, att *cascade.Attempt, eligibleAt time.Time, reason string) error {
	data := chainData(att)
	data.EligibleAt = eligibleAt.Format(time.RFC3339)
	data.Reason = reason
	b.publish(chainEvent(EventStartDeferred, att, data))
	return nil
}

func (b *Broker) OnChainAdvanced(_ context.Context, from, to *cascade.Attempt) error {
	data := chainData(to)
	data.Job = from.Job
	data.NextJob = to.Job
	b.publish(chainEvent(EventChainAdvanced, to, data))
	return nil
}

func (b *Broker) OnChainEnded(_ context.Context, att *cascade.Attempt) error {
	b.publish(chainEvent(EventChainEnded, att, chainData(att)))
	return nil
}

func (b *Broker) OnDeadLettered(_ context.Context, att *cascade.Attempt, attErr error) error {
	data := chainData(att)
	data.Error = attErr.Error()
	b.publish(chainEvent(EventDeadLettered, att, data))
	return nil
}

// ── Trigger hooks ───────────────────────────────────

func (b *Broker) OnTriggerFired(_ context.Context, triggerName string, chainID id.ChainID) error {
	b.publish(&Event{
		Type:      EventTriggerFired,
		Timestamp: time.Now().UTC(),
		Topic:     ChainTopic(chainID.String()),
		Data: mustMarshal(TriggerEventData{
			TriggerName: triggerName,
			ChainID:     chainID.String(),
		}),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
