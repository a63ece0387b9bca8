// Package stream provides a real-time broker for Cascade lifecycle
// events. It implements the ext hook interfaces and fans every event out
// to subscribers through topic-based pub/sub with credit-based flow
// control, so slow consumers drop events instead of stalling the engines.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Chain and link events.
	EventChainStarted  EventType = "chain.started"
	EventLinkSubmitted EventType = "link.submitted"
	EventLinkCompleted EventType = "link.completed"
	EventLinkRetrying  EventType = "link.retrying"
	EventLinkAborted   EventType = "link.aborted"
	EventStartDeferred EventType = "start.deferred"
	EventChainAdvanced EventType = "chain.advanced"
	EventChainEnded    EventType = "chain.ended"
	EventDeadLettered  EventType = "chain.deadlettered"

	// Trigger events.
	EventTriggerFired EventType = "trigger.fired"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the entity-specific channel this event belongs to
	// (for example "chain:<id>").
	Topic string `json:"topic,omitempty"`

	// Kind is the engine kind the event originated from, when it has
	// one. It routes the event onto the per-kind topic.
	Kind string `json:"kind,omitempty"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// ChainEventData is the payload for chain and link lifecycle events.
type ChainEventData struct {
	ChainID    string `json:"chain_id"`
	Kind       string `json:"kind"`
	Job        string `json:"job"`
	TrackingID string `json:"tracking_id,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	Hops       int    `json:"hops,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Processed  int    `json:"processed,omitempty"`
	Failed     int    `json:"failed,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`
	Retry      int    `json:"retry,omitempty"`
	EligibleAt string `json:"eligible_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
	NextJob    string `json:"next_job,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TriggerEventData is the payload for trigger events.
type TriggerEventData struct {
	TriggerName string `json:"trigger_name"`
	ChainID     string `json:"chain_id"`
}
