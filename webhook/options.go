package webhook

import "net/http"

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc builds a custom event payload for a specific event type.
// The args parameter carries the default payload and the returned value
// becomes Delivery.Data.
type PayloadFunc func(args any) (any, error)

// WithSecret enables HMAC-SHA256 signing of delivery bodies. The
// signature travels in the X-Cascade-Signature header.
func WithSecret(secret string) Option {
	return func(e *Extension) {
		e.secret = secret
	}
}

// WithEvents restricts the extension to deliver only the listed event
// types. By default all event types are delivered. Unknown types are
// silently ignored.
func WithEvents(events ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(events))
		for _, evt := range events {
			e.enabled[evt] = true
		}
	}
}

// WithPayloadFunc registers a custom payload builder for the given event
// type. The function replaces the default JSON payload for that event.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(e *Extension) {
		if e.payloads == nil {
			e.payloads = make(map[string]PayloadFunc)
		}
		e.payloads[eventType] = fn
	}
}

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extension) {
		e.client = client
	}
}
