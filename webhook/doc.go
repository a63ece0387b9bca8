// Package webhook delivers Cascade lifecycle events to an external HTTP
// endpoint. When registered as an extension, it POSTs a typed event
// (cascade.link.completed, cascade.chain.ended, etc.) at every
// lifecycle point.
//
// Usage:
//
//	hook := webhook.New("https://ops.example.com/hooks/cascade",
//	    webhook.WithSecret(os.Getenv("CASCADE_WEBHOOK_SECRET")),
//	)
//	engine.WithExtension(hook)
//
// To restrict which events are delivered:
//
//	hook := webhook.New(endpoint,
//	    webhook.WithEvents(
//	        webhook.EventLinkAborted,
//	        webhook.EventDeadLettered,
//	    ),
//	)
//
// When a secret is configured, each delivery carries an
// X-Cascade-Signature header with the hex HMAC-SHA256 of the body, so
// receivers can verify the payload came from this engine.
package webhook
