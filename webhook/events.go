package webhook

// Cascade lifecycle event types. Each constant maps to one ext lifecycle
// hook and is used as the Delivery.Event value when posting.
const (
	EventChainStarted  = "cascade.chain.started"
	EventChainAdvanced = "cascade.chain.advanced"
	EventChainEnded    = "cascade.chain.ended"
	EventLinkSubmitted = "cascade.link.submitted"
	EventLinkCompleted = "cascade.link.completed"
	EventLinkRetrying  = "cascade.link.retrying"
	EventLinkAborted   = "cascade.link.aborted"
	EventStartDeferred = "cascade.start.deferred"
	EventDeadLettered  = "cascade.chain.deadlettered"
	EventTriggerFired  = "cascade.trigger.fired"
)

// AllEvents returns every lifecycle event type this package can deliver.
func AllEvents() []string {
	return []string{
		EventChainStarted,
		EventChainAdvanced,
		EventChainEnded,
		EventLinkSubmitted,
		EventLinkCompleted,
		EventLinkRetrying,
		EventLinkAborted,
		EventStartDeferred,
		EventDeadLettered,
		EventTriggerFired,
	}
}
