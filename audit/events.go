package audit

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionChainStarted  = "chain.started"
	ActionLinkSubmitted = "link.submitted"
	ActionLinkCompleted = "link.completed"
	ActionLinkRetrying  = "link.retrying"
	ActionLinkAborted   = "link.aborted"
	ActionStartDeferred = "start.deferred"
	ActionChainAdvanced = "chain.advanced"
	ActionChainEnded    = "chain.ended"
	ActionDeadLettered  = "chain.deadlettered"
	ActionTriggerFired  = "trigger.fired"
)

// Audit event categories group related actions.
const (
	CategoryChain   = "cascade.chain"
	CategoryLink    = "cascade.link"
	CategoryTrigger = "cascade.trigger"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceChain   = "chain"
	ResourceTrigger = "trigger"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionChainStarted,
		ActionLinkSubmitted,
		ActionLinkCompleted,
		ActionLinkRetrying,
		ActionLinkAborted,
		ActionStartDeferred,
		ActionChainAdvanced,
		ActionChainEnded,
		ActionDeadLettered,
		ActionTriggerFired,
	}
}
