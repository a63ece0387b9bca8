package redis

// Redis key naming conventions for cascade data.
// All keys are prefixed with "cascade:" to avoid collisions.

const keyPrefix = "cascade:"

// ── Link config keys ──

// linkKey returns the key for a link config hash: cascade:link:{kind}:{job}
func linkKey(kind, job string) string { return keyPrefix + "link:" + kind + ":" + job }

// linkMember builds the "{kind}:{job}" member stored in the link index.
func linkMember(kind, job string) string { return kind + ":" + job }

// linkIndexKey is the Set tracking all link members for enumeration.
const linkIndexKey = keyPrefix + "links"

// ── Activation keys ──

// activationKey returns the key for an activation hash: cascade:activation:{id}
func activationKey(id string) string { return keyPrefix + "activation:" + id }

// activationsDueKey is the Sorted Set indexing activation IDs by
// eligibility time (score = EligibleAt in Unix milliseconds). Range
// queries over the score are the due scan.
const activationsDueKey = keyPrefix + "activations_due"

// ── Dead letter keys ──

// deadLetterKey returns the key for a dead letter hash: cascade:deadletter:{id}
func deadLetterKey(id string) string { return keyPrefix + "deadletter:" + id }

// deadLettersByTimeKey is the Sorted Set indexing entry IDs by abort time
// (score = AbortedAt in Unix milliseconds).
const deadLettersByTimeKey = keyPrefix + "deadletters_by_time"

// ── Trigger keys ──

// triggerKey returns the key for a trigger hash: cascade:trigger:{id}
func triggerKey(id string) string { return keyPrefix + "trigger:" + id }

// triggerIDsKey is the Set tracking all trigger IDs for enumeration.
const triggerIDsKey = keyPrefix + "trigger_ids"

// triggerNamesKey maps trigger names to IDs for duplicate detection.
const triggerNamesKey = keyPrefix + "trigger_names"
