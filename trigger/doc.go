// Package trigger provides recurring chain starts driven by cron
// expressions.
//
// # Entry
//
// An [Entry] represents one recurring start:
//   - Schedule: standard 5-field cron expression or descriptor
//     (e.g., "0 9 * * 1-5", "@every 30s")
//   - Kind / Job: the chain head to start when the trigger fires
//   - Params: static parameters passed to every start
//   - Enabled: whether the entry fires
//
// # Registering a Trigger
//
//	err := sched.Register(ctx, &trigger.Entry{
//	    Name:     "nightly-invoices",
//	    Schedule: "0 2 * * *",
//	    Kind:     cascade.KindBatch,
//	    Job:      "collect-invoices",
//	    Params:   cascade.Params{"mode": "full"},
//	    Enabled:  true,
//	})
//
// # Scheduler
//
// The [Scheduler] evaluates due entries on every tick, starts the
// configured chain through the engine bound for the entry's kind, and
// updates LastRunAt and NextRunAt. The [ext.TriggerFired] hook fires
// after each start.
package trigger
