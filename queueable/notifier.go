package queueable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/policy"
	"github.com/xraph/cascade/schedule"
)

// OnOutcome handles the platform's terminal outcome for one attempt.
// Retry and abort decisions always ride this path; whether it also
// advances the chain depends on the link's UseCompletionHook: when set,
// advancing belongs to the hook path.
//
// Duplicates and outcomes for unknown attempts are no-ops.
func (e *Engine) OnOutcome(ctx context.Context, tid id.TrackingID, out cascade.Outcome) {
	key := tid.String()

	e.liveMu.Lock()
	live, ok := e.live[key]
	if !ok || live.outcomeSeen {
		e.liveMu.Unlock()
		if !ok {
			e.logger.Debug("outcome for unknown attempt", slog.String("tracking_id", key))
		}
		return
	}
	live.outcomeSeen = true
	att, cfg := live.att, live.cfg
	e.liveMu.Unlock()

	e.governor.Release(cascade.KindQueueable)
	e.emitter.EmitLinkCompleted(ctx, att, out, time.Since(att.SubmittedAt))

	e.logger.Info("link completed",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", att.Job),
		slog.Int("attempt", att.Number),
		slog.String("outcome", string(out.Kind)),
	)

	e.runAfter(ctx, att, out)
	if out.Failure() {
		e.runOnError(ctx, att, out)
	}

	switch policy.Decide(out.Kind, att.Retries(), cfg.MaxRetries, cfg.ContinueOnFailure) {
	case policy.Retry:
		if e.claimContinuation(key) {
			e.scheduleRetry(ctx, att, cfg.MaxRetries, out)
		}
	case policy.Abort:
		if e.claimContinuation(key) {
			e.abort(ctx, att, cfg.MaxRetries, outcomeErr(out))
		}
	case policy.Continue:
		if !cfg.UseCompletionHook {
			if e.claimContinuation(key) {
				e.advance(ctx, att, cfg.Next, cfg.Delay)
			}
		}
	}

	e.reap(key)
}

// OnHook handles the platform's completion hook for one attempt. The
// job's OnCompletionHook callback always runs; whether the hook also
// advances the chain depends on the link's UseCompletionHook. The hook
// carries its own outcome, so an early hook (arriving before the
// outcome notification) can still decide.
//
// Duplicates and hooks for unknown attempts are no-ops.
func (e *Engine) OnHook(ctx context.Context, tid id.TrackingID, out cascade.Outcome) {
	key := tid.String()

	e.liveMu.Lock()
	live, ok := e.live[key]
	if !ok || live.hookSeen {
		e.liveMu.Unlock()
		if !ok {
			e.logger.Debug("completion hook for unknown attempt", slog.String("tracking_id", key))
		}
		return
	}
	live.hookSeen = true
	att, cfg := live.att, live.cfg
	e.liveMu.Unlock()

	e.logger.Debug("completion hook received",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", att.Job),
		slog.String("outcome", string(out.Kind)),
	)

	e.runHook(ctx, att, out)

	// Retries and aborts stay on the outcome path, which owns the error
	// hooks and dead letters. The hook path only ever advances.
	if cfg.UseCompletionHook {
		if policy.Decide(out.Kind, att.Retries(), cfg.MaxRetries, cfg.ContinueOnFailure) == policy.Continue {
			if e.claimContinuation(key) {
				e.advance(ctx, att, cfg.Next, cfg.Delay)
			}
		}
	}

	e.reap(key)
}

// claimContinuation marks the attempt's one continuation decision as
// made. With the dual trigger both paths race for it; exactly one wins.
func (e *Engine) claimContinuation(key string) bool {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	live, ok := e.live[key]
	if !ok || live.continued {
		return false
	}
	live.continued = true
	return true
}

// reap drops the live record once both the outcome and the hook have
// been handled. Platforms deliver the completion hook for every
// queueable submission, so both flags always arrive.
func (e *Engine) reap(key string) {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	if live, ok := e.live[key]; ok && live.outcomeSeen && live.hookSeen {
		delete(e.live, key)
	}
}

// takeExplicit removes and returns parameters stashed by ContinueWith.
func (e *Engine) takeExplicit(key string) cascade.Params {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	if live, ok := e.live[key]; ok {
		explicit := live.explicit
		live.explicit = nil
		return explicit
	}
	return nil
}

func outcomeErr(out cascade.Outcome) error {
	if out.Error != "" {
		return errors.New(out.Error)
	}
	return fmt.Errorf("link failed: %s", out.Kind)
}

// ──────────────────────────────────────────────────
// Decision paths
// ──────────────────────────────────────────────────

// advance moves the chain to the finished link's successor. A missing or
// inactive successor ends the chain; the finished link's delay gates the
// hand-off through the scheduler.
func (e *Engine) advance(ctx context.Context, att *cascade.Attempt, nextJob string, delay time.Duration) {
	explicit := e.takeExplicit(att.TrackingID.String())

	if nextJob == "" {
		e.logger.Info("chain ended",
			slog.String("chain_id", att.ChainID.String()),
			slog.String("job", att.Job),
			slog.Int("hops", att.Hops),
		)
		e.emitter.EmitChainEnded(ctx, att)
		return
	}

	nextCfg, err := e.resolveConfig(ctx, nextJob)
	if err != nil {
		e.logger.Warn("chain terminated: next link config unavailable",
			slog.String("chain_id", att.ChainID.String()),
			slog.String("job", att.Job),
			slog.String("next", nextJob),
			slog.String("error", err.Error()),
		)
		e.emitter.EmitChainEnded(ctx, att)
		return
	}
	if !nextCfg.Active {
		e.logger.Info("chain terminated: next link inactive",
			slog.String("chain_id", att.ChainID.String()),
			slog.String("job", att.Job),
			slog.String("next", nextJob),
		)
		e.emitter.EmitChainEnded(ctx, att)
		return
	}

	next := att.NextLink(nextJob, 0, explicit)
	next.Timeout = nextCfg.Timeout

	if next.Hops >= e.maxHops {
		e.abort(ctx, next, nextCfg.MaxRetries, cascade.ErrHopBudgetExceeded)
		return
	}

	e.emitter.EmitChainAdvanced(ctx, att, next)

	if delay > 0 {
		act := activationFrom(next, schedule.ReasonDelay)
		if err := e.scheduler.Schedule(ctx, act, delay); err != nil {
			e.abort(ctx, next, nextCfg.MaxRetries, fmt.Errorf("schedule delayed hand-off: %w", err))
			return
		}
		e.logger.Info("chain advance delayed",
			slog.String("chain_id", next.ChainID.String()),
			slog.String("job", next.Job),
			slog.Duration("delay", delay),
			slog.Time("eligible_at", act.EligibleAt),
		)
		return
	}

	if err := e.runBefore(ctx, next); err != nil {
		e.abort(ctx, next, nextCfg.MaxRetries, err)
		return
	}
	if err := e.launch(ctx, next, nextCfg); err != nil {
		e.abort(ctx, next, nextCfg.MaxRetries, err)
		return
	}
}

// scheduleRetry persists the delayed re-submission of a recoverably
// failed link.
func (e *Engine) scheduleRetry(ctx context.Context, att *cascade.Attempt, maxRetries int, out cascade.Outcome) {
	retry := att.Number // retry N follows attempt N
	act := activationFrom(att, schedule.ReasonRetry)
	act.Attempt = att.Number + 1

	if err := e.scheduler.Schedule(ctx, act, e.backoff(retry)); err != nil {
		e.abort(ctx, att, maxRetries, fmt.Errorf("schedule retry: %w", err))
		return
	}

	e.emitter.EmitLinkRetrying(ctx, att, retry, act.EligibleAt)
	e.logger.Info("link retry scheduled",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", att.Job),
		slog.Int("retry", retry),
		slog.Time("eligible_at", act.EligibleAt),
		slog.String("error", out.Error),
	)
}

// abort terminates the chain and records a dead letter.
func (e *Engine) abort(ctx context.Context, att *cascade.Attempt, maxRetries int, cause error) {
	e.logger.Error("chain aborted",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", att.Job),
		slog.Int("attempt", att.Number),
		slog.Int("hops", att.Hops),
		slog.String("error", cause.Error()),
	)
	e.emitter.EmitLinkAborted(ctx, att, cause)

	if e.dead == nil {
		return
	}
	if err := e.dead.Record(ctx, att, maxRetries, cause); err != nil {
		e.logger.Error("dead letter record failed",
			slog.String("chain_id", att.ChainID.String()),
			slog.String("job", att.Job),
			slog.String("error", err.Error()),
		)
		return
	}
	e.emitter.EmitDeadLettered(ctx, att, cause)
}

// ──────────────────────────────────────────────────
// Resume
// ──────────────────────────────────────────────────

// resume is the scheduler's hand-off target. Config is re-resolved so
// cancellations that happened while the activation waited take effect at
// this boundary.
func (e *Engine) resume(ctx context.Context, act *schedule.Activation) error {
	cfg, err := e.resolveConfig(ctx, act.Job)
	if err != nil {
		if errors.Is(err, cascade.ErrConfigNotFound) {
			e.logger.Warn("dropping activation: link config gone",
				slog.String("chain_id", act.ChainID.String()),
				slog.String("job", act.Job),
			)
			return nil
		}
		return fmt.Errorf("cascade/queueable: resume %q: %w", act.Job, err)
	}

	att := attemptFrom(act, cfg.Timeout)

	if !cfg.Active {
		e.logger.Info("chain cancelled at boundary",
			slog.String("chain_id", act.ChainID.String()),
			slog.String("job", act.Job),
			slog.String("reason", string(act.Reason)),
		)
		e.emitter.EmitChainEnded(ctx, att)
		return nil
	}

	// A delayed hand-off is the next link's first boundary; deferred
	// starts and retries already ran BeforeExecution.
	if act.Reason == schedule.ReasonDelay {
		if err := e.runBefore(ctx, att); err != nil {
			e.abort(ctx, att, cfg.MaxRetries, err)
			return nil
		}
	}

	if err := e.launch(ctx, att, cfg); err != nil {
		e.abort(ctx, att, cfg.MaxRetries, err)
		return nil
	}
	return nil
}

func attemptFrom(act *schedule.Activation, timeout time.Duration) *cascade.Attempt {
	return &cascade.Attempt{
		ChainID: act.ChainID,
		Kind:    act.Kind,
		Job:     act.Job,
		Params:  act.Params.Clone(),
		Number:  act.Attempt,
		Hops:    act.Hops,
		Timeout: timeout,
	}
}
