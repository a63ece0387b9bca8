package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/trigger"
)

// ── Link model ────────────────────────────────────────────────────

type linkModel struct {
	ID                string    `bson:"_id"`
	Kind              string    `bson:"kind"`
	Job               string    `bson:"job"`
	Next              string    `bson:"next"`
	BatchSize         int       `bson:"batch_size"`
	Delay             int64     `bson:"delay"`
	Timeout           int64     `bson:"timeout"`
	MaxRetries        int       `bson:"max_retries"`
	Active            bool      `bson:"active"`
	ContinueOnFailure bool      `bson:"continue_on_failure"`
	UseCompletionHook bool      `bson:"use_completion_hook"`
	Description       string    `bson:"description"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// linkDocID builds the deterministic _id for a link config.
func linkDocID(kind cascade.Kind, job string) string {
	return string(kind) + ":" + job
}

func toLinkModel(cfg *chain.LinkConfig) *linkModel {
	return &linkModel{
		ID:                linkDocID(cfg.Kind, cfg.Job),
		Kind:              string(cfg.Kind),
		Job:               cfg.Job,
		Next:              cfg.Next,
		BatchSize:         cfg.BatchSize,
		Delay:             cfg.Delay.Nanoseconds(),
		Timeout:           cfg.Timeout.Nanoseconds(),
		MaxRetries:        cfg.MaxRetries,
		Active:            cfg.Active,
		ContinueOnFailure: cfg.ContinueOnFailure,
		UseCompletionHook: cfg.UseCompletionHook,
		Description:       cfg.Description,
		CreatedAt:         cfg.CreatedAt,
		UpdatedAt:         cfg.UpdatedAt,
	}
}

func fromLinkModel(m *linkModel) *chain.LinkConfig {
	return &chain.LinkConfig{
		Entity: cascade.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Kind:              cascade.Kind(m.Kind),
		Job:               m.Job,
		Next:              m.Next,
		BatchSize:         m.BatchSize,
		Delay:             time.Duration(m.Delay),
		Timeout:           time.Duration(m.Timeout),
		MaxRetries:        m.MaxRetries,
		Active:            m.Active,
		ContinueOnFailure: m.ContinueOnFailure,
		UseCompletionHook: m.UseCompletionHook,
		Description:       m.Description,
	}
}

// ── Activation model ──────────────────────────────────────────────

type activationModel struct {
	ID         string         `bson:"_id"`
	Kind       string         `bson:"kind"`
	Job        string         `bson:"job"`
	ChainID    string         `bson:"chain_id"`
	Params     cascade.Params `bson:"params,omitempty"`
	Attempt    int            `bson:"attempt"`
	Hops       int            `bson:"hops"`
	Reason     string         `bson:"reason"`
	EligibleAt time.Time      `bson:"eligible_at"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

func toActivationModel(act *schedule.Activation) *activationModel {
	return &activationModel{
		ID:         act.ID.String(),
		Kind:       string(act.Kind),
		Job:        act.Job,
		ChainID:    act.ChainID.String(),
		Params:     act.Params,
		Attempt:    act.Attempt,
		Hops:       act.Hops,
		Reason:     string(act.Reason),
		EligibleAt: act.EligibleAt,
		CreatedAt:  act.CreatedAt,
		UpdatedAt:  act.UpdatedAt,
	}
}

func fromActivationModel(m *activationModel) (*schedule.Activation, error) {
	parsedID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: parse schedule id %q: %w", m.ID, err)
	}
	parsedChain, err := id.ParseChainID(m.ChainID)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: parse chain id %q: %w", m.ChainID, err)
	}

	return &schedule.Activation{
		Entity: cascade.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		Kind:       cascade.Kind(m.Kind),
		Job:        m.Job,
		ChainID:    parsedChain,
		Params:     m.Params,
		Attempt:    m.Attempt,
		Hops:       m.Hops,
		Reason:     schedule.Reason(m.Reason),
		EligibleAt: m.EligibleAt,
	}, nil
}

// ── Dead letter model ─────────────────────────────────────────────

type deadLetterModel struct {
	ID         string         `bson:"_id"`
	ChainID    string         `bson:"chain_id"`
	Kind       string         `bson:"kind"`
	Job        string         `bson:"job"`
	Params     cascade.Params `bson:"params,omitempty"`
	Error      string         `bson:"error"`
	Attempts   int            `bson:"attempts"`
	MaxRetries int            `bson:"max_retries"`
	Hops       int            `bson:"hops"`
	AbortedAt  time.Time      `bson:"aborted_at"`
	ReplayedAt *time.Time     `bson:"replayed_at,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

func toDeadLetterModel(entry *deadletter.Entry) *deadLetterModel {
	return &deadLetterModel{
		ID:         entry.ID.String(),
		ChainID:    entry.ChainID.String(),
		Kind:       string(entry.Kind),
		Job:        entry.Job,
		Params:     entry.Params,
		Error:      entry.Error,
		Attempts:   entry.Attempts,
		MaxRetries: entry.MaxRetries,
		Hops:       entry.Hops,
		AbortedAt:  entry.AbortedAt,
		ReplayedAt: entry.ReplayedAt,
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	}
}

func fromDeadLetterModel(m *deadLetterModel) (*deadletter.Entry, error) {
	parsedID, err := id.ParseDeadLetterID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: parse dead letter id %q: %w", m.ID, err)
	}
	parsedChain, err := id.ParseChainID(m.ChainID)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: parse chain id %q: %w", m.ChainID, err)
	}

	return &deadletter.Entry{
		Entity: cascade.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		ChainID:    parsedChain,
		Kind:       cascade.Kind(m.Kind),
		Job:        m.Job,
		Params:     m.Params,
		Error:      m.Error,
		Attempts:   m.Attempts,
		MaxRetries: m.MaxRetries,
		Hops:       m.Hops,
		AbortedAt:  m.AbortedAt,
		ReplayedAt: m.ReplayedAt,
	}, nil
}

// ── Trigger model ─────────────────────────────────────────────────

type triggerModel struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Schedule  string         `bson:"schedule"`
	Kind      string         `bson:"kind"`
	Job       string         `bson:"job"`
	Params    cascade.Params `bson:"params,omitempty"`
	LastRunAt *time.Time     `bson:"last_run_at,omitempty"`
	NextRunAt *time.Time     `bson:"next_run_at,omitempty"`
	Enabled   bool           `bson:"enabled"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

func toTriggerModel(entry *trigger.Entry) *triggerModel {
	return &triggerModel{
		ID:        entry.ID.String(),
		Name:      entry.Name,
		Schedule:  entry.Schedule,
		Kind:      string(entry.Kind),
		Job:       entry.Job,
		Params:    entry.Params,
		LastRunAt: entry.LastRunAt,
		NextRunAt: entry.NextRunAt,
		Enabled:   entry.Enabled,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}

func fromTriggerModel(m *triggerModel) (*trigger.Entry, error) {
	parsedID, err := id.ParseTriggerID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: parse trigger id %q: %w", m.ID, err)
	}

	return &trigger.Entry{
		Entity: cascade.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        parsedID,
		Name:      m.Name,
		Schedule:  m.Schedule,
		Kind:      cascade.Kind(m.Kind),
		Job:       m.Job,
		Params:    m.Params,
		LastRunAt: m.LastRunAt,
		NextRunAt: m.NextRunAt,
		Enabled:   m.Enabled,
	}, nil
}
