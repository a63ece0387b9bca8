package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
)

// PutActivation persists an activation and indexes it by eligibility time.
func (s *Store) PutActivation(ctx context.Context, act *schedule.Activation) error {
	aID := act.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, activationKey(aID), activationToMap(act))
	pipe.ZAdd(ctx, activationsDueKey, goredis.Z{
		Score:  float64(act.EligibleAt.UnixMilli()),
		Member: aID,
	})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: put activation: %w", err)
	}
	return nil
}

// GetActivation retrieves an activation by ID.
func (s *Store) GetActivation(ctx context.Context, sid id.ScheduleID) (*schedule.Activation, error) {
	vals, err := s.client.HGetAll(ctx, activationKey(sid.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get activation: %w", err)
	}
	if len(vals) == 0 {
		return nil, cascade.ErrScheduleNotFound
	}
	return mapToActivation(vals)
}

// DueActivations returns activations eligible at or before now, oldest
// eligibility first. The sorted-set score is the eligibility time, so the
// due scan is a single range query.
func (s *Store) DueActivations(ctx context.Context, now time.Time, limit int) ([]*schedule.Activation, error) {
	ids, err := s.client.ZRangeByScore(ctx, activationsDueKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: due activations: %w", err)
	}
	return s.fetchActivations(ctx, ids)
}

// ListActivations returns all pending activations, oldest eligibility first.
func (s *Store) ListActivations(ctx context.Context) ([]*schedule.Activation, error) {
	ids, err := s.client.ZRange(ctx, activationsDueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list activations: %w", err)
	}
	return s.fetchActivations(ctx, ids)
}

// DeleteActivation removes an activation by ID.
func (s *Store) DeleteActivation(ctx context.Context, sid id.ScheduleID) error {
	aID := sid.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, activationKey(aID))
	pipe.ZRem(ctx, activationsDueKey, aID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: delete activation: %w", err)
	}
	return nil
}

// ── helpers ──

// fetchActivations loads the hashes behind an ordered list of IDs,
// skipping members whose hash was deleted between the index read and the
// fetch.
func (s *Store) fetchActivations(ctx context.Context, ids []string) ([]*schedule.Activation, error) {
	acts := make([]*schedule.Activation, 0, len(ids))
	for _, aID := range ids {
		vals, err := s.client.HGetAll(ctx, activationKey(aID)).Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		act, convErr := mapToActivation(vals)
		if convErr != nil {
			continue
		}
		acts = append(acts, act)
	}
	return acts, nil
}

func activationToMap(act *schedule.Activation) map[string]interface{} {
	return map[string]interface{}{
		"id":          act.ID.String(),
		"kind":        act.Kind.String(),
		"job":         act.Job,
		"chain_id":    act.ChainID.String(),
		"params":      marshalParams(act.Params),
		"attempt":     strconv.Itoa(act.Attempt),
		"hops":        strconv.Itoa(act.Hops),
		"reason":      string(act.Reason),
		"eligible_at": act.EligibleAt.Format(time.RFC3339Nano),
		"created_at":  act.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  act.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToActivation(m map[string]string) (*schedule.Activation, error) {
	aID, err := id.ParseScheduleID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: parse activation id: %w", err)
	}
	chainID, _ := id.ParseChainID(m["chain_id"])                    //nolint:errcheck // best-effort parse from trusted Redis data
	attempt, _ := strconv.Atoi(m["attempt"])                        //nolint:errcheck // best-effort parse from trusted Redis data
	hops, _ := strconv.Atoi(m["hops"])                              //nolint:errcheck // best-effort parse from trusted Redis data
	eligibleAt, _ := time.Parse(time.RFC3339Nano, m["eligible_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])   //nolint:errcheck // best-effort parse from trusted Redis data

	return &schedule.Activation{
		Entity: cascade.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:         aID,
		Kind:       cascade.Kind(m["kind"]),
		Job:        m["job"],
		ChainID:    chainID,
		Params:     unmarshalParams(m["params"]),
		Attempt:    attempt,
		Hops:       hops,
		Reason:     schedule.Reason(m["reason"]),
		EligibleAt: eligibleAt,
	}, nil
}
