package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
)

// PutActivation persists an activation, replacing any document with the
// same ID.
func (s *Store) PutActivation(ctx context.Context, act *schedule.Activation) error {
	col := s.db.Collection(colActivations)
	m := toActivationModel(act)

	_, err := col.ReplaceOne(ctx,
		bson.M{"_id": m.ID},
		m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cascade/mongo: put activation: %w", err)
	}
	return nil
}

// GetActivation retrieves an activation by ID.
func (s *Store) GetActivation(ctx context.Context, sid id.ScheduleID) (*schedule.Activation, error) {
	col := s.db.Collection(colActivations)

	var m activationModel
	err := col.FindOne(ctx, bson.M{"_id": sid.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, cascade.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("cascade/mongo: get activation: %w", err)
	}
	return fromActivationModel(&m)
}

// DueActivations returns activations eligible at or before now, oldest
// eligibility first.
func (s *Store) DueActivations(ctx context.Context, now time.Time, limit int) ([]*schedule.Activation, error) {
	filter := bson.M{"eligible_at": bson.M{"$lte": now}}

	findOpts := options.Find().SetSort(bson.D{{Key: "eligible_at", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	return s.findActivations(ctx, filter, findOpts)
}

// ListActivations returns all pending activations, oldest eligibility
// first.
func (s *Store) ListActivations(ctx context.Context) ([]*schedule.Activation, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "eligible_at", Value: 1}})
	return s.findActivations(ctx, bson.M{}, findOpts)
}

// DeleteActivation removes an activation. Deleting a missing document is
// not an error so handoff and expiry can race safely.
func (s *Store) DeleteActivation(ctx context.Context, sid id.ScheduleID) error {
	col := s.db.Collection(colActivations)

	_, err := col.DeleteOne(ctx, bson.M{"_id": sid.String()})
	if err != nil {
		return fmt.Errorf("cascade/mongo: delete activation: %w", err)
	}
	return nil
}

func (s *Store) findActivations(ctx context.Context, filter bson.M, findOpts *options.FindOptionsBuilder) ([]*schedule.Activation, error) {
	col := s.db.Collection(colActivations)

	cursor, err := col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: query activations: %w", err)
	}
	defer cursor.Close(ctx)

	var models []activationModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cascade/mongo: query activations decode: %w", err)
	}

	acts := make([]*schedule.Activation, 0, len(models))
	for i := range models {
		act, convErr := fromActivationModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("cascade/mongo: query activations convert: %w", convErr)
		}
		acts = append(acts, act)
	}
	return acts, nil
}
