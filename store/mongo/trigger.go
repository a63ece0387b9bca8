package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

// RegisterTrigger persists a new entry. The unique name index enforces
// one trigger per name.
func (s *Store) RegisterTrigger(ctx context.Context, entry *trigger.Entry) error {
	col := s.db.Collection(colTriggers)

	_, err := col.InsertOne(ctx, toTriggerModel(entry))
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateTrigger
		}
		return fmt.Errorf("cascade/mongo: register trigger: %w", err)
	}
	return nil
}

// GetTrigger retrieves an entry by ID.
func (s *Store) GetTrigger(ctx context.Context, tid id.TriggerID) (*trigger.Entry, error) {
	col := s.db.Collection(colTriggers)

	var m triggerModel
	err := col.FindOne(ctx, bson.M{"_id": tid.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, cascade.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("cascade/mongo: get trigger: %w", err)
	}
	return fromTriggerModel(&m)
}

// ListTriggers returns all entries ordered by name.
func (s *Store) ListTriggers(ctx context.Context) ([]*trigger.Entry, error) {
	col := s.db.Collection(colTriggers)

	findOpts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := col.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: list triggers: %w", err)
	}
	defer cursor.Close(ctx)

	var models []triggerModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cascade/mongo: list triggers decode: %w", err)
	}

	entries := make([]*trigger.Entry, 0, len(models))
	for i := range models {
		entry, convErr := fromTriggerModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("cascade/mongo: list triggers convert: %w", convErr)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// UpdateTrigger replaces an entry's document.
func (s *Store) UpdateTrigger(ctx context.Context, entry *trigger.Entry) error {
	col := s.db.Collection(colTriggers)
	m := toTriggerModel(entry)

	res, err := col.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("cascade/mongo: update trigger: %w", err)
	}
	if res.MatchedCount == 0 {
		return cascade.ErrTriggerNotFound
	}
	return nil
}

// DeleteTrigger removes an entry by ID.
func (s *Store) DeleteTrigger(ctx context.Context, tid id.TriggerID) error {
	col := s.db.Collection(colTriggers)

	res, err := col.DeleteOne(ctx, bson.M{"_id": tid.String()})
	if err != nil {
		return fmt.Errorf("cascade/mongo: delete trigger: %w", err)
	}
	if res.DeletedCount == 0 {
		return cascade.ErrTriggerNotFound
	}
	return nil
}
