package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

// PushDeadLetter adds an aborted link entry.
func (s *Store) PushDeadLetter(ctx context.Context, entry *deadletter.Entry) error {
	col := s.db.Collection(colDeadLetters)

	_, err := col.InsertOne(ctx, toDeadLetterModel(entry))
	if err != nil {
		return fmt.Errorf("cascade/mongo: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves an entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	col := s.db.Collection(colDeadLetters)

	var m deadLetterModel
	err := col.FindOne(ctx, bson.M{"_id": entryID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, cascade.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("cascade/mongo: get dead letter: %w", err)
	}
	return fromDeadLetterModel(&m)
}

// ListDeadLetters returns entries matching the given options, newest
// abort first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	col := s.db.Collection(colDeadLetters)
	filter := bson.M{}

	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "aborted_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: list dead letters: %w", err)
	}
	defer cursor.Close(ctx)

	var models []deadLetterModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cascade/mongo: list dead letters decode: %w", err)
	}

	entries := make([]*deadletter.Entry, 0, len(models))
	for i := range models {
		entry, convErr := fromDeadLetterModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("cascade/mongo: list dead letters convert: %w", convErr)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MarkReplayed sets ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DeadLetterID) error {
	col := s.db.Collection(colDeadLetters)
	t := now()

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": entryID.String()},
		bson.M{"$set": bson.M{"replayed_at": t, "updated_at": t}},
	)
	if err != nil {
		return fmt.Errorf("cascade/mongo: mark replayed: %w", err)
	}
	if res.MatchedCount == 0 {
		return cascade.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes entries aborted strictly before the given
// time and returns the number removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	col := s.db.Collection(colDeadLetters)

	res, err := col.DeleteMany(ctx, bson.M{
		"aborted_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("cascade/mongo: purge dead letters: %w", err)
	}
	return res.DeletedCount, nil
}

// CountDeadLetters returns the total number of entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	col := s.db.Collection(colDeadLetters)

	count, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("cascade/mongo: count dead letters: %w", err)
	}
	return count, nil
}
