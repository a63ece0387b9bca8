package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// PutLink upserts a link config keyed by (kind, job).
func (s *Store) PutLink(ctx context.Context, cfg *chain.LinkConfig) error {
	col := s.db.Collection(colLinks)
	m := toLinkModel(cfg)

	_, err := col.ReplaceOne(ctx,
		bson.M{"_id": m.ID},
		m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cascade/mongo: put link: %w", err)
	}
	return nil
}

// GetLink retrieves the config for a job identifier.
func (s *Store) GetLink(ctx context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	col := s.db.Collection(colLinks)

	var m linkModel
	err := col.FindOne(ctx, bson.M{"_id": linkDocID(kind, job)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, cascade.ErrConfigNotFound
		}
		return nil, fmt.Errorf("cascade/mongo: get link: %w", err)
	}
	return fromLinkModel(&m), nil
}

// ListLinks returns link configs matching the given options, ordered by
// kind then job.
func (s *Store) ListLinks(ctx context.Context, opts chain.ListOpts) ([]*chain.LinkConfig, error) {
	col := s.db.Collection(colLinks)
	filter := bson.M{}

	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "job", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: list links: %w", err)
	}
	defer cursor.Close(ctx)

	var models []linkModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cascade/mongo: list links decode: %w", err)
	}

	cfgs := make([]*chain.LinkConfig, 0, len(models))
	for i := range models {
		cfgs = append(cfgs, fromLinkModel(&models[i]))
	}
	return cfgs, nil
}

// DeleteLink removes the config for a job identifier.
func (s *Store) DeleteLink(ctx context.Context, kind cascade.Kind, job string) error {
	col := s.db.Collection(colLinks)

	res, err := col.DeleteOne(ctx, bson.M{"_id": linkDocID(kind, job)})
	if err != nil {
		return fmt.Errorf("cascade/mongo: delete link: %w", err)
	}
	if res.DeletedCount == 0 {
		return cascade.ErrConfigNotFound
	}
	return nil
}
