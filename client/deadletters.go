package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

// ListDeadLetters returns dead-letter entries matching opts, newest
// abort first.
func (c *Client) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/v1/deadletters"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var entries []*deadletter.Entry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountDeadLetters returns the total number of dead-letter entries.
func (c *Client) CountDeadLetters(ctx context.Context) (int64, error) {
	var body struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/deadletters/count", nil, &body); err != nil {
		return 0, err
	}
	return body.Count, nil
}

// GetDeadLetter retrieves one entry by ID.
func (c *Client) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	var entry deadletter.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/deadletters/"+entryID.String(), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReplayDeadLetter starts a fresh chain from the entry's job and
// parameters and returns the new chain's ID.
func (c *Client) ReplayDeadLetter(ctx context.Context, entryID id.DeadLetterID) (id.ChainID, error) {
	var body struct {
		ChainID string `json:"chain_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/deadletters/"+entryID.String()+"/replay", nil, &body); err != nil {
		return id.Nil, err
	}
	return id.ParseChainID(body.ChainID)
}

// PurgeDeadLetters removes entries aborted longer ago than olderThan and
// reports how many were removed.
func (c *Client) PurgeDeadLetters(ctx context.Context, olderThan time.Duration) (int64, error) {
	req := struct {
		OlderThan string `json:"older_than"`
	}{OlderThan: olderThan.String()}

	var body struct {
		Purged int64 `json:"purged"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/deadletters/purge", req, &body); err != nil {
		return 0, err
	}
	return body.Purged, nil
}
