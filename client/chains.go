package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/xraph/cascade"
)

// startChainRequest is the JSON body for a chain start.
type startChainRequest struct {
	Params cascade.Params `json:"params,omitempty"`
}

// StartChain launches a new chain at the named job and returns the first
// link's attempt.
func (c *Client) StartChain(ctx context.Context, kind cascade.Kind, job string, params cascade.Params) (*cascade.Attempt, error) {
	var att cascade.Attempt
	path := "/v1/chains/" + string(kind) + "/" + url.PathEscape(job) + "/start"
	if err := c.do(ctx, http.MethodPost, path, startChainRequest{Params: params}, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Stats is the server's runtime counters snapshot.
type Stats struct {
	BatchInFlight     int             `json:"batch_in_flight"`
	QueueableInFlight int             `json:"queueable_in_flight"`
	BatchChainables   []string        `json:"batch_chainables"`
	QueueChainables   []string        `json:"queueable_chainables"`
	Broker            json.RawMessage `json:"broker"`
}

// Stats retrieves in-flight counts, registered chainables, and broker
// throughput from the server.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
