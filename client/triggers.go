package client

import (
	"context"
	"net/http"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

// RegisterTrigger registers a recurring chain start. The returned entry
// carries the server-assigned ID and computed next run time.
func (c *Client) RegisterTrigger(ctx context.Context, entry *trigger.Entry) (*trigger.Entry, error) {
	var stored trigger.Entry
	if err := c.do(ctx, http.MethodPost, "/v1/triggers", entry, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListTriggers returns all registered triggers.
func (c *Client) ListTriggers(ctx context.Context) ([]*trigger.Entry, error) {
	var entries []*trigger.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/triggers", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetTrigger retrieves one trigger by ID.
func (c *Client) GetTrigger(ctx context.Context, tid id.TriggerID) (*trigger.Entry, error) {
	var entry trigger.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/triggers/"+tid.String(), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetTriggerEnabled pauses or resumes a trigger. Enabling recomputes the
// next run from now, so missed runs are not backfilled.
func (c *Client) SetTriggerEnabled(ctx context.Context, tid id.TriggerID, enabled bool) (*trigger.Entry, error) {
	req := struct {
		Enabled bool `json:"enabled"`
	}{Enabled: enabled}

	var entry trigger.Entry
	if err := c.do(ctx, http.MethodPatch, "/v1/triggers/"+tid.String(), req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteTrigger removes a trigger by ID.
func (c *Client) DeleteTrigger(ctx context.Context, tid id.TriggerID) error {
	return c.do(ctx, http.MethodDelete, "/v1/triggers/"+tid.String(), nil, nil)
}
