package client

import (
	"context"
	"net/http"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
)

// ListActivations returns every pending activation: delayed handoffs,
// retry backoffs, and deferred starts waiting to fire.
func (c *Client) ListActivations(ctx context.Context) ([]*schedule.Activation, error) {
	var acts []*schedule.Activation
	if err := c.do(ctx, http.MethodGet, "/v1/schedules", nil, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

// GetActivation retrieves one pending activation by ID.
func (c *Client) GetActivation(ctx context.Context, sid id.ScheduleID) (*schedule.Activation, error) {
	var act schedule.Activation
	if err := c.do(ctx, http.MethodGet, "/v1/schedules/"+sid.String(), nil, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

// CancelActivation removes a pending activation. The chain it belonged
// to never resumes.
func (c *Client) CancelActivation(ctx context.Context, sid id.ScheduleID) error {
	return c.do(ctx, http.MethodDelete, "/v1/schedules/"+sid.String(), nil, nil)
}
