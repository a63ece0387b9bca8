package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// PutLink creates or replaces a link config, keyed by (kind, job). The
// returned config carries server-applied defaults and timestamps.
func (c *Client) PutLink(ctx context.Context, cfg *chain.LinkConfig) (*chain.LinkConfig, error) {
	var stored chain.LinkConfig
	if err := c.do(ctx, http.MethodPut, "/v1/links", cfg, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetLink retrieves the link config for (kind, job).
func (c *Client) GetLink(ctx context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	var cfg chain.LinkConfig
	if err := c.do(ctx, http.MethodGet, "/v1/links/"+string(kind)+"/"+url.PathEscape(job), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListLinks returns link configs matching opts.
func (c *Client) ListLinks(ctx context.Context, opts chain.ListOpts) ([]*chain.LinkConfig, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}
	if opts.ActiveOnly {
		q.Set("active", "true")
	}
	path := "/v1/links"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var links []*chain.LinkConfig
	if err := c.do(ctx, http.MethodGet, path, nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// DeleteLink removes the link config for (kind, job). Chains already in
// flight observe the removal at their next boundary.
func (c *Client) DeleteLink(ctx context.Context, kind cascade.Kind, job string) error {
	return c.do(ctx, http.MethodDelete, "/v1/links/"+string(kind)+"/"+url.PathEscape(job), nil, nil)
}
