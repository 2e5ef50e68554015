package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/banshee-data/veto.report/internal/db"
	"github.com/banshee-data/veto.report/internal/httputil"
	"github.com/banshee-data/veto.report/internal/veto"
)

// Client reads run history from a remote `veto serve`.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: c}
}

// ListRuns fetches up to limit runs, newest first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*db.RunSummary, error) {
	u := c.base + "/runs"
	if limit > 0 {
		u += fmt.Sprintf("?limit=%d", limit)
	}
	var out []*db.RunSummary
	if err := httputil.GetJSON(ctx, c.http, u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun fetches a run with its skipped channels.
func (c *Client) GetRun(ctx context.Context, runID string) (*RunDetail, error) {
	var out RunDetail
	if err := httputil.GetJSON(ctx, c.http, c.base+"/runs/"+url.PathEscape(runID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rounds fetches the round records of a run.
func (c *Client) Rounds(ctx context.Context, runID string) ([]veto.RoundRecord, error) {
	var out []veto.RoundRecord
	if err := httputil.GetJSON(ctx, c.http, c.base+"/runs/"+url.PathEscape(runID)+"/rounds", &out); err != nil {
		return nil, err
	}
	return out, nil
}
