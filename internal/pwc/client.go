// Package pwc looks up official code repositories for arXiv papers via
// the PapersWithCode API.
package pwc

import (
	"context"
	"errors"
	"fmt"

	"github.com/vincentqyw/arxiv-daily/internal/fetch"
)

// BaseURL is the keyed paper lookup endpoint.
const BaseURL = "https://arxiv.paperswithcode.com/api/v0/papers/"

// ErrNotFound indicates no official repository is known for the paper.
var ErrNotFound = errors.New("no official repository found")

// Client resolves arXiv paper ids to repository links.
type Client struct {
	fetch   *fetch.Client
	baseURL string
}

// NewClient creates a PapersWithCode client on top of the shared fetcher.
func NewClient(f *fetch.Client) *Client {
	return &Client{fetch: f, baseURL: BaseURL}
}

// NewClientWithBaseURL creates a client against a custom endpoint (for testing).
func NewClientWithBaseURL(f *fetch.Client, baseURL string) *Client {
	return &Client{fetch: f, baseURL: baseURL}
}

// paperResponse is the subset of the lookup response the pipeline needs.
// Only the official repository field is read; the rest is opaque.
type paperResponse struct {
	Official *struct {
		URL string `json:"url"`
	} `json:"official"`
}

// ResolveCodeLink returns the official repository URL for a paper id, or
// ErrNotFound when the service has none.
func (c *Client) ResolveCodeLink(ctx context.Context, paperID string) (string, error) {
	var resp paperResponse
	if err := c.fetch.GetJSON(ctx, c.baseURL+paperID, nil, &resp); err != nil {
		if fetch.IsNotFoundStatus(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("looking up %s: %w", paperID, err)
	}

	if resp.Official == nil || resp.Official.URL == "" {
		return "", ErrNotFound
	}
	return resp.Official.URL, nil
}
