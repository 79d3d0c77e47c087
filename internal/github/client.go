// Package github provides a client for the GitHub repository search API,
// used as a fallback when no official code link is known for a paper.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/vincentqyw/arxiv-daily/internal/fetch"
)

// SearchURL is the repository search endpoint.
const SearchURL = "https://api.github.com/search/repositories"

// ErrNoResults indicates the search matched no repositories.
var ErrNoResults = errors.New("no matching repositories")

// Client searches GitHub for repositories.
type Client struct {
	fetch     *fetch.Client
	searchURL string
	token     string
}

// NewClient creates a GitHub search client on top of the shared fetcher.
// It reads GITHUB_TOKEN from the environment for authenticated requests.
func NewClient(f *fetch.Client) *Client {
	return &Client{
		fetch:     f,
		searchURL: SearchURL,
		token:     os.Getenv("GITHUB_TOKEN"),
	}
}

// NewClientWithSearchURL creates a client against a custom endpoint (for testing).
func NewClientWithSearchURL(f *fetch.Client, searchURL string) *Client {
	return &Client{fetch: f, searchURL: searchURL}
}

// searchResponse is the subset of the search response the pipeline needs.
type searchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		HTMLURL string `json:"html_url"`
	} `json:"items"`
}

// SearchRepository returns the most-starred repository matching the query
// (an arXiv id or a paper title), or ErrNoResults.
func (c *Client) SearchRepository(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "stars")
	params.Set("order", "desc")

	header := http.Header{}
	header.Set("Accept", "application/vnd.github.v3+json")
	header.Set("User-Agent", "arxiv-daily")
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	var resp searchResponse
	if err := c.fetch.GetJSON(ctx, c.searchURL+"?"+params.Encode(), header, &resp); err != nil {
		return "", fmt.Errorf("searching repositories: %w", err)
	}

	if resp.TotalCount == 0 || len(resp.Items) == 0 {
		return "", ErrNoResults
	}
	return resp.Items[0].HTMLURL, nil
}
