// Package arxiv provides a client for the arXiv Atom search API.
package arxiv

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/vincentqyw/arxiv-daily/internal/fetch"
)

const (
	// BaseURL is the arXiv query API endpoint.
	BaseURL = "http://export.arxiv.org/api/query"

	// AbsURL is the base for canonical abstract page links.
	AbsURL = "http://arxiv.org/abs/"

	// RateLimit honors arXiv's request of no more than one query every
	// three seconds.
	RateLimit = 1.0 / 3.0
)

// Paper is one search result entry.
type Paper struct {
	ID          string // short id including version, e.g. "2508.17739v1"
	Title       string
	FirstAuthor string
	Authors     []string
	Published   time.Time
	AbsURL      string
	Category    string // primary category, e.g. "cs.CV"
	Comment     string
}

// Client queries the arXiv search API.
type Client struct {
	fetch   *fetch.Client
	limiter *rate.Limiter
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit overrides the request rate (for testing).
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// NewClient creates an arXiv search client on top of the shared fetcher.
func NewClient(f *fetch.Client, opts ...Option) *Client {
	c := &Client{
		fetch:   f,
		limiter: rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL: BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns up to maxResults papers matching the query, newest
// submissions first.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	body, err := c.fetch.GetBody(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("querying arxiv: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing arxiv feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		p, ok := mapItem(item)
		if !ok {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// mapItem converts a feed entry to a Paper. Entries without an id or
// publish date are dropped.
func mapItem(item *gofeed.Item) (Paper, bool) {
	id := shortID(item)
	if id == "" || item.PublishedParsed == nil {
		return Paper{}, false
	}

	p := Paper{
		ID:        id,
		Title:     collapseWhitespace(item.Title),
		Published: *item.PublishedParsed,
		AbsURL:    item.Link,
		Category:  extensionAttr(item, "primary_category", "term"),
		Comment:   extensionValue(item, "comment"),
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			p.Authors = append(p.Authors, a.Name)
		}
	}
	if len(p.Authors) > 0 {
		p.FirstAuthor = p.Authors[0]
	}
	return p, p.FirstAuthor != ""
}

// shortID extracts the short paper id from the entry id URL,
// e.g. "http://arxiv.org/abs/2508.17739v1" -> "2508.17739v1".
func shortID(item *gofeed.Item) string {
	raw := item.GUID
	if raw == "" {
		raw = item.Link
	}
	if idx := strings.LastIndex(raw, "/abs/"); idx != -1 {
		return raw[idx+len("/abs/"):]
	}
	return ""
}

// extensionAttr reads an attribute from the arxiv Atom extension namespace.
func extensionAttr(item *gofeed.Item, name, attr string) string {
	for _, exts := range item.Extensions {
		for _, ext := range exts[name] {
			if v := strings.TrimSpace(ext.Attrs[attr]); v != "" {
				return v
			}
		}
	}
	return ""
}

// extensionValue reads a value from the arxiv Atom extension namespace.
func extensionValue(item *gofeed.Item, name string) string {
	for _, exts := range item.Extensions {
		for _, ext := range exts[name] {
			if v := strings.TrimSpace(ext.Value); v != "" {
				return v
			}
		}
	}
	return ""
}

// collapseWhitespace normalizes the newlines and indentation arXiv
// inserts into long titles.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
