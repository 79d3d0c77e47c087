// Package collector drives the per-topic paper search and enrichment,
// producing batches for the reconciler to merge.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vincentqyw/arxiv-daily/internal/arxiv"
	"github.com/vincentqyw/arxiv-daily/internal/github"
	"github.com/vincentqyw/arxiv-daily/internal/pwc"
	"github.com/vincentqyw/arxiv-daily/internal/row"
	"github.com/vincentqyw/arxiv-daily/internal/store"
)

// Searcher finds newly submitted papers for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error)
}

// LinkResolver resolves a paper id to its official repository URL.
type LinkResolver interface {
	ResolveCodeLink(ctx context.Context, paperID string) (string, error)
}

// RepoSearcher finds candidate repositories by free-text query. Used as
// a fallback when no official link is known.
type RepoSearcher interface {
	SearchRepository(ctx context.Context, query string) (string, error)
}

// Summarizer produces an AI summary for a paper id.
type Summarizer interface {
	Summarize(ctx context.Context, paperID string) (string, error)
}

// Collector produces per-topic batches of serialized rows.
type Collector struct {
	search     Searcher
	links      LinkResolver
	repos      RepoSearcher // may be nil
	summarizer Summarizer   // may be nil
	log        *slog.Logger
	maxResults int
	now        func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithRepoSearcher enables the repository-search fallback.
func WithRepoSearcher(r RepoSearcher) Option {
	return func(c *Collector) { c.repos = r }
}

// WithSummarizer enables AI summaries in collected rows.
func WithSummarizer(s Summarizer) Option {
	return func(c *Collector) { c.summarizer = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// WithNow overrides the clock (for testing the publish-date filter).
func WithNow(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a Collector.
func New(search Searcher, links LinkResolver, maxResults int, opts ...Option) *Collector {
	c := &Collector{
		search:     search,
		links:      links,
		log:        slog.Default(),
		maxResults: maxResults,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectTopic searches one topic and returns two same-shaped batches:
// table rows for the readme/website stores and list items for the
// messaging digest store. Only papers published today are kept; results
// arrive newest first, so the first older paper ends the scan.
func (c *Collector) CollectTopic(ctx context.Context, topic, query string) (store.Batch, store.Batch, error) {
	papers, err := c.search.Search(ctx, query, c.maxResults)
	if err != nil {
		return nil, nil, err
	}

	today := c.now().Format("2006-01-02")
	content := make(map[string]string)
	contentWeb := make(map[string]string)

	for _, p := range papers {
		published := p.Published.Format("2006-01-02")
		c.log.Info("found paper", "published", published, "title", p.Title, "author", p.FirstAuthor)

		if published != today {
			break
		}

		key := row.StripVersion(p.ID)
		rec := row.Record{
			Date:   published,
			Title:  p.Title,
			Author: p.FirstAuthor,
			ID:     key,
			AbsURL: arxiv.AbsURL + key,
		}

		rec.Summary = c.summarize(ctx, key)
		rec.RepoURL = c.resolveLink(ctx, key, p.Title)

		content[key] = row.Encode(rec)
		contentWeb[key] = row.EncodeListItem(rec)
	}

	return store.Batch{topic: content}, store.Batch{topic: contentWeb}, nil
}

// summarize returns the AI summary for a paper, or empty when
// summarization is disabled or fails. Failures never abort the batch.
func (c *Collector) summarize(ctx context.Context, paperID string) string {
	if c.summarizer == nil {
		return ""
	}
	summary, err := c.summarizer.Summarize(ctx, paperID)
	if err != nil {
		c.log.Warn("summarization failed", "id", paperID, "error", err)
		return ""
	}
	return summary
}

// resolveLink looks up the official code link, falling back to a
// repository search by title and then by id. Failures never abort the
// batch; the row is stored with the null sentinel and backfilled later
// by update mode.
func (c *Collector) resolveLink(ctx context.Context, paperID, title string) string {
	url, err := c.links.ResolveCodeLink(ctx, paperID)
	if err == nil {
		return url
	}
	if !errors.Is(err, pwc.ErrNotFound) {
		c.log.Warn("code link lookup failed", "id", paperID, "error", err)
		return ""
	}

	if c.repos == nil {
		return ""
	}
	for _, query := range []string{title, paperID} {
		url, err := c.repos.SearchRepository(ctx, query)
		if err == nil {
			return url
		}
		if !errors.Is(err, github.ErrNoResults) {
			c.log.Warn("repository search failed", "id", paperID, "query", query, "error", err)
			return ""
		}
	}
	return ""
}
