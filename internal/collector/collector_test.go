package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vincentqyw/arxiv-daily/internal/arxiv"
	"github.com/vincentqyw/arxiv-daily/internal/github"
	"github.com/vincentqyw/arxiv-daily/internal/pwc"
)

var testNow = time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

func paper(id, title, author string, published time.Time) arxiv.Paper {
	return arxiv.Paper{
		ID:          id,
		Title:       title,
		FirstAuthor: author,
		Authors:     []string{author},
		Published:   published,
		AbsURL:      "http://arxiv.org/abs/" + id,
	}
}

type fakeSearcher struct {
	papers []arxiv.Paper
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error) {
	return f.papers, f.err
}

type fakeResolver struct {
	links map[string]string
	err   error
}

func (f *fakeResolver) ResolveCodeLink(ctx context.Context, paperID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if url, ok := f.links[paperID]; ok {
		return url, nil
	}
	return "", pwc.ErrNotFound
}

type fakeRepoSearcher struct {
	byQuery map[string]string
	calls   []string
}

func (f *fakeRepoSearcher) SearchRepository(ctx context.Context, query string) (string, error) {
	f.calls = append(f.calls, query)
	if url, ok := f.byQuery[query]; ok {
		return url, nil
	}
	return "", github.ErrNoResults
}

type fakeSummarizer struct {
	summaries map[string]string
	err       error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, paperID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summaries[paperID], nil
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCollectTopic(t *testing.T) {
	search := &fakeSearcher{papers: []arxiv.Paper{
		paper("2508.00002v1", "Dense SLAM Revisited", "Alice", testNow),
		paper("2508.00001v1", "NeRF at Night", "Bob", testNow),
	}}
	links := &fakeResolver{links: map[string]string{
		"2508.00002": "https://github.com/alice/dense-slam",
	}}

	c := New(search, links, 10, quiet(), WithNow(func() time.Time { return testNow }))
	batch, webBatch, err := c.CollectTopic(context.Background(), "SLAM", "SLAM")
	if err != nil {
		t.Fatalf("CollectTopic() error = %v", err)
	}

	papers := batch["SLAM"]
	if len(papers) != 2 {
		t.Fatalf("batch has %d papers, want 2", len(papers))
	}

	linked := papers["2508.00002"]
	if !strings.Contains(linked, "|**[link](https://github.com/alice/dense-slam)**|") {
		t.Errorf("row = %q, want code link cell", linked)
	}
	if !strings.Contains(linked, "[2508.00002](http://arxiv.org/abs/2508.00002)") {
		t.Errorf("row = %q, want version-stripped id and canonical abs URL", linked)
	}

	unlinked := papers["2508.00001"]
	if !strings.Contains(unlinked, "|null|") {
		t.Errorf("row = %q, want null sentinel", unlinked)
	}

	web := webBatch["SLAM"]["2508.00002"]
	if !strings.HasPrefix(web, "- 2025-08-25, **Dense SLAM Revisited**, Alice et.al.") {
		t.Errorf("web row = %q", web)
	}
	if !strings.Contains(web, "Code: **[https://github.com/alice/dense-slam]") {
		t.Errorf("web row = %q, want code link", web)
	}
}

func TestCollectTopicStopsAtOlderPaper(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)
	search := &fakeSearcher{papers: []arxiv.Paper{
		paper("2508.00003v1", "Today Paper", "Alice", testNow),
		paper("2508.00002v1", "Yesterday Paper", "Bob", yesterday),
		paper("2508.00001v1", "Also Today But After Older", "Carol", testNow),
	}}

	c := New(search, &fakeResolver{}, 10, quiet(), WithNow(func() time.Time { return testNow }))
	batch, _, err := c.CollectTopic(context.Background(), "SLAM", "SLAM")
	if err != nil {
		t.Fatal(err)
	}

	papers := batch["SLAM"]
	if len(papers) != 1 {
		t.Fatalf("batch has %d papers, want 1 (scan stops at first non-today paper)", len(papers))
	}
	if _, ok := papers["2508.00003"]; !ok {
		t.Error("today's paper missing from batch")
	}
}

func TestCollectTopicSummaryEmbedded(t *testing.T) {
	search := &fakeSearcher{papers: []arxiv.Paper{
		paper("2508.00001v1", "Dense SLAM", "Alice", testNow),
	}}
	sum := &fakeSummarizer{summaries: map[string]string{
		"2508.00001": "**论文主要内容**：内容 <br><br> **论文结论**：结论",
	}}

	c := New(search, &fakeResolver{}, 10, quiet(),
		WithNow(func() time.Time { return testNow }),
		WithSummarizer(sum))
	batch, webBatch, err := c.CollectTopic(context.Background(), "SLAM", "SLAM")
	if err != nil {
		t.Fatal(err)
	}

	r := batch["SLAM"]["2508.00001"]
	if !strings.Contains(r, "**Dense SLAM**<br><br>**论文主要内容**") {
		t.Errorf("row = %q, want summary embedded in title cell", r)
	}

	// The digest row carries the bare title, never the summary.
	web := webBatch["SLAM"]["2508.00001"]
	if strings.Contains(web, "论文主要内容") {
		t.Errorf("web row = %q, must not embed summary", web)
	}
}

func TestCollectTopicSummaryFailureIsIsolated(t *testing.T) {
	search := &fakeSearcher{papers: []arxiv.Paper{
		paper("2508.00001v1", "Dense SLAM", "Alice", testNow),
	}}
	sum := &fakeSummarizer{err: errors.New("chat API down")}

	c := New(search, &fakeResolver{}, 10, quiet(),
		WithNow(func() time.Time { return testNow }),
		WithSummarizer(sum))
	batch, _, err := c.CollectTopic(context.Background(), "SLAM", "SLAM")
	if err != nil {
		t.Fatalf("CollectTopic() error = %v, per-paper enrichment failures must not abort", err)
	}
	if len(batch["SLAM"]) != 1 {
		t.Fatal("paper missing despite summarizer failure")
	}
	if !strings.Contains(batch["SLAM"]["2508.00001"], "**Dense SLAM**|") {
		t.Errorf("row = %q, want bare title cell", batch["SLAM"]["2508.00001"])
	}
}

func TestCollectTopicRepoSearchFallback(t *testing.T) {
	search := &fakeSearcher{papers: []arxiv.Paper{
		paper("2508.00001v1", "Dense SLAM", "Alice", testNow),
	}}
	repos := &fakeRepoSearcher{byQuery: map[string]string{
		"2508.00001": "https://github.com/found/by-id",
	}}

	c := New(search, &fakeResolver{}, 10, quiet(),
		WithNow(func() time.Time { return testNow }),
		WithRepoSearcher(repos))
	batch, _, err := c.CollectTopic(context.Background(), "SLAM", "SLAM")
	if err != nil {
		t.Fatal(err)
	}

	if want := []string{"Dense SLAM", "2508.00001"}; fmt.Sprint(repos.calls) != fmt.Sprint(want) {
		t.Errorf("fallback queries = %v, want title then id", repos.calls)
	}
	if !strings.Contains(batch["SLAM"]["2508.00001"], "|**[link](https://github.com/found/by-id)**|") {
		t.Errorf("row = %q, want fallback link", batch["SLAM"]["2508.00001"])
	}
}

func TestCollectTopicLookupFailureLeavesNull(t *testing.T) {
	search := &fakeSearcher{papers: []arxiv.Paper{
		paper("2508.00001v1", "Dense SLAM", "Alice", testNow),
	}}
	links := &fakeResolver{err: errors.New("gateway timeout")}

	c := New(search, links, 10, quiet(), WithNow(func() time.Time { return testNow }))
	batch, _, err := c.CollectTopic(context.Background(), "SLAM", "SLAM")
	if err != nil {
		t.Fatalf("CollectTopic() error = %v, lookup failures must not abort", err)
	}
	if !strings.Contains(batch["SLAM"]["2508.00001"], "|null|") {
		t.Errorf("row = %q, want null sentinel after lookup failure", batch["SLAM"]["2508.00001"])
	}
}

func TestCollectTopicSearchError(t *testing.T) {
	search := &fakeSearcher{err: errors.New("arxiv unreachable")}

	c := New(search, &fakeResolver{}, 10, quiet())
	if _, _, err := c.CollectTopic(context.Background(), "SLAM", "SLAM"); err == nil {
		t.Fatal("CollectTopic() expected error when search fails")
	}
}
