package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vincentqyw/arxiv-daily/internal/arxiv"
	"github.com/vincentqyw/arxiv-daily/internal/cache"
	"github.com/vincentqyw/arxiv-daily/internal/collector"
	"github.com/vincentqyw/arxiv-daily/internal/config"
	"github.com/vincentqyw/arxiv-daily/internal/fetch"
	"github.com/vincentqyw/arxiv-daily/internal/github"
	"github.com/vincentqyw/arxiv-daily/internal/pwc"
	"github.com/vincentqyw/arxiv-daily/internal/reconcile"
	"github.com/vincentqyw/arxiv-daily/internal/render"
	"github.com/vincentqyw/arxiv-daily/internal/store"
	"github.com/vincentqyw/arxiv-daily/internal/summarize"
)

func runPipeline(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitConfigError)
	}

	if err := run(cmd.Context(), cfg, updateLinks, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
	return nil
}

func exitCode(err error) int {
	var ce *store.CorruptError
	if errors.As(err, &ce) {
		return ExitStoreError
	}
	return ExitError
}

// output binds one enabled store/markdown pair to its batches and layout.
type output struct {
	name    string
	cfg     config.Output
	batches []store.Batch
	opts    render.Options
}

// run executes one full pipeline pass. Per-topic collection failures are
// logged and skipped; store-level and file I/O failures are fatal.
func run(ctx context.Context, cfg *config.Config, updateLinks bool, log *slog.Logger) error {
	fetcher := fetch.NewClient(fetch.WithLogger(log))
	links := pwc.NewClient(fetcher)
	reconciler := reconcile.New(links, log)

	log.Info("update paper links", "enabled", updateLinks)

	var batches, webBatches []store.Batch
	if !updateLinks {
		coll, closeCache := buildCollector(cfg, fetcher, links, log)
		if closeCache != nil {
			defer closeCache()
		}

		log.Info("collecting daily papers")
		for _, topic := range cfg.Topics {
			log.Info("collecting topic", "topic", topic.Name, "query", topic.Query())
			batch, webBatch, err := coll.CollectTopic(ctx, topic.Name, topic.Query())
			if err != nil {
				log.Warn("topic collection failed", "topic", topic.Name, "error", err)
				continue
			}
			batches = append(batches, batch)
			webBatches = append(webBatches, webBatch)
		}
		log.Info("collection finished")
	}

	outputs := []output{
		{
			name:    "readme",
			cfg:     cfg.Readme,
			batches: batches,
			opts:    render.Options{UseTitle: true, UseTOC: true, BackToTop: true, ShowBadge: cfg.ShowBadge},
		},
		{
			name:    "gitpage",
			cfg:     cfg.Gitpage,
			batches: batches,
			opts:    render.Options{ToWeb: true, UseTitle: true, ShowBadge: cfg.ShowBadge},
		},
		{
			name:    "wechat",
			cfg:     cfg.Wechat,
			batches: webBatches,
			opts:    render.Options{UseTOC: true, BackToTop: true, ShowBadge: cfg.ShowBadge},
		},
	}

	for _, o := range outputs {
		if !o.cfg.Enabled {
			continue
		}
		if err := updateOutput(ctx, reconciler, cfg, o, updateLinks); err != nil {
			return fmt.Errorf("updating %s: %w", o.name, err)
		}
		log.Info("output updated", "name", o.name, "store", o.cfg.JSONPath, "markdown", o.cfg.MDPath)
	}

	return nil
}

// buildCollector wires the collector with the repository-search fallback
// and, when an API key is configured, the summarizer and its cache.
// The returned func closes the summary cache; it may be nil.
func buildCollector(cfg *config.Config, fetcher *fetch.Client, links *pwc.Client, log *slog.Logger) (*collector.Collector, func()) {
	searcher := arxiv.NewClient(fetcher)
	opts := []collector.Option{
		collector.WithLogger(log),
		collector.WithRepoSearcher(github.NewClient(fetcher)),
	}

	var closeCache func()
	chat := summarize.NewChatClient(os.Getenv("DASHSCOPE_API_KEY"), cfg.ChatModel, cfg.ChatURL)
	if chat == nil {
		log.Info("DASHSCOPE_API_KEY not set; skipping summarization")
	} else {
		sumCache, err := cache.Open(cfg.CachePath)
		if err != nil {
			log.Warn("summary cache unavailable", "path", cfg.CachePath, "error", err)
			sumCache = nil
		} else {
			closeCache = func() { sumCache.Close() }
		}
		summarizer := summarize.New(fetcher, chat, sumCache, cfg.PapersDir, summarize.WithLogger(log))
		opts = append(opts, collector.WithSummarizer(summarizer))
	}

	return collector.New(searcher, links, cfg.MaxResults, opts...), closeCache
}

// updateOutput runs one store's phase: merge or backfill, then render.
func updateOutput(ctx context.Context, reconciler *reconcile.Reconciler, cfg *config.Config, o output, updateLinks bool) error {
	for _, path := range []string{o.cfg.JSONPath, o.cfg.MDPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}
	}

	if updateLinks {
		if err := reconciler.UpdateLinks(ctx, o.cfg.JSONPath); err != nil {
			return err
		}
	} else {
		if err := reconciler.Collect(o.cfg.JSONPath, o.batches); err != nil {
			return err
		}
	}

	st, err := store.Load(o.cfg.JSONPath)
	if err != nil {
		return err
	}

	opts := o.opts
	opts.UserName = cfg.UserName
	opts.RepoName = cfg.RepoName
	return render.WriteFile(o.cfg.MDPath, st, opts)
}
