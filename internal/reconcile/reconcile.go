// Package reconcile merges freshly collected batches into persisted
// stores and backfills missing code links on later passes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vincentqyw/arxiv-daily/internal/pwc"
	"github.com/vincentqyw/arxiv-daily/internal/row"
	"github.com/vincentqyw/arxiv-daily/internal/store"
)

// LinkResolver resolves a paper id to its official repository URL.
type LinkResolver interface {
	ResolveCodeLink(ctx context.Context, paperID string) (string, error)
}

// Reconciler owns the read-merge-write cycle for one store file at a time.
type Reconciler struct {
	links LinkResolver
	log   *slog.Logger
}

// New creates a Reconciler. The resolver is only used in update mode and
// may be nil when running collect mode.
func New(links LinkResolver, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{links: links, log: log}
}

// Collect merges collected batches into the store at path and writes it
// back. No link backfill happens in this mode.
func (r *Reconciler) Collect(path string, batches []store.Batch) error {
	st, err := store.Load(path)
	if err != nil {
		return err
	}
	st.MergeBatches(batches)
	return st.Save(path)
}

// UpdateLinks re-resolves missing code links for rows stored at path.
// Every visited row is re-encoded through the codec, normalizing paper
// ids; rows already holding a link are otherwise left untouched. A
// lookup failure for one row logs a warning and moves on; a row that no
// longer parses is fatal for the whole pass.
func (r *Reconciler) UpdateLinks(ctx context.Context, path string) error {
	st, err := store.Load(path)
	if err != nil {
		return err
	}

	for _, topic := range st.Topics() {
		r.log.Info("updating links", "topic", topic)
		for id, raw := range st.Papers(topic) {
			fields, err := row.Parse(raw)
			if err != nil {
				return fmt.Errorf("topic %q, paper %s: %w", topic, id, err)
			}
			normalized := row.Format(fields)
			st.SetRow(topic, id, normalized)

			if row.HasCodeLink(normalized) {
				continue
			}

			url, err := r.links.ResolveCodeLink(ctx, id)
			if errors.Is(err, pwc.ErrNotFound) {
				continue
			}
			if err != nil {
				r.log.Warn("code link update failed", "id", id, "error", err)
				continue
			}

			updated := strings.Replace(normalized, "|"+row.NullCell+"|", fmt.Sprintf("|**[link](%s)**|", url), 1)
			st.SetRow(topic, id, updated)
			r.log.Info("filled code link", "id", id, "url", url)
		}
	}

	return st.Save(path)
}
