package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vincentqyw/arxiv-daily/internal/pwc"
	"github.com/vincentqyw/arxiv-daily/internal/store"
)

type fakeResolver struct {
	links map[string]string
	err   error
	calls []string
}

func (f *fakeResolver) ResolveCodeLink(ctx context.Context, paperID string) (string, error) {
	f.calls = append(f.calls, paperID)
	if f.err != nil {
		return "", f.err
	}
	if url, ok := f.links[paperID]; ok {
		return url, nil
	}
	return "", pwc.ErrNotFound
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	r := New(nil, quiet())
	batch := store.Batch{"slam": {"2508.00001": "|2025-08-25|**T**|A et.al.|[2508.00001](http://arxiv.org/abs/2508.00001)|null|\n"}}
	if err := r.Collect(path, []store.Batch{batch}); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	st, err := store.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Row("slam", "2508.00001"); !ok {
		t.Error("merged row missing from saved store")
	}
}

func TestCollectMergesIntoExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	seed := `{"slam": {"2508.00001": "old-row"}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(nil, quiet())
	batch := store.Batch{"slam": {"2508.00002": "new-row"}}
	if err := r.Collect(path, []store.Batch{batch}); err != nil {
		t.Fatal(err)
	}

	st, _ := store.Load(path)
	if _, ok := st.Row("slam", "2508.00001"); !ok {
		t.Error("existing row lost during merge")
	}
	if _, ok := st.Row("slam", "2508.00002"); !ok {
		t.Error("new row missing after merge")
	}
}

func TestCollectCorruptStoreIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(nil, quiet())
	err := r.Collect(path, nil)
	var ce *store.CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("Collect() error = %v, want *store.CorruptError", err)
	}
}

func TestUpdateLinksFillsNullRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	seed := `{"slam": {
		"2508.00001": "|2025-08-25|**A**|Alice et.al.|[2508.00001](http://arxiv.org/abs/2508.00001)|null|\n",
		"2508.00002": "|2025-08-25|**B**|Bob et.al.|[2508.00002](http://arxiv.org/abs/2508.00002)|**[link](https://github.com/bob/b)**|\n"
	}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	resolver := &fakeResolver{links: map[string]string{
		"2508.00001": "https://github.com/alice/a",
	}}
	r := New(resolver, quiet())
	if err := r.UpdateLinks(context.Background(), path); err != nil {
		t.Fatalf("UpdateLinks() error = %v", err)
	}

	st, _ := store.Load(path)

	filled, _ := st.Row("slam", "2508.00001")
	if !strings.Contains(filled, "|**[link](https://github.com/alice/a)**|") {
		t.Errorf("row = %q, want filled link", filled)
	}
	if strings.Contains(filled, "|null|") {
		t.Errorf("row = %q, null sentinel should be gone", filled)
	}

	// Rows already holding a link are never looked up or rewritten.
	kept, _ := st.Row("slam", "2508.00002")
	if !strings.Contains(kept, "https://github.com/bob/b") {
		t.Errorf("row = %q, existing link must survive", kept)
	}
	for _, id := range resolver.calls {
		if id == "2508.00002" {
			t.Error("resolver called for a row that already has a link")
		}
	}
}

func TestUpdateLinksNormalizesVersionSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	seed := `{"slam": {"2508.00001": "|2025-08-25|**A**|Alice et.al.|[2508.00001v2](http://arxiv.org/abs/2508.00001v2)|null|\n"}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(&fakeResolver{}, quiet())
	if err := r.UpdateLinks(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	st, _ := store.Load(path)
	got, _ := st.Row("slam", "2508.00001")
	if strings.Contains(got, "v2") {
		t.Errorf("row = %q, version suffix should be normalized away", got)
	}
}

func TestUpdateLinksLookupFailureContinues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	seed := `{"slam": {
		"2508.00001": "|2025-08-25|**A**|Alice et.al.|[2508.00001](http://arxiv.org/abs/2508.00001)|null|\n",
		"2508.00002": "|2025-08-25|**B**|Bob et.al.|[2508.00002](http://arxiv.org/abs/2508.00002)|null|\n"
	}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	resolver := &fakeResolver{err: errors.New("service unavailable")}
	r := New(resolver, quiet())
	if err := r.UpdateLinks(context.Background(), path); err != nil {
		t.Fatalf("UpdateLinks() error = %v, per-row failures must not abort", err)
	}
	if len(resolver.calls) != 2 {
		t.Errorf("resolver saw %d calls, want 2 (processing continues past failures)", len(resolver.calls))
	}

	st, _ := store.Load(path)
	for _, id := range []string{"2508.00001", "2508.00002"} {
		got, _ := st.Row("slam", id)
		if !strings.Contains(got, "|null|") {
			t.Errorf("row %s = %q, want unchanged null sentinel", id, got)
		}
	}
}

func TestUpdateLinksMalformedRowIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	seed := `{"slam": {"2508.00001": "not a row at all"}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(&fakeResolver{}, quiet())
	err := r.UpdateLinks(context.Background(), path)
	if err == nil {
		t.Fatal("UpdateLinks() expected error for malformed row")
	}
	if !strings.Contains(err.Error(), "slam") || !strings.Contains(err.Error(), "2508.00001") {
		t.Errorf("error = %v, want topic and paper id context", err)
	}
}
