// Package store persists the two-level topic -> paper-id -> row mapping
// as a JSON document.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Batch is one collected batch, topic -> paper id -> serialized row.
type Batch map[string]map[string]string

// Store is the keyed record store for one output. The outer topic order
// is preserved from the source document (or merge order for new topics)
// so rendered sections stay stable across runs.
type Store struct {
	topics map[string]map[string]string
	order  []string
}

// CorruptError reports a store file whose content is present but not
// valid JSON. It is fatal for that store's update phase: silently
// replacing corrupt history with an empty store would lose data.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// New returns an empty store.
func New() *Store {
	return &Store{topics: make(map[string]map[string]string)}
}

// Load reads a store from a JSON file. A missing or empty file yields an
// empty store; content that fails to parse yields a *CorruptError.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	st := New()
	if err := json.Unmarshal(data, &st.topics); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	order, err := topicOrder(data)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	st.order = order

	return st, nil
}

// topicOrder extracts top-level keys in document order. json.Unmarshal
// into a map loses it.
func topicOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token() // opening brace
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		order = append(order, key)

		// Skip the topic's value.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Save writes the full store as a JSON document, replacing the file.
// The document is written to a temporary file and renamed into place so a
// crash mid-write cannot leave a truncated store behind. Non-ASCII text
// is preserved literally.
func (s *Store) Save(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.topics); err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing store file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

// MergeBatches merges collected batches into the store. Existing topics
// are updated key by key, last writer wins; new topics are inserted
// wholesale at the end of the topic order. This is the sole place new
// data enters the store.
func (s *Store) MergeBatches(batches []Batch) {
	for _, batch := range batches {
		for topic, papers := range batch {
			existing, ok := s.topics[topic]
			if !ok {
				existing = make(map[string]string, len(papers))
				s.topics[topic] = existing
				s.order = append(s.order, topic)
			}
			for id, r := range papers {
				existing[id] = r
			}
		}
	}
}

// Topics returns topic names in store order.
func (s *Store) Topics() []string {
	return s.order
}

// Papers returns the paper-id -> row mapping for a topic.
func (s *Store) Papers(topic string) map[string]string {
	return s.topics[topic]
}

// Row returns the serialized row for (topic, paper id).
func (s *Store) Row(topic, id string) (string, bool) {
	r, ok := s.topics[topic][id]
	return r, ok
}

// HasPaper reports whether the store holds a row for (topic, paper id).
func (s *Store) HasPaper(topic, id string) bool {
	_, ok := s.topics[topic][id]
	return ok
}

// SetRow overwrites the row stored for (topic, paper id). The topic must
// already exist.
func (s *Store) SetRow(topic, id, r string) {
	if papers, ok := s.topics[topic]; ok {
		papers[id] = r
	}
}

// Len returns the total number of stored rows across all topics.
func (s *Store) Len() int {
	n := 0
	for _, papers := range s.topics {
		n += len(papers)
	}
	return n
}
