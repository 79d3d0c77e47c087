// Package cache persists generated paper summaries in a local SQLite
// database so a paper is summarized at most once across runs.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache wraps the summary database.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path, creating
// parent directories as needed.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS summaries (
			paper_id   TEXT PRIMARY KEY,
			summary    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached summary for a paper id, if present.
func (c *Cache) Get(paperID string) (string, bool, error) {
	var summary string
	err := c.db.QueryRow(`SELECT summary FROM summaries WHERE paper_id = ?`, paperID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cached summary for %s: %w", paperID, err)
	}
	return summary, true, nil
}

// Put stores a summary for a paper id, replacing any previous entry.
func (c *Cache) Put(paperID, summary string) error {
	_, err := c.db.Exec(
		`INSERT INTO summaries (paper_id, summary, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(paper_id) DO UPDATE SET summary = excluded.summary, created_at = excluded.created_at`,
		paperID, summary, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("caching summary for %s: %w", paperID, err)
	}
	return nil
}
