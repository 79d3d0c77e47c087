// Package row serializes paper records to the pipe-delimited table row
// format used in the persisted stores, and parses rows back.
//
// A serialized row is a single line of the form
//
//	|date|title_cell|author_cell|[id](url)|code_cell|
//
// terminated by a newline. The title cell is the bolded title, optionally
// followed by "<br><br>" and an AI summary. The code cell is either
// "**[link](repo_url)**" or the literal sentinel "null" when no repository
// link is known. Fields are positional; title text must not contain a bare
// "|" (caller responsibility upstream).
package row

import (
	"fmt"
	"regexp"
	"strings"
)

// NullCell is the sentinel stored in the code cell when no repository
// link is known yet.
const NullCell = "null"

// versionRe matches an arXiv version suffix like "v2" inside an id cell.
var versionRe = regexp.MustCompile(`v\d+`)

// Record is a paper record before serialization.
type Record struct {
	Date    string // publish date, YYYY-MM-DD
	Title   string // paper title, may contain markdown/LaTeX
	Summary string // optional AI summary, embedded in the title cell
	Author  string // first-author display name, without the "et.al." suffix
	ID      string // version-stripped paper identifier, e.g. "2508.17739"
	AbsURL  string // absolute reference URL
	RepoURL string // optional repository URL; empty means unknown
}

// Fields holds the five logical cells of a parsed row, positionally.
type Fields struct {
	Date   string
	Title  string // full title cell, including any embedded summary
	Author string
	ID     string // "[id](url)" cell, version suffix stripped
	Code   string // "**[link](url)**" or NullCell
}

// ParseError reports a row that does not match the row grammar.
type ParseError struct {
	Row      string
	Segments int // number of "|"-delimited segments found
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed row (%d segments, want at least 6): %q", e.Segments, truncate(e.Row, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Encode serializes a record to one table row.
func Encode(r Record) string {
	title := "**" + r.Title + "**"
	if r.Summary != "" {
		title += "<br><br>" + r.Summary
	}
	code := NullCell
	if r.RepoURL != "" {
		code = fmt.Sprintf("**[link](%s)**", r.RepoURL)
	}
	return fmt.Sprintf("|%s|%s|%s et.al.|[%s](%s)|%s|\n", r.Date, title, r.Author, r.ID, r.AbsURL, code)
}

// EncodeListItem serializes a record as a markdown list item, the format
// used by the messaging-app digest store.
func EncodeListItem(r Record) string {
	s := fmt.Sprintf("- %s, **%s**, %s et.al., Paper: [%s](%s)", r.Date, r.Title, r.Author, r.AbsURL, r.AbsURL)
	if r.RepoURL != "" {
		s += fmt.Sprintf(", Code: **[%s](%s)**", r.RepoURL, r.RepoURL)
	}
	return s + "\n"
}

// Parse splits a serialized row into its five logical fields. Leading and
// trailing empty segments produced by the delimiter pattern are discarded.
// The id cell is normalized by stripping any version suffix.
func Parse(s string) (Fields, error) {
	parts := strings.Split(s, "|")
	if len(parts) < 6 {
		return Fields{}, &ParseError{Row: s, Segments: len(parts)}
	}
	return Fields{
		Date:   strings.TrimSpace(parts[1]),
		Title:  strings.TrimSpace(parts[2]),
		Author: strings.TrimSpace(parts[3]),
		ID:     versionRe.ReplaceAllString(strings.TrimSpace(parts[4]), ""),
		Code:   strings.TrimSpace(parts[5]),
	}, nil
}

// Format reassembles parsed fields into a serialized row.
func Format(f Fields) string {
	return fmt.Sprintf("|%s|%s|%s|%s|%s|\n", f.Date, f.Title, f.Author, f.ID, f.Code)
}

// HasCodeLink reports whether a row already carries a repository link.
// The literal "|null|" substring is the sole indicator a lookup is needed.
func HasCodeLink(s string) bool {
	return !strings.Contains(s, "|"+NullCell+"|")
}

// StripVersion removes an arXiv version suffix from a paper identifier,
// e.g. "2108.09112v1" -> "2108.09112".
func StripVersion(id string) string {
	if pos := strings.Index(id, "v"); pos != -1 {
		return id[:pos]
	}
	return id
}
