// Package render turns a record store into a markdown report document.
package render

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vincentqyw/arxiv-daily/internal/store"
)

// Options selects the layout of one rendered document.
type Options struct {
	ToWeb     bool // emit website front matter and spaced table headers
	UseTitle  bool // heading-style date line and per-topic table headers
	UseTOC    bool // emit the table of contents
	ShowBadge bool // emit the shields badge block and its link footer
	BackToTop bool // emit per-topic back-to-top links

	UserName string // GitHub user for badge links
	RepoName string // GitHub repo for badge links

	Now time.Time // document date; zero means time.Now()
}

// Defaults for badge links when the config leaves them unset.
const (
	DefaultUserName = "Vincentqyw"
	DefaultRepoName = "cv-arxiv-daily"
)

// mathRe matches the first inline math span on a row.
var mathRe = regexp.MustCompile(`\$[^$]*\$`)

// Render produces the full markdown document for a store. Output is
// deterministic: topics follow store order, rows within a topic sort by
// paper id descending (which approximates reverse chronological order
// for arXiv ids).
func Render(st *store.Store, opts Options) []byte {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	date := now.Format("2006.01.02")

	var b strings.Builder

	if opts.UseTitle && opts.ToWeb {
		b.WriteString("---\nlayout: default\n---\n\n")
	}

	if opts.ShowBadge {
		b.WriteString("[![Contributors][contributors-shield]][contributors-url]\n")
		b.WriteString("[![Forks][forks-shield]][forks-url]\n")
		b.WriteString("[![Stargazers][stars-shield]][stars-url]\n")
		b.WriteString("[![Issues][issues-shield]][issues-url]\n\n")
	}

	if opts.UseTitle {
		b.WriteString("## Updated on " + date + "\n")
	} else {
		b.WriteString("> Updated on " + date + "\n")
	}
	b.WriteString("> Usage instructions: [here](./docs/README.md#usage)\n\n")

	if opts.UseTOC {
		writeTOC(&b, st)
	}

	for _, topic := range st.Topics() {
		papers := st.Papers(topic)
		if len(papers) == 0 {
			continue
		}

		b.WriteString("## " + topic + "\n\n")

		if opts.UseTitle {
			if opts.ToWeb {
				b.WriteString("| Publish Date | Title | Authors | PDF | Code |\n")
				b.WriteString("|:---------|:-----------------------|:---------|:------|:------|\n")
			} else {
				b.WriteString("|Publish Date|Title|Authors|PDF|Code|\n|---|---|---|---|---|\n")
			}
		}

		for _, id := range sortedIDsDescending(papers) {
			b.WriteString(prettyMath(papers[id]))
		}
		b.WriteString("\n")

		if opts.BackToTop {
			anchor := dateAnchor(date)
			fmt.Fprintf(&b, "<p align=right>(<a href=%s>back to top</a>)</p>\n\n", anchor)
		}
	}

	if opts.ShowBadge {
		writeBadgeFooter(&b, opts)
	}

	return []byte(b.String())
}

// WriteFile renders the store and overwrites the markdown file in full.
func WriteFile(path string, st *store.Store, opts Options) error {
	if err := os.WriteFile(path, Render(st, opts), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeTOC(b *strings.Builder, st *store.Store) {
	b.WriteString("<details>\n")
	b.WriteString("  <summary>Table of Contents</summary>\n")
	b.WriteString("  <ol>\n")
	for _, topic := range st.Topics() {
		if len(st.Papers(topic)) == 0 {
			continue
		}
		fmt.Fprintf(b, "    <li><a href=#%s>%s</a></li>\n", topicAnchor(topic), topic)
	}
	b.WriteString("  </ol>\n")
	b.WriteString("</details>\n\n")
}

func writeBadgeFooter(b *strings.Builder, opts Options) {
	user, repo := opts.UserName, opts.RepoName
	if user == "" {
		user = DefaultUserName
	}
	if repo == "" {
		repo = DefaultRepoName
	}
	fmt.Fprintf(b, "[contributors-shield]: https://img.shields.io/github/contributors/%s/%s.svg?style=for-the-badge\n", user, repo)
	fmt.Fprintf(b, "[contributors-url]: https://github.com/%s/%s/graphs/contributors\n", user, repo)
	fmt.Fprintf(b, "[forks-shield]: https://img.shields.io/github/forks/%s/%s.svg?style=for-the-badge\n", user, repo)
	fmt.Fprintf(b, "[forks-url]: https://github.com/%s/%s/network/members\n", user, repo)
	fmt.Fprintf(b, "[stars-shield]: https://img.shields.io/github/stars/%s/%s.svg?style=for-the-badge\n", user, repo)
	fmt.Fprintf(b, "[stars-url]: https://github.com/%s/%s/stargazers\n", user, repo)
	fmt.Fprintf(b, "[issues-shield]: https://img.shields.io/github/issues/%s/%s.svg?style=for-the-badge\n", user, repo)
	fmt.Fprintf(b, "[issues-url]: https://github.com/%s/%s/issues\n\n", user, repo)
}

// topicAnchor derives the in-page anchor for a topic heading.
func topicAnchor(topic string) string {
	return strings.ToLower(strings.ReplaceAll(topic, " ", "-"))
}

// dateAnchor derives the anchor of the date header line.
func dateAnchor(date string) string {
	anchor := "#Updated on " + date
	anchor = strings.ReplaceAll(anchor, " ", "-")
	anchor = strings.ReplaceAll(anchor, ".", "")
	return strings.ToLower(anchor)
}

// sortedIDsDescending returns paper ids sorted descending by string
// comparison, which for arXiv's YYMM.NNNNN scheme approximates reverse
// chronological order.
func sortedIDsDescending(papers map[string]string) []string {
	ids := make([]string, 0, len(papers))
	for id := range papers {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids
}

// prettyMath tidies the first inline math span on a row: inner
// whitespace is stripped and a single space separates the span from
// adjacent text, unless the neighbor is already a space or a '*'.
func prettyMath(s string) string {
	loc := mathRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	start, end := loc[0], loc[1]
	inner := strings.TrimSpace(s[start+1 : end-1])

	var b strings.Builder
	b.WriteString(s[:start])
	if start > 0 {
		if prev := s[start-1]; prev != ' ' && prev != '*' {
			b.WriteByte(' ')
		}
	}
	b.WriteString("$" + inner + "$")
	if end < len(s) {
		if next := s[end]; next != ' ' && next != '*' {
			b.WriteByte(' ')
		}
	}
	b.WriteString(s[end:])
	return b.String()
}
