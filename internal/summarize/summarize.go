// Package summarize downloads a paper's PDF, extracts its text, and asks
// an OpenAI-compatible chat endpoint for a short summary. Summaries are
// cached so a paper is only summarized once.
package summarize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/vincentqyw/arxiv-daily/internal/cache"
	"github.com/vincentqyw/arxiv-daily/internal/fetch"
)

// PDFBaseURL is where arXiv serves paper PDFs.
const PDFBaseURL = "https://arxiv.org/pdf/"

// maxSummaryInputChars bounds how much extracted text is sent to the
// chat endpoint.
const maxSummaryInputChars = 60000

// summaryPrompt asks for the fixed two-part summary embedded in title
// cells. The <br> separators must survive into the stored row, so the
// model is told to avoid newlines.
const summaryPrompt = "你是论文的作者，请用中文总结这篇论文的主要内容，并给出论文的结论。" +
	"最终的输出格式为：'**论文主要内容**：[论文主要内容] <br><br> **论文结论**：[论文结论]'。" +
	"你只需要填写[]里的内容，保留<br>，输出结果不要有任何换行行为。\n\n论文全文：\n%s"

// unsafeFilenameRe matches characters not allowed in downloaded file names.
var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Summarizer produces one-line paper summaries.
type Summarizer struct {
	fetch      *fetch.Client
	chat       *ChatClient
	cache      *cache.Cache
	log        *slog.Logger
	papersDir  string
	pdfBaseURL string
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithPDFBaseURL sets a custom PDF host (for testing).
func WithPDFBaseURL(u string) Option {
	return func(s *Summarizer) { s.pdfBaseURL = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) { s.log = l }
}

// New creates a Summarizer. The cache may be nil, in which case every
// call downloads and summarizes afresh.
func New(f *fetch.Client, chat *ChatClient, c *cache.Cache, papersDir string, opts ...Option) *Summarizer {
	s := &Summarizer{
		fetch:      f,
		chat:       chat,
		cache:      c,
		log:        slog.Default(),
		papersDir:  papersDir,
		pdfBaseURL: PDFBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns the summary for a paper id, consulting the cache
// first. An empty string with nil error means summarization is
// unavailable rather than failed.
func (s *Summarizer) Summarize(ctx context.Context, paperID string) (string, error) {
	if s.cache != nil {
		if summary, ok, err := s.cache.Get(paperID); err != nil {
			s.log.Warn("summary cache read failed", "id", paperID, "error", err)
		} else if ok {
			return summary, nil
		}
	}

	pdfPath, err := s.downloadPDF(ctx, paperID)
	if err != nil {
		return "", fmt.Errorf("downloading PDF for %s: %w", paperID, err)
	}

	text, err := ExtractText(pdfPath)
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", pdfPath, err)
	}
	if len(text) > maxSummaryInputChars {
		text = truncateUTF8(text, maxSummaryInputChars)
	}

	summary, err := s.chat.Complete(ctx, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return "", fmt.Errorf("summarizing %s: %w", paperID, err)
	}
	summary = strings.ReplaceAll(strings.TrimSpace(summary), "\n", " ")

	if s.cache != nil {
		if err := s.cache.Put(paperID, summary); err != nil {
			s.log.Warn("summary cache write failed", "id", paperID, "error", err)
		}
	}
	return summary, nil
}

// downloadPDF fetches the paper's PDF into the papers directory and
// returns the local path.
func (s *Summarizer) downloadPDF(ctx context.Context, paperID string) (string, error) {
	if err := os.MkdirAll(s.papersDir, 0755); err != nil {
		return "", fmt.Errorf("creating papers directory: %w", err)
	}

	dest := filepath.Join(s.papersDir, SanitizeFilename(paperID)+".pdf")
	if err := s.fetch.Download(ctx, s.pdfBaseURL+paperID+".pdf", dest); err != nil {
		return "", err
	}
	s.log.Info("downloaded PDF", "id", paperID, "path", dest)
	return dest, nil
}

// ExtractText returns the plain text content of a PDF file.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return string(data), nil
}

// SanitizeFilename replaces characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	return unsafeFilenameRe.ReplaceAllString(name, "_")
}

// truncateUTF8 shortens text to at most maxLen bytes without splitting a
// multi-byte character.
func truncateUTF8(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}
