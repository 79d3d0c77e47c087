// Package main provides the axd CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath  string
	updateLinks bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "axd",
	Short: "Daily arXiv paper tracker",
	Long: `axd collects newly published arXiv papers matching configured topic
keywords, enriches them with code-repository links and optional AI
summaries, and renders the accumulated history into markdown reports
(readme, website page, messaging digest).

It runs one pass per invocation and exits. With --update-links it skips
collection and instead backfills missing code links on already-stored
papers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPipeline,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	rootCmd.Flags().BoolVar(&updateLinks, "update-links", false, "Backfill missing code links instead of collecting new papers")
	rootCmd.Version = Version
}
