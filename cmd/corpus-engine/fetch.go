package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/feed"
	"github.com/pdiddy/corpus-engine/internal/tagger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run feed ingestion once and summarize the corpus",
	Long: `Fetch pages through the configured feed, normalizes and filters the records,
and prints a per-page progress log with a final summary. With --archive the
fetched corpus is stored as a snapshot.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("archive", false, "store the fetched corpus as an archive snapshot")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	client := &http.Client{Timeout: feedTimeout(cfg.Feed)}
	corpus, err := feed.Fetch(ctx, client, cfg.Feed, os.Stdout)
	if err != nil {
		return err
	}
	corpus = tagger.ApplyAll(corpus, tagger.Patterns(cfg.Patterns))

	if corpus.Degraded {
		if corpus.PagesFailed > 0 {
			fmt.Printf("corpus is degraded: %d page(s) failed\n", corpus.PagesFailed)
		} else {
			fmt.Printf("corpus is degraded (source: %s)\n", corpus.Source)
		}
	}

	toArchive, _ := cmd.Flags().GetBool("archive")
	if toArchive {
		store, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Store(ctx, corpus)
		if err != nil {
			return err
		}
		fmt.Printf("stored snapshot %d (%d articles)\n", id, len(corpus.Articles))
	}
	return nil
}
