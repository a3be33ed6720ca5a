package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/match"
)

var matchCmd = &cobra.Command{
	Use:   "match <utterance>",
	Short: "Score the corpus against an utterance",
	Long: `Match replays the relevance scorer for one utterance and prints the ranked
table with the confidence verdict, exactly as the serving path computes it.
The scoring is plain arithmetic over tag hits, explicit references, and
recency, so every ranking can be audited by hand.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().Bool("from-archive", false, "use the newest archive snapshot instead of fetching")
	matchCmd.Flags().Bool("json", false, "output the ranking as JSON")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fromArchive, _ := cmd.Flags().GetBool("from-archive")
	corpus, err := loadCorpus(context.Background(), cfg, fromArchive)
	if err != nil {
		return err
	}

	opts := match.Options{Threshold: cfg.Match.Threshold, Margin: cfg.Match.Margin}
	if opts.Threshold == 0 {
		opts.Threshold = match.DefaultThreshold
	}
	if opts.Margin == 0 {
		opts.Margin = match.DefaultMargin
	}

	result := match.Match(strings.Join(args, " "), corpus, opts)

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return match.FormatJSON(result, os.Stdout)
	}
	match.FormatTable(result, corpus, os.Stdout)
	return nil
}
