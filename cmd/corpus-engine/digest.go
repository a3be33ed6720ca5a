package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/digest"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Build and print the compressed corpus digest",
	Long: `Digest fetches the corpus (or loads the newest archive snapshot with
--from-archive), compresses it into the budgeted directory text, and prints
it. With -o the digest is written to a file atomically (temp file + rename)
so a half-written digest is never observed.`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().Int("budget", 0, "digest budget in runes (0 = config value)")
	digestCmd.Flags().Bool("from-archive", false, "use the newest archive snapshot instead of fetching")
	digestCmd.Flags().StringP("output", "o", "", "write the digest to a file instead of stdout")

	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fromArchive, _ := cmd.Flags().GetBool("from-archive")
	corpus, err := loadCorpus(context.Background(), cfg, fromArchive)
	if err != nil {
		return err
	}

	budget, _ := cmd.Flags().GetInt("budget")
	if budget <= 0 {
		budget = cfg.Digest.BudgetChars
	}
	if budget <= 0 {
		budget = digest.DefaultBudgetChars
	}

	d, err := digest.Compress(corpus, budget)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		fmt.Println(d.Text)
		fmt.Fprintf(os.Stderr, "digest: %d of %d articles shown, %d skipped\n",
			len(d.Indices), len(corpus.Articles), d.Skipped)
		return nil
	}

	if err := writeFileAtomic(out, []byte(d.Text+"\n")); err != nil {
		return fmt.Errorf("writing digest: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s: %d of %d articles shown, %d skipped\n",
		out, len(d.Indices), len(corpus.Articles), d.Skipped)
	return nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// and a rename, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".digest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
