// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/archive"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and manage stored corpus snapshots",
	Long: `Archive works with the SQLite snapshot store: list stored snapshots, export
the newest corpus, search archived articles with full-text search, or prune
old snapshots. Requires archive.path in the config.`,
}

// --- list subcommand ---

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE:  runArchiveList,
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List(context.Background())
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		fmt.Println("No snapshots stored.")
		return nil
	}

	fmt.Printf("%-4s  %-19s  %-8s  %-8s  %-7s  %s\n",
		"ID", "Fetched", "Articles", "Degraded", "Dropped", "Source")
	fmt.Println(strings.Repeat("-", 62))
	for _, in := range infos {
		fmt.Printf("%-4d  %-19s  %-8d  %-8t  %-7d  %s\n",
			in.ID, in.FetchedAt.Format("2006-01-02 15:04:05"),
			in.TotalCount, in.Degraded, in.Dropped, in.Source)
	}
	return nil
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the newest archived corpus to YAML or JSON",
	RunE:  runArchiveExport,
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	corpus, err := store.LoadLatest(context.Background())
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml", "":
		return archive.ExportYAML(corpus, os.Stdout)
	case "json":
		return archive.ExportJSON(corpus, os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// --- grep subcommand ---

var archiveGrepCmd = &cobra.Command{
	Use:   "grep <term>",
	Short: "Full-text search archived article titles and bodies",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runArchiveGrep,
}

func runArchiveGrep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	results, err := store.Grep(context.Background(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	fmt.Printf("%-8s  %-5s  %-50s  %s\n", "Snap", "Art#", "Title", "Author")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range results {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Printf("%-8d  %-5d  %-50s  %s\n", r.SnapshotID, r.Index, title, r.Author)
	}
	fmt.Printf("\n%d matches\n", len(results))
	return nil
}

// --- prune subcommand ---

var archivePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	RunE:  runArchivePrune,
}

func runArchivePrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	if keep <= 0 {
		keep = cfg.Archive.Keep
	}
	if keep <= 0 {
		keep = 10
	}

	removed, err := store.Prune(context.Background(), keep)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d snapshot(s), kept %d\n", removed, keep)
	return nil
}

func init() {
	archiveListCmd.Flags().Bool("json", false, "output the listing as JSON")
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	archiveGrepCmd.Flags().Int("limit", 20, "maximum matches to print")
	archivePruneCmd.Flags().Int("keep", 0, "snapshots to retain (0 = archive.keep config value)")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	archiveCmd.AddCommand(archiveGrepCmd)
	archiveCmd.AddCommand(archivePruneCmd)

	rootCmd.AddCommand(archiveCmd)
}
