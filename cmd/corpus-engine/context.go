package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/engine"
	"github.com/pdiddy/corpus-engine/internal/prompt"
)

var contextCmd = &cobra.Command{
	Use:   "context <utterance>",
	Short: "Print the instruction payload for an utterance",
	Long: `Context bootstraps the engine the same way serve does (archive fallback
included) and prints the instruction payload one utterance would produce:
persona, briefing, digest directory, policy, and the focus article when the
matcher is confident.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().Bool("json", false, "output {kind, instructions, article} as JSON")

	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithProgress(os.Stderr)}
	if cfg.Archive.Path != "" {
		store, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, engine.WithArchive(store))
	}

	eng := engine.New(cfg, opts...)
	if err := eng.Bootstrap(context.Background()); err != nil {
		return err
	}

	payload := eng.ResponseContext(strings.Join(args, " "))

	jsonOut, _ := cmd.Flags().GetBool("json")
	if !jsonOut {
		fmt.Println(payload.Instructions())
		return nil
	}

	out := contextOutput{Kind: "digest_only", Instructions: payload.Instructions()}
	if anchored, ok := payload.(prompt.ArticleAnchored); ok {
		out.Kind = "article_anchored"
		out.Article = &contextArticle{
			Index:  anchored.Article.Index,
			Title:  anchored.Article.Title,
			Author: anchored.Article.Author,
			URL:    anchored.Article.URL,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// contextOutput mirrors the POST /v1/context response shape.
type contextOutput struct {
	Kind         string          `json:"kind"`
	Instructions string          `json:"instructions"`
	Article      *contextArticle `json:"article,omitempty"`
}

type contextArticle struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
}
