// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the corpus-engine CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-engine/internal/archive"
	"github.com/pdiddy/corpus-engine/internal/feed"
	"github.com/pdiddy/corpus-engine/internal/secrets"
	"github.com/pdiddy/corpus-engine/internal/tagger"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the corpus-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "corpus-engine",
	Short: "Knowledge compression and retrieval engine for conversational avatars",
	Long: `corpus-engine ingests a publication feed into an ordered corpus, compresses
it into a digest that fits a session context budget, and assembles per-turn
instruction payloads that anchor responses in the source articles.

Pipeline stages are subcommands: fetch, digest, match, and context exercise
the stages one at a time; serve runs the full engine behind the HTTP API;
archive manages stored corpus snapshots.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./corpus-engine.yaml or ~/.corpus-engine/corpus-engine.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("corpus-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".corpus-engine"))
		}
	}

	viper.SetEnvPrefix("CORPUS_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig unmarshals the viper state into a Config and applies the loaded
// secrets on top. Component defaults for zero values are applied by the
// components themselves.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("parsing configuration: %w", err)
	}
	secrets.Apply(loadedSecrets, &cfg)
	return cfg, nil
}

// loadCorpus builds a tagged corpus for the one-shot pipeline commands,
// either from the live feed or from the newest archive snapshot. Fetch
// progress goes to stderr so stdout stays clean for the command's output.
func loadCorpus(ctx context.Context, cfg types.Config, fromArchive bool) (types.Corpus, error) {
	if fromArchive {
		store, err := openArchive(cfg)
		if err != nil {
			return types.Corpus{}, err
		}
		defer store.Close()

		corpus, err := store.LoadLatest(ctx)
		if err != nil {
			return types.Corpus{}, err
		}
		return tagger.ApplyAll(corpus, tagger.Patterns(cfg.Patterns)), nil
	}

	client := &http.Client{Timeout: feedTimeout(cfg.Feed)}
	corpus, err := feed.Fetch(ctx, client, cfg.Feed, os.Stderr)
	if err != nil {
		return types.Corpus{}, err
	}
	return tagger.ApplyAll(corpus, tagger.Patterns(cfg.Patterns)), nil
}

func openArchive(cfg types.Config) (*archive.Store, error) {
	if cfg.Archive.Path == "" {
		return nil, fmt.Errorf("archive.path is not configured")
	}
	return archive.Open(cfg.Archive.Path)
}

func feedTimeout(cfg types.FeedConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 30 * time.Second
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
