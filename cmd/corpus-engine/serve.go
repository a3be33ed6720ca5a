// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/engine"
	"github.com/pdiddy/corpus-engine/internal/logutil"
	"github.com/pdiddy/corpus-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine behind the HTTP API",
	Long: `Serve bootstraps the engine (fetching the corpus, falling back to the
newest archive snapshot when the feed is down) and serves the conversational
API until interrupted. Scheduled refreshes run when server.refresh_cron is
set; shutdown drains in-flight requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logutil.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)

	var opts []engine.Option
	if cfg.Archive.Path != "" {
		store, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, engine.WithArchive(store))
	}
	eng := engine.New(cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bootstrapping", "endpoint", cfg.Feed.Endpoint)
	if err := eng.Bootstrap(ctx); err != nil {
		return err
	}
	status := eng.CorpusStatus()
	logger.Info("corpus ready",
		"articles", status.ArticleCount,
		"degraded", status.Degraded,
		"source", status.Source,
	)

	srv := server.New(cfg.Server, eng, logutil.WithComponent(logger, "server"))
	return srv.Run(ctx)
}
