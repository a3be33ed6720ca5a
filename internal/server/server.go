// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the engine to the conversational layer over HTTP.
// It owns the route table, request logging, Prometheus metrics, the refresh
// schedule, and graceful shutdown; all corpus semantics live in the engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pdiddy/corpus-engine/internal/prompt"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Engine is the slice of the corpus engine the server exposes.
type Engine interface {
	InitialGreeting() string
	ResponseContext(utterance string) prompt.Payload
	CorpusStatus() types.CorpusStatus
	VoiceSettings() types.AvatarSettings
	Refresh(ctx context.Context) error
}

// Server serves the engine's inbound surface over HTTP.
type Server struct {
	cfg     types.ServerConfig
	eng     Engine
	logger  *slog.Logger
	metrics *metricSet
}

// New builds a Server around an already bootstrapped engine.
func New(cfg types.ServerConfig, eng Engine, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, eng: eng, logger: logger, metrics: newMetricSet()}
}

// Handler returns the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.metrics.handler())
	mux.HandleFunc("GET /v1/greeting", s.handleGreeting)
	mux.HandleFunc("POST /v1/context", s.handleContext)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/avatar", s.handleAvatar)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	// Applied inside-out: metrics innermost, request id outermost so the
	// logger always sees an id.
	var chain http.Handler = mux
	chain = s.observeRequests(chain)
	chain = s.logRequests(chain)
	chain = withRequestID(chain)
	return chain
}

// Run starts the listener and blocks until ctx is cancelled or the listener
// fails. Scheduled refreshes run while the server is up; shutdown drains
// in-flight requests for cfg.ShutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	s.syncCorpusGauges()

	var sched *cron.Cron
	if s.cfg.RefreshCron != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(s.cfg.RefreshCron, func() {
			s.runRefresh(context.Background(), "cron")
		}); err != nil {
			return fmt.Errorf("scheduling refresh %q: %w", s.cfg.RefreshCron, err)
		}
		sched.Start()
		s.logger.Info("refresh scheduled", "cron", s.cfg.RefreshCron)
	}

	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if sched != nil {
			<-sched.Stop().Done()
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	if sched != nil {
		<-sched.Stop().Done()
	}

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runRefresh executes one refresh and records its outcome.
func (s *Server) runRefresh(ctx context.Context, trigger string) {
	start := time.Now()
	err := s.eng.Refresh(ctx)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.logger.Error("refresh failed", "trigger", trigger, "error", err)
	} else {
		s.logger.Info("refresh complete", "trigger", trigger, "duration", elapsed)
	}
	s.metrics.refreshesTotal.WithLabelValues(outcome).Inc()
	s.metrics.refreshDuration.Observe(elapsed.Seconds())
	s.syncCorpusGauges()
}

func (s *Server) syncCorpusGauges() {
	s.setCorpusGauges(s.eng.CorpusStatus())
}

func (s *Server) setCorpusGauges(status types.CorpusStatus) {
	s.metrics.corpusArticles.Set(float64(status.ArticleCount))
	degraded := 0.0
	if status.Degraded {
		degraded = 1
	}
	s.metrics.corpusDegraded.Set(degraded)
}
