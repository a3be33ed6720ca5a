// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine owns the process-wide corpus snapshot and exposes the
// interface the conversational layer calls. A snapshot pairs one corpus with
// its digest; refreshes build a complete replacement and swap it in
// atomically, so readers always see a matching pair.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/corpus-engine/internal/digest"
	"github.com/pdiddy/corpus-engine/internal/feed"
	"github.com/pdiddy/corpus-engine/internal/match"
	"github.com/pdiddy/corpus-engine/internal/prompt"
	"github.com/pdiddy/corpus-engine/internal/tagger"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// statusTitleClip bounds the latest-article title quoted in the ready
// status message.
const statusTitleClip = 40

// ArchiveStore is the slice of the snapshot archive the engine uses. Nil
// disables archive seeding and storage.
type ArchiveStore interface {
	Store(ctx context.Context, corpus types.Corpus) (int64, error)
	LoadLatest(ctx context.Context) (types.Corpus, error)
}

// Snapshot is one published corpus+digest pair. Immutable once published.
type Snapshot struct {
	Corpus  types.Corpus
	Digest  types.Digest
	BuiltAt time.Time
}

// Engine builds and serves corpus snapshots.
type Engine struct {
	cfg      types.Config
	patterns []types.Pattern
	budget   int
	matchOpt match.Options
	client   *http.Client
	archive  ArchiveStore
	progress io.Writer

	snapshot atomic.Pointer[Snapshot]
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the default feed HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithArchive attaches a snapshot archive.
func WithArchive(a ArchiveStore) Option {
	return func(e *Engine) { e.archive = a }
}

// WithProgress directs fetch progress and warnings to w.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) { e.progress = w }
}

// New builds an Engine. The snapshot stays empty until Bootstrap or Refresh
// succeeds.
func New(cfg types.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		patterns: tagger.Patterns(cfg.Patterns),
		budget:   cfg.Digest.BudgetChars,
		matchOpt: match.Options{Threshold: cfg.Match.Threshold, Margin: cfg.Match.Margin},
		progress: io.Discard,
	}
	if e.budget <= 0 {
		e.budget = digest.DefaultBudgetChars
	}
	if e.matchOpt.Threshold == 0 {
		e.matchOpt.Threshold = match.DefaultThreshold
	}
	if e.matchOpt.Margin == 0 {
		e.matchOpt.Margin = match.DefaultMargin
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		timeout := cfg.Feed.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		e.client = &http.Client{Timeout: timeout}
	}
	return e
}

// Refresh fetches, tags, and compresses a fresh corpus, then publishes it.
// Safe for concurrent use: when two refreshes race, whichever publishes last
// wins, and a failed refresh leaves the current snapshot untouched.
func (e *Engine) Refresh(ctx context.Context) error {
	corpus, err := feed.Fetch(ctx, e.client, e.cfg.Feed, e.progress)
	if err != nil {
		return fmt.Errorf("fetching corpus: %w", err)
	}
	return e.publish(ctx, corpus, true)
}

// Bootstrap performs the first load. When the feed is unreachable and an
// archive is attached, the most recent archived corpus is re-tagged,
// compressed, and served marked degraded; with no archived fallback the
// fetch error is returned and the process should treat it as fatal.
func (e *Engine) Bootstrap(ctx context.Context) error {
	corpus, err := feed.Fetch(ctx, e.client, e.cfg.Feed, e.progress)
	if err != nil {
		if errors.Is(err, feed.ErrSourceUnavailable) && e.archive != nil {
			archived, aerr := e.archive.LoadLatest(ctx)
			if aerr != nil {
				return fmt.Errorf("bootstrapping: %w (archive: %v)", err, aerr)
			}
			fmt.Fprintf(e.progress, "feed unavailable, serving %d archived articles\n",
				len(archived.Articles))
			archived.Degraded = true
			archived.Source = types.SourceArchive
			return e.publish(ctx, archived, false)
		}
		return fmt.Errorf("bootstrapping: %w", err)
	}
	return e.publish(ctx, corpus, true)
}

// publish tags and compresses a corpus, swaps in the new snapshot, and
// optionally stores the corpus to the archive. An empty corpus publishes
// with an empty digest rather than failing; status and context then report
// the knowledge base as unavailable.
func (e *Engine) publish(ctx context.Context, corpus types.Corpus, toArchive bool) error {
	corpus = tagger.ApplyAll(corpus, e.patterns)

	var d types.Digest
	if len(corpus.Articles) > 0 {
		var err error
		d, err = digest.Compress(corpus, e.budget)
		if err != nil {
			return fmt.Errorf("compressing corpus: %w", err)
		}
	}

	e.snapshot.Store(&Snapshot{Corpus: corpus, Digest: d, BuiltAt: time.Now().UTC()})

	if toArchive && e.archive != nil && len(corpus.Articles) > 0 {
		if _, err := e.archive.Store(ctx, corpus); err != nil {
			fmt.Fprintf(e.progress, "warning: archiving corpus failed: %v\n", err)
		}
	}
	return nil
}

// InitialGreeting returns the persona opening line. Corpus-independent, so
// it works before the first load completes.
func (e *Engine) InitialGreeting() string {
	if g := strings.TrimSpace(e.cfg.Persona.Greeting); g != "" {
		return g
	}
	return fmt.Sprintf("%s research expert ready. What would you like to know?",
		domainName(e.cfg.Persona))
}

// ResponseContext ranks the current corpus against the utterance and
// assembles the instruction payload. Never fails: without a usable snapshot
// it returns the fallback payload.
func (e *Engine) ResponseContext(utterance string) prompt.Payload {
	snap := e.snapshot.Load()
	if snap == nil || len(snap.Corpus.Articles) == 0 {
		return prompt.Fallback(e.cfg.Persona)
	}
	result := match.Match(utterance, snap.Corpus, e.matchOpt)
	return prompt.Build(snap.Digest, result, &snap.Corpus, e.cfg.Persona)
}

// CorpusStatus reports the health of the current snapshot.
func (e *Engine) CorpusStatus() types.CorpusStatus {
	var status types.CorpusStatus
	snap := e.snapshot.Load()
	if snap != nil {
		status.ArticleCount = len(snap.Corpus.Articles)
		status.Degraded = snap.Corpus.Degraded
		status.FetchedAt = snap.Corpus.FetchedAt
		status.Dropped = snap.Corpus.Dropped
		status.Source = snap.Corpus.Source
	}

	if status.ArticleCount == 0 {
		status.Message = fmt.Sprintf(
			"Knowledge base temporarily unavailable. I can still assist with general %s research questions.",
			domainName(e.cfg.Persona))
		return status
	}

	latest, _ := snap.Corpus.Latest()
	status.Message = fmt.Sprintf(
		"Knowledge base loaded. I have comprehensive access to %d research articles, including the latest on %s. What would you like to know?",
		status.ArticleCount, clipTitle(latest.Title, statusTitleClip))
	return status
}

// VoiceSettings returns the configured avatar settings with defaults filled
// in. The engine never interprets them.
func (e *Engine) VoiceSettings() types.AvatarSettings {
	av := e.cfg.Avatar
	if av.Voice == "" {
		av.Voice = "ash"
	}
	if av.Speed == 0 {
		av.Speed = 1.2
	}
	if av.Image == "" {
		av.Image = "assets/stan.png"
	}
	return av
}

func domainName(p types.PersonaConfig) string {
	if d := strings.TrimSpace(p.Domain); d != "" {
		return d
	}
	return "AI"
}

func clipTitle(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
