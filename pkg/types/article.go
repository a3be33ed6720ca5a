// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Article is one normalized record from the content feed. Immutable once
// fetched; the tagger returns a copy rather than mutating in place.
type Article struct {
	// Index is the 1-based ordinal position in the corpus, assigned in feed
	// order. The feed is reverse-chronological, so index 1 is the latest
	// article. Stable for the lifetime of the corpus.
	Index int `json:"index" yaml:"index"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Author is the article author, or the configured fallback when the feed
	// record carries none.
	Author string `json:"author" yaml:"author"`

	// PublishedAt is the publication timestamp.
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`

	// URL is the canonical article URL.
	URL string `json:"url" yaml:"url"`

	// Body is the full plain-text body. Non-empty for every retained article;
	// records under the minimum body length are dropped at ingestion.
	Body string `json:"body" yaml:"body"`

	// Tags holds the matched "family:pattern" tags, sorted. Empty until the
	// tagger pass runs.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CorpusSource identifies where a corpus was loaded from.
type CorpusSource string

const (
	SourceAPI     CorpusSource = "api"
	SourceRSS     CorpusSource = "rss"
	SourceArchive CorpusSource = "archive"
)

// Corpus is the ordered set of articles ingested in one fetch, plus the
// outcome of that fetch. Read-only after the tagger pass completes; a refresh
// builds a new Corpus rather than patching this one.
type Corpus struct {
	// Articles in feed order (most recent first). Index values are unique
	// and dense: Articles[i].Index == i+1.
	Articles []Article `json:"articles" yaml:"articles"`

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`

	// TotalCount is the number of retained articles.
	TotalCount int `json:"total_count" yaml:"total_count"`

	// Degraded is set when the corpus is known to be incomplete: a later page
	// failed after the first succeeded, or the corpus came from the RSS
	// fallback or the archive.
	Degraded bool `json:"degraded" yaml:"degraded"`

	// Dropped counts records discarded during normalization (stub bodies,
	// unusable records).
	Dropped int `json:"dropped" yaml:"dropped"`

	// PagesFailed counts pages that exhausted their retry budget.
	PagesFailed int `json:"pages_failed,omitempty" yaml:"pages_failed,omitempty"`

	// Source identifies where this corpus came from.
	Source CorpusSource `json:"source" yaml:"source"`
}

// Latest returns the most recent article and true, or a zero Article and
// false when the corpus is empty.
func (c *Corpus) Latest() (Article, bool) {
	if len(c.Articles) == 0 {
		return Article{}, false
	}
	return c.Articles[0], true
}

// ByIndex returns the article with the given 1-based index, or false when out
// of range.
func (c *Corpus) ByIndex(index int) (Article, bool) {
	if index < 1 || index > len(c.Articles) {
		return Article{}, false
	}
	return c.Articles[index-1], true
}

// Digest is the budget-bounded text derived from a corpus. Computed once per
// corpus build and cached alongside it; invalidated only by a new build.
type Digest struct {
	// Text is the digest body, at most the configured budget in runes.
	Text string `json:"text" yaml:"text"`

	// Indices lists the article indices whose capsules were included, in
	// digest order.
	Indices []int `json:"indices" yaml:"indices"`

	// Skipped counts articles that did not fit the budget.
	Skipped int `json:"skipped" yaml:"skipped"`
}

// ArticleScore is one ranked entry in a match result.
type ArticleScore struct {
	// Index is the scored article's corpus index.
	Index int `json:"index"`

	// Score is the weighted relevance score.
	Score float64 `json:"score"`
}

// MatchResult is the per-turn ranking for one utterance. Ephemeral: never
// persisted, recomputed from scratch each turn.
type MatchResult struct {
	// Ranked lists all scored articles, descending by score, ties broken by
	// lower (more recent) index.
	Ranked []ArticleScore `json:"ranked"`

	// Confident is true when the top score clears the threshold and leads the
	// runner-up by the configured margin.
	Confident bool `json:"confident"`
}

// Top returns the best-ranked entry and true, or false when nothing scored.
func (m *MatchResult) Top() (ArticleScore, bool) {
	if len(m.Ranked) == 0 {
		return ArticleScore{}, false
	}
	return m.Ranked[0], true
}

// PatternFamily names one of the three concept families the tagger scans for.
type PatternFamily string

const (
	FamilyTool        PatternFamily = "tool"
	FamilyModel       PatternFamily = "model"
	FamilyMethodology PatternFamily = "methodology"
)

// Pattern is one literal pattern in a family. The tagger matches Text
// case-insensitively as a substring of the article body.
type Pattern struct {
	Family PatternFamily `json:"family" yaml:"family"`
	Text   string        `json:"text" yaml:"text"`
}

// Tag returns the tag contributed when this pattern matches.
func (p Pattern) Tag() string {
	return string(p.Family) + ":" + p.Text
}

// CorpusStatus is the health view of the current snapshot, surfaced to the
// conversational layer for diagnostics.
type CorpusStatus struct {
	// ArticleCount is the number of articles in the current corpus, zero
	// before the first successful load.
	ArticleCount int `json:"article_count"`

	// Degraded mirrors Corpus.Degraded.
	Degraded bool `json:"degraded"`

	// FetchedAt is when the current corpus was fetched; zero before the
	// first load.
	FetchedAt time.Time `json:"fetched_at"`

	// Dropped mirrors Corpus.Dropped.
	Dropped int `json:"dropped,omitempty"`

	// Source mirrors Corpus.Source.
	Source CorpusSource `json:"source,omitempty"`

	// Message is a human-readable status line (ready or unavailable wording).
	Message string `json:"message"`
}

// AvatarSettings are cosmetic voice and avatar values passed through to the
// presentation layer. The engine never interprets them.
type AvatarSettings struct {
	// Voice is the TTS voice name (e.g. "ash").
	Voice string `json:"voice" yaml:"voice"`

	// Speed is the TTS speed multiplier.
	Speed float64 `json:"speed" yaml:"speed"`

	// Image is the avatar image path.
	Image string `json:"image" yaml:"image"`
}
