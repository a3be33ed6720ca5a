// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tagger scans article bodies for configured concept patterns and
// records the matches as tags.
//
// Matching is case-insensitive and substring-based, not tokenized: a pattern
// occurring inside a larger word still counts. That is long-standing product
// behavior the digest and matcher depend on; do not tighten it to word
// boundaries without a coordinated change.
package tagger

import (
	"sort"
	"strings"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// DefaultPatterns returns the built-in pattern families used when the config
// lists are empty.
func DefaultPatterns() []types.Pattern {
	defaults := types.PatternsConfig{
		Tools: []string{
			"openevolve", "firecrawl", "postgresql",
			"n8n", "airtable", "deepmind", "google", "livekit",
		},
		Models: []string{
			"qwen", "gpt", "claude", "llm", "grok", "kimi", "deepagent",
		},
		Methodologies: []string{
			"crawl", "algo trading", "multi-model",
			"iterative", "automation", "discovery", "validation",
		},
	}
	return defaults.Flatten()
}

// Patterns normalizes the configured families into matchable patterns,
// falling back to the defaults when all three lists are empty. Pattern text
// is trimmed and lowercased; blank entries are dropped.
func Patterns(cfg types.PatternsConfig) []types.Pattern {
	raw := cfg.Flatten()
	if len(raw) == 0 {
		raw = DefaultPatterns()
	}

	out := make([]types.Pattern, 0, len(raw))
	for _, p := range raw {
		text := strings.ToLower(strings.TrimSpace(p.Text))
		if text == "" {
			continue
		}
		out = append(out, types.Pattern{Family: p.Family, Text: text})
	}
	return out
}

// Apply returns a copy of the article with Tags populated from the patterns
// that occur in its body. Pure function: the input article is not mutated,
// and the same inputs always produce the same sorted tag set.
func Apply(article types.Article, patterns []types.Pattern) types.Article {
	body := strings.ToLower(article.Body)

	seen := make(map[string]bool)
	for _, p := range patterns {
		if !strings.Contains(body, p.Text) {
			continue
		}
		seen[p.Tag()] = true
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	article.Tags = tags
	return article
}

// ApplyAll runs Apply over every article and returns a new corpus with the
// tagged copies. The input corpus is left untouched.
func ApplyAll(corpus types.Corpus, patterns []types.Pattern) types.Corpus {
	tagged := make([]types.Article, len(corpus.Articles))
	for i, a := range corpus.Articles {
		tagged[i] = Apply(a, patterns)
	}
	corpus.Articles = tagged
	return corpus
}
