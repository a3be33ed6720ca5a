// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match scores every article in the corpus against a user utterance
// and decides whether the best candidate is strong enough to anchor the
// response on.
//
// The scoring function is deliberately plain arithmetic over fixed weights,
// not a learned ranker: operators can replay any utterance with the match
// command and see exactly why an article won.
package match

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Scoring weights. A tag hit counts once per matching tag; an explicit
// article reference outweighs any realistic tag count; recency adds at most
// 0.1 so it only separates otherwise-equal candidates.
const (
	tagWeight      = 1.0
	referenceBonus = 2.5
	recencyWeight  = 0.1
)

// titleWordFraction is the share of a title's significant words that must
// appear in the utterance to count as a title reference.
const titleWordFraction = 0.6

// Default confidence cut-offs, used when the config leaves them zero.
const (
	DefaultThreshold = 1.0
	DefaultMargin    = 0.5
)

// indexRefPattern finds explicit ordinal references such as "article 14",
// "post 14", "number 14", or "#14".
var indexRefPattern = regexp.MustCompile(`(?:article|post|number|#)\s*#?(\d+)`)

// Options carries the confidence cut-offs.
type Options struct {
	// Threshold is the score the top candidate must strictly exceed.
	Threshold float64

	// Margin is the minimum lead over the runner-up.
	Margin float64
}

// Match ranks all articles for one utterance. Never fails: an utterance that
// matches nothing simply comes back with Confident=false, which is the
// normal fallback path, not an error.
func Match(utterance string, corpus types.Corpus, opts Options) types.MatchResult {
	total := len(corpus.Articles)
	if total == 0 {
		return types.MatchResult{}
	}

	utt := strings.ToLower(utterance)
	uttNorm := normalize(utterance)
	uttWords := wordSet(uttNorm)
	refIndex := referencedIndex(utt)

	ranked := make([]types.ArticleScore, 0, total)
	for _, a := range corpus.Articles {
		score := 0.0

		for _, tag := range a.Tags {
			if pattern := tagPattern(tag); pattern != "" && strings.Contains(utt, pattern) {
				score += tagWeight
			}
		}

		if refIndex == a.Index || titleReferenced(a.Title, uttNorm, uttWords) {
			score += referenceBonus
		}

		// Lower index is more recent; factor runs from 1.0 down to 1/total.
		score += recencyWeight * float64(total-a.Index+1) / float64(total)

		ranked = append(ranked, types.ArticleScore{Index: a.Index, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})

	second := 0.0
	if len(ranked) > 1 {
		second = ranked[1].Score
	}
	confident := ranked[0].Score > opts.Threshold && ranked[0].Score-second >= opts.Margin

	return types.MatchResult{Ranked: ranked, Confident: confident}
}

// tagPattern strips the family prefix from a "family:pattern" tag.
func tagPattern(tag string) string {
	if i := strings.Index(tag, ":"); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// referencedIndex extracts an explicit ordinal reference from the lowercased
// utterance, or 0 when there is none.
func referencedIndex(utt string) int {
	m := indexRefPattern.FindStringSubmatch(utt)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// titleReferenced reports whether the utterance names the article's title,
// either verbatim or as a close paraphrase: at least titleWordFraction of the
// title's significant words (length >= 4) present in the utterance, with a
// minimum of two such words so short titles cannot fire on one common word.
func titleReferenced(title, uttNorm string, uttWords map[string]bool) bool {
	titleNorm := normalize(title)
	if titleNorm == "" {
		return false
	}
	if strings.Contains(uttNorm, titleNorm) {
		return true
	}

	significant := 0
	matched := 0
	for _, w := range strings.Fields(titleNorm) {
		if len(w) < 4 {
			continue
		}
		significant++
		if uttWords[w] {
			matched++
		}
	}
	if significant < 2 {
		return false
	}
	return float64(matched)/float64(significant) >= titleWordFraction
}

// normalize lowercases and strips punctuation, collapsing whitespace.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func wordSet(normalized string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		words[w] = true
	}
	return words
}

// FormatTable writes the ranking as a human-readable table to w, most
// relevant first.
func FormatTable(result types.MatchResult, corpus types.Corpus, w io.Writer) {
	if len(result.Ranked) == 0 {
		fmt.Fprintln(w, "No articles to rank.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-5s  %-6s  %-50s  %s\n", "Rank", "Art#", "Score", "Title", "Author")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for i, s := range result.Ranked {
		a, ok := corpus.ByIndex(s.Index)
		if !ok {
			continue
		}
		title := a.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-5d  %-6.2f  %-50s  %s\n", i+1, s.Index, s.Score, title, a.Author)
	}

	if result.Confident {
		top := result.Ranked[0]
		fmt.Fprintf(w, "\nConfident match: article #%d\n", top.Index)
	} else {
		fmt.Fprintln(w, "\nNo confident match; the digest path applies.")
	}
}

// FormatJSON writes the ranking as indented JSON to w.
func FormatJSON(result types.MatchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
