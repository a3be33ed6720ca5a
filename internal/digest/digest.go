// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest compresses a tagged corpus into a budget-bounded text the
// responder can always afford to carry. Each article becomes one capsule
// (index, title, author, date, tags, excerpt); capsules are concatenated in
// corpus order until the budget runs out.
//
// Output is deterministic: the same corpus and budget always produce
// byte-identical text. Budgets are measured in runes.
package digest

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// ErrBudgetTooSmall reports a budget that cannot hold even one capsule. This
// is a fatal misconfiguration: the engine refuses to serve an empty digest.
var ErrBudgetTooSmall = errors.New("digest budget smaller than one capsule")

// DefaultBudgetChars is the budget used when the config leaves it zero.
const DefaultBudgetChars = 6000

const (
	capsuleSep = "\n"

	// noteReserve is held back from the budget on the constrained path so
	// the trailing skipped-articles note always fits.
	noteReserve = 48
)

// Compress builds the digest for a corpus within budgetChars runes.
//
// Articles are visited in corpus order (most recent first). When everything
// fits with full bodies, nothing is truncated. Otherwise each article's
// excerpt gets an even share of the budget still remaining at its turn, so
// early articles cannot hog a fixed excerpt length; articles whose capsule
// would overflow are skipped and counted, and a trailing note reports the
// count.
func Compress(corpus types.Corpus, budgetChars int) (types.Digest, error) {
	if len(corpus.Articles) == 0 {
		return types.Digest{}, fmt.Errorf("compressing: corpus has no articles")
	}
	if budgetChars <= 0 {
		return types.Digest{}, fmt.Errorf("compressing: %w (budget %d)", ErrBudgetTooSmall, budgetChars)
	}

	if d, ok := fullFit(corpus.Articles, budgetChars); ok {
		return d, nil
	}
	return constrained(corpus.Articles, budgetChars)
}

// fullFit renders every capsule with its whole body and reports whether the
// result fits the budget.
func fullFit(articles []types.Article, budget int) (types.Digest, bool) {
	total := 0
	capsules := make([]string, len(articles))
	indices := make([]int, len(articles))
	for i, a := range articles {
		c := capsule(a, a.Body)
		capsules[i] = c
		indices[i] = a.Index
		total += utf8.RuneCountInString(c)
		if i > 0 {
			total += utf8.RuneCountInString(capsuleSep)
		}
	}
	if total > budget {
		return types.Digest{}, false
	}
	return types.Digest{
		Text:    strings.Join(capsules, capsuleSep),
		Indices: indices,
	}, true
}

// constrained renders capsules under a working limit that reserves room for
// the trailing note.
func constrained(articles []types.Article, budget int) (types.Digest, error) {
	limit := budget - noteReserve
	if limit < 0 {
		limit = 0
	}

	var b strings.Builder
	var indices []int
	used := 0
	skipped := 0
	sepLen := utf8.RuneCountInString(capsuleSep)

	for i, a := range articles {
		remaining := limit - used
		left := len(articles) - i
		share := remaining / left

		sep := 0
		if len(indices) > 0 {
			sep = sepLen
		}

		head := capsuleHead(a)
		headLen := utf8.RuneCountInString(head)

		// Even share of what is left, minus the fixed capsule text and the
		// space before the excerpt.
		excerptLen := share - sep - headLen - 1
		c := capsule(a, truncateRunes(a.Body, excerptLen))

		cost := sep + utf8.RuneCountInString(c)
		if cost > remaining {
			skipped++
			continue
		}

		if len(indices) > 0 {
			b.WriteString(capsuleSep)
		}
		b.WriteString(c)
		used += cost
		indices = append(indices, a.Index)
	}

	if len(indices) == 0 {
		return types.Digest{}, fmt.Errorf("compressing %d articles: %w (budget %d)",
			len(articles), ErrBudgetTooSmall, budget)
	}

	if skipped > 0 {
		b.WriteString(skipNote(skipped))
	}

	return types.Digest{
		Text:    b.String(),
		Indices: indices,
		Skipped: skipped,
	}, nil
}

// capsule renders one article entry with the given excerpt.
func capsule(a types.Article, excerpt string) string {
	head := capsuleHead(a)
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		return head
	}
	return head + " " + excerpt
}

// capsuleHead renders the fixed part of a capsule, everything before the
// excerpt.
func capsuleHead(a types.Article) string {
	tags := "none"
	if len(a.Tags) > 0 {
		tags = strings.Join(a.Tags, ", ")
	}
	return fmt.Sprintf("[#%d] %s — %s (%s). Tags: %s.",
		a.Index, a.Title, a.Author, a.PublishedAt.Format("2006-01-02"), tags)
}

// skipNote renders the trailing note for omitted articles. Its length must
// stay under noteReserve.
func skipNote(skipped int) string {
	return fmt.Sprintf("%s[%d more articles not shown]", capsuleSep, skipped)
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
