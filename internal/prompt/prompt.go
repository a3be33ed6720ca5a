// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt assembles the per-turn instruction payload handed to the
// conversational layer. The payload always carries the persona, the standing
// language policy, and the corpus digest; when the matcher is confident it
// additionally carries one article in full.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

const (
	// expertiseTitles is how many titles the author expertise section lists
	// per author.
	expertiseTitles = 3

	// expertiseTitleClip bounds each listed title's length in runes.
	expertiseTitleClip = 25
)

// Payload is the instruction context for one turn: DigestOnly when no single
// article stood out, ArticleAnchored when one did. The two variants are the
// only implementations.
type Payload interface {
	// Instructions returns the full instruction text for the responder.
	Instructions() string

	isPayload()
}

// DigestOnly carries persona, policy, and the corpus digest with no article
// singled out.
type DigestOnly struct {
	Text string
}

func (DigestOnly) isPayload() {}

// Instructions returns the assembled instruction text.
func (p DigestOnly) Instructions() string { return p.Text }

// ArticleAnchored carries everything DigestOnly does plus the full text of
// the confidently matched article. The digest stays present; the article is
// added on top, never substituted for it.
type ArticleAnchored struct {
	Text    string
	Article types.Article
}

func (ArticleAnchored) isPayload() {}

// Instructions returns the assembled instruction text.
func (p ArticleAnchored) Instructions() string { return p.Text }

// Build assembles the payload for one turn. When match is confident and its
// top index resolves in the corpus, the article's full body rides along with
// an instruction to prefer it for this turn; otherwise the digest stands
// alone. Build has no side effects and never calls the responder.
func Build(digest types.Digest, match types.MatchResult, corpus *types.Corpus, persona types.PersonaConfig) Payload {
	var b strings.Builder

	writeHeader(&b, persona)
	writeBriefing(&b, corpus)
	writeDirectory(&b, digest)
	writePolicy(&b, corpus, persona)

	if match.Confident {
		if top, ok := match.Top(); ok {
			if a, ok := corpus.ByIndex(top.Index); ok {
				writeFocus(&b, a)
				return ArticleAnchored{Text: b.String(), Article: a}
			}
		}
	}
	return DigestOnly{Text: b.String()}
}

// Fallback builds the payload served before the first successful refresh or
// when the corpus is empty.
func Fallback(persona types.PersonaConfig) Payload {
	var b strings.Builder
	fmt.Fprintf(&b, "LANGUAGE: ALWAYS RESPOND IN %s ONLY. NEVER USE ANY OTHER LANGUAGE.\n\n",
		strings.ToUpper(language(persona)))
	fmt.Fprintf(&b, "You are a %s research expert. The knowledge base is currently unavailable, but you can still provide general %s research insights.\n",
		domain(persona), domain(persona))
	if persona.Style != "" {
		fmt.Fprintf(&b, "\nCOMMUNICATION: %s\n", persona.Style)
	}
	return DigestOnly{Text: b.String()}
}

func writeHeader(b *strings.Builder, persona types.PersonaConfig) {
	fmt.Fprintf(b, "LANGUAGE: ALWAYS RESPOND IN %s ONLY. NEVER USE ANY OTHER LANGUAGE.\n\n",
		strings.ToUpper(language(persona)))
	fmt.Fprintf(b, "You are a %s research expert with exclusive access to our proprietary research content.\n\n",
		domain(persona))
	if persona.Style != "" {
		fmt.Fprintf(b, "COMMUNICATION: %s\n\n", persona.Style)
	}
}

// writeBriefing summarizes the corpus: latest article, author coverage, and
// the tools its articles mention.
func writeBriefing(b *strings.Builder, corpus *types.Corpus) {
	latest, ok := corpus.Latest()
	if !ok {
		return
	}
	fmt.Fprintf(b, "LATEST ARTICLE: %q by %s\n\n", latest.Title, latest.Author)

	writeExpertise(b, corpus)
	writeTools(b, corpus)
}

// writeExpertise lists each author with an article count and up to three
// titles, in corpus order.
func writeExpertise(b *strings.Builder, corpus *types.Corpus) {
	var order []string
	byAuthor := make(map[string][]types.Article)
	for _, a := range corpus.Articles {
		if _, seen := byAuthor[a.Author]; !seen {
			order = append(order, a.Author)
		}
		byAuthor[a.Author] = append(byAuthor[a.Author], a)
	}
	if len(order) == 0 {
		return
	}

	b.WriteString("AUTHOR EXPERTISE:\n")
	for _, author := range order {
		works := byAuthor[author]
		titles := make([]string, 0, expertiseTitles)
		for _, w := range works {
			if len(titles) == expertiseTitles {
				break
			}
			titles = append(titles, clip(w.Title, expertiseTitleClip))
		}
		fmt.Fprintf(b, "%s: %d articles - %s\n", author, len(works), strings.Join(titles, "; "))
	}
	b.WriteString("\n")
}

// writeTools lists every tool-family tag seen in the corpus, sorted.
func writeTools(b *strings.Builder, corpus *types.Corpus) {
	seen := make(map[string]bool)
	prefix := string(types.FamilyTool) + ":"
	for _, a := range corpus.Articles {
		for _, tag := range a.Tags {
			if name, ok := strings.CutPrefix(tag, prefix); ok {
				seen[name] = true
			}
		}
	}
	if len(seen) == 0 {
		return
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintf(b, "Tools: %s\n\n", strings.Join(names, ", "))
}

func writeDirectory(b *strings.Builder, digest types.Digest) {
	b.WriteString("COMPLETE ARTICLE DIRECTORY:\n")
	b.WriteString(digest.Text)
	b.WriteString("\n\n")
}

// writePolicy appends the standing content-first rules.
func writePolicy(b *strings.Builder, corpus *types.Corpus, persona types.PersonaConfig) {
	n := len(corpus.Articles)
	b.WriteString("CONTENT-FIRST POLICY:\n")
	fmt.Fprintf(b, "- Search ALL %d articles in the directory above before any response; answer only from them.\n", n)
	b.WriteString("- Never give general answers when an article covers the topic; quote the articles' own data and findings.\n")
	b.WriteString("- Reference articles by number, title, author, and exact date.\n")
	fmt.Fprintf(b, "- Articles are ordered by feed position: #1 is the LATEST, #%d is the EARLIEST.\n", n)
	fmt.Fprintf(b, "- If no article covers the topic, say: %q\n",
		fmt.Sprintf("I don't see this topic in our %d research articles. Are you asking about something outside our %s research?", n, domain(persona)))
}

// writeFocus appends the confidently matched article in full.
func writeFocus(b *strings.Builder, a types.Article) {
	b.WriteString("\nFOCUS ARTICLE FOR THIS TURN:\n")
	fmt.Fprintf(b, "[#%d] %s — %s (%s)\n", a.Index, a.Title, a.Author, a.PublishedAt.Format("2006-01-02"))
	b.WriteString("Prefer this article's full text over the directory summaries for this turn.\n\n")
	b.WriteString("FULL TEXT:\n")
	b.WriteString(a.Body)
	b.WriteString("\n")
}

func language(p types.PersonaConfig) string {
	if p.Language == "" {
		return "English"
	}
	return p.Language
}

func domain(p types.PersonaConfig) string {
	if p.Domain == "" {
		return "AI"
	}
	return p.Domain
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
