// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// record is the source-neutral shape both the JSON feed and the RSS fallback
// reduce to before normalization.
type record struct {
	Title    string
	Author   string
	Date     string
	URL      string
	BodyHTML string
	Summary  string
}

// normalizeAll converts raw records into Articles, assigning 1-based indices
// in feed order. Records that fail normalization are dropped and counted,
// never fatal.
func normalizeAll(ctx context.Context, client *http.Client, cfg types.FeedConfig, records []record) ([]types.Article, int) {
	minBody := cfg.MinBodyChars
	if minBody <= 0 {
		minBody = 80
	}
	fallbackAuthor := cfg.FallbackAuthor
	if fallbackAuthor == "" {
		fallbackAuthor = "Unknown Author"
	}

	var articles []types.Article
	dropped := 0
	for _, rec := range records {
		a, ok := normalize(ctx, client, cfg, rec, minBody, fallbackAuthor)
		if !ok {
			dropped++
			continue
		}
		a.Index = len(articles) + 1
		articles = append(articles, a)
	}
	return articles, dropped
}

// normalize builds one Article from a raw record. The body is the stripped
// body HTML, falling back to the stripped summary. Records whose body is
// still under minBody runes after optional recovery are stubs, not articles,
// and are rejected, as are records with no title.
func normalize(ctx context.Context, client *http.Client, cfg types.FeedConfig, rec record, minBody int, fallbackAuthor string) (types.Article, bool) {
	body := stripHTML(rec.BodyHTML)
	if body == "" {
		body = stripHTML(rec.Summary)
	}

	if utf8.RuneCountInString(body) < minBody && cfg.RecoverBodies && rec.URL != "" {
		if recovered, err := recoverBody(ctx, client, rec.URL, cfg.UserAgent); err == nil && len(recovered) > len(body) {
			body = recovered
		}
	}
	if utf8.RuneCountInString(body) < minBody {
		return types.Article{}, false
	}

	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return types.Article{}, false
	}

	author := strings.TrimSpace(rec.Author)
	if author == "" {
		author = fallbackAuthor
	}

	return types.Article{
		Title:       title,
		Author:      author,
		PublishedAt: parseDate(rec.Date),
		URL:         rec.URL,
		Body:        body,
	}, true
}

// stripHTML reduces an HTML fragment to plain text with whitespace runs
// collapsed to single spaces. Entities are unescaped by the parser.
func stripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

// collapse trims and squeezes all whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Feed timestamp layouts, in the order tried. The JSON feed uses RFC 3339
// with milliseconds; RSS uses RFC 1123 variants.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// parseDate parses a feed timestamp. Failure is not fatal: corpus ordering
// comes from feed position, not dates, so a zero time is acceptable.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// recoverBody fetches the article page and extracts readable text. The feed
// serves truncated body HTML for some posts; the page itself usually carries
// the full text.
func recoverBody(ctx context.Context, client *http.Client, pageURL, userAgent string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing article URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article page returned HTTP %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extracting readable content: %w", err)
	}
	return collapse(article.TextContent), nil
}
