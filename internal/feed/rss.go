// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// fetchRSS builds a corpus from the RSS fallback feed. RSS carries only the
// most recent posts (around 20), so the result is always marked Degraded.
func fetchRSS(ctx context.Context, client *http.Client, cfg types.FeedConfig, w io.Writer) (types.Corpus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.RSSURL, nil)
	if err != nil {
		return types.Corpus{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.PageRetries)
	if err != nil {
		return types.Corpus{}, fmt.Errorf("%w: rss request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Corpus{}, fmt.Errorf("%w: rss returned HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return types.Corpus{}, fmt.Errorf("%w: parsing rss: %v", ErrSourceUnavailable, err)
	}

	items := doc.Channel.Items
	maxArticles := cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 50
	}
	if len(items) > maxArticles {
		items = items[:maxArticles]
	}
	fmt.Fprintf(w, "rss: %d items\n", len(items))

	records := make([]record, 0, len(items))
	for _, it := range items {
		records = append(records, it.toRecord())
	}
	articles, dropped := normalizeAll(ctx, client, cfg, records)
	fmt.Fprintf(w, "fetched %d articles from rss (%d dropped)\n", len(articles), dropped)

	return types.Corpus{
		Articles:   articles,
		FetchedAt:  time.Now().UTC(),
		TotalCount: len(articles),
		Degraded:   true,
		Dropped:    dropped,
		Source:     types.SourceRSS,
	}, nil
}

// RSS 2.0 feed XML structures. The feed uses the Dublin Core creator and
// content:encoded extensions.
type rssDocument struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Description string `xml:"description"`
	Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
}

func (it rssItem) toRecord() record {
	return record{
		Title:    it.Title,
		Author:   it.Creator,
		Date:     it.PubDate,
		URL:      it.Link,
		BodyHTML: it.Encoded,
		Summary:  it.Description,
	}
}
