// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed ingests articles from a paginated JSON content feed and
// normalizes them into a Corpus. The feed returns posts most recent first;
// that ordering is preserved through pagination, normalization, and
// indexing, never re-sorted.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// ErrSourceUnavailable reports that no corpus could be fetched at all: the
// first feed page never succeeded and no fallback produced records. Callers
// check it with errors.Is.
var ErrSourceUnavailable = errors.New("article source unavailable")

// Substack-style posts endpoints cap the limit parameter at 50.
const maxPageSize = 50

// Fetch collects up to cfg.MaxArticles records from the configured feed
// endpoint and normalizes them into a Corpus.
//
// The first page is fetched alone because it decides the failure mode: if it
// never succeeds the source is unavailable, and Fetch falls back to
// cfg.RSSURL when set or returns ErrSourceUnavailable. Remaining pages are
// fetched with bounded concurrency and reassembled in feed order; a failure
// there cuts the corpus at the last good page and marks it Degraded instead
// of failing. Progress and warnings go to w.
func Fetch(ctx context.Context, client *http.Client, cfg types.FeedConfig, w io.Writer) (types.Corpus, error) {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	maxArticles := cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 50
	}

	first, err := fetchPage(ctx, client, cfg, 0, pageSize)
	if err != nil {
		fmt.Fprintf(w, "warning: feed page 1 failed: %v\n", err)
		if cfg.RSSURL != "" {
			fmt.Fprintln(w, "falling back to RSS feed")
			return fetchRSS(ctx, client, cfg, w)
		}
		return types.Corpus{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	fmt.Fprintf(w, "page 1: %d posts\n", len(first))

	raw := first
	degraded := false
	pagesFailed := 0

	if len(first) == pageSize && len(raw) < maxArticles {
		extra := (maxArticles - len(raw) + pageSize - 1) / pageSize
		results := make([]pageResult, extra)

		concurrency := cfg.PageConcurrency
		if concurrency <= 0 {
			concurrency = 2
		}
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for i := 0; i < extra; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				recs, err := fetchPage(ctx, client, cfg, pageSize*(i+1), pageSize)
				results[i] = pageResult{records: recs, err: err}
			}(i)
		}
		wg.Wait()

		// Reassemble in feed order. A failed page would leave a gap and
		// shift every later ordinal, so the corpus is cut at the last good
		// page instead of skipping over the hole.
		for i, pr := range results {
			if pr.err != nil {
				fmt.Fprintf(w, "warning: feed page %d failed: %v\n", i+2, pr.err)
				pagesFailed++
				degraded = true
				break
			}
			fmt.Fprintf(w, "page %d: %d posts\n", i+2, len(pr.records))
			raw = append(raw, pr.records...)
			if len(pr.records) < pageSize {
				break
			}
		}
	}

	if len(raw) > maxArticles {
		raw = raw[:maxArticles]
	}

	records := make([]record, 0, len(raw))
	for _, r := range raw {
		records = append(records, r.toRecord())
	}
	articles, dropped := normalizeAll(ctx, client, cfg, records)
	fmt.Fprintf(w, "fetched %d articles (%d dropped)\n", len(articles), dropped)

	return types.Corpus{
		Articles:    articles,
		FetchedAt:   time.Now().UTC(),
		TotalCount:  len(articles),
		Degraded:    degraded,
		Dropped:     dropped,
		PagesFailed: pagesFailed,
		Source:      types.SourceAPI,
	}, nil
}

type pageResult struct {
	records []feedRecord
	err     error
}

// fetchPage requests one page of posts with bounded retries.
func fetchPage(ctx context.Context, client *http.Client, cfg types.FeedConfig, offset, limit int) ([]feedRecord, error) {
	params := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	reqURL := cfg.Endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.PageRetries)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	var records []feedRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("parsing feed response: %w", err)
	}
	return records, nil
}

// Substack-style post JSON structures.
type feedRecord struct {
	Title        string       `json:"title"`
	Subtitle     string       `json:"subtitle"`
	PostDate     string       `json:"post_date"`
	CanonicalURL string       `json:"canonical_url"`
	Description  string       `json:"description"`
	BodyHTML     string       `json:"body_html"`
	Bylines      []feedByline `json:"publishedBylines"`
}

type feedByline struct {
	Name string `json:"name"`
}

func (r feedRecord) toRecord() record {
	rec := record{
		Title:    r.Title,
		Date:     r.PostDate,
		URL:      r.CanonicalURL,
		BodyHTML: r.BodyHTML,
		Summary:  r.Description,
	}
	if len(r.Bylines) > 0 {
		rec.Author = r.Bylines[0].Name
	}
	return rec
}
