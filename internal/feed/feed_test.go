// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// --- fixtures ---

// testPost mirrors the feed's post JSON shape.
type testPost struct {
	Title        string              `json:"title"`
	PostDate     string              `json:"post_date"`
	CanonicalURL string              `json:"canonical_url"`
	Description  string              `json:"description"`
	BodyHTML     string              `json:"body_html"`
	Bylines      []map[string]string `json:"publishedBylines"`
}

func makePosts(n int) []testPost {
	posts := make([]testPost, n)
	for i := range posts {
		no := i + 1
		posts[i] = testPost{
			Title:        fmt.Sprintf("Post %d", no),
			PostDate:     "2026-07-15T10:00:00.000Z",
			CanonicalURL: fmt.Sprintf("https://feed.test/p/%d", no),
			Description:  "A short description of the post.",
			BodyHTML:     fmt.Sprintf("<p>Body of post %d, padded with enough words to clear the stub threshold used by these tests.</p>", no),
			Bylines:      []map[string]string{{"name": "Rita Book"}},
		}
	}
	return posts
}

// feedServer serves posts in offset/limit pages, failing any request whose
// offset appears in failOffsets. Requested offsets are recorded.
type feedServer struct {
	*httptest.Server
	mu      sync.Mutex
	offsets []int
}

func newFeedServer(posts []testPost, failOffsets map[int]bool) *feedServer {
	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		fs.mu.Lock()
		fs.offsets = append(fs.offsets, offset)
		fs.mu.Unlock()

		if failOffsets[offset] {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		end := offset + limit
		if offset > len(posts) {
			offset = len(posts)
		}
		if end > len(posts) {
			end = len(posts)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(posts[offset:end])
	}))
	return fs
}

func (fs *feedServer) seenOffsets() []int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]int(nil), fs.offsets...)
}

func feedCfg(endpoint string) types.FeedConfig {
	return types.FeedConfig{
		Endpoint:        endpoint,
		MaxArticles:     50,
		PageSize:        10,
		PageRetries:     1,
		PageConcurrency: 2,
		MinBodyChars:    20,
		FallbackAuthor:  "Unknown Author",
	}
}

// --- Fetch: single page ---

func TestFetchSinglePage(t *testing.T) {
	fs := newFeedServer(makePosts(7), nil)
	defer fs.Close()

	corpus, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 7 || corpus.TotalCount != 7 {
		t.Fatalf("len = %d, TotalCount = %d, want 7", len(corpus.Articles), corpus.TotalCount)
	}
	if corpus.Degraded {
		t.Error("Degraded = true, want false")
	}
	if corpus.Source != types.SourceAPI {
		t.Errorf("Source = %q, want %q", corpus.Source, types.SourceAPI)
	}
	if corpus.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set")
	}

	for i, a := range corpus.Articles {
		if a.Index != i+1 {
			t.Errorf("Articles[%d].Index = %d, want %d", i, a.Index, i+1)
		}
	}

	first := corpus.Articles[0]
	if first.Title != "Post 1" {
		t.Errorf("Title = %q, want %q (feed order preserved)", first.Title, "Post 1")
	}
	if first.Author != "Rita Book" {
		t.Errorf("Author = %q, want %q", first.Author, "Rita Book")
	}
	if strings.Contains(first.Body, "<p>") {
		t.Errorf("Body = %q, HTML should be stripped", first.Body)
	}
	if first.URL != "https://feed.test/p/1" {
		t.Errorf("URL = %q", first.URL)
	}
	if first.PublishedAt.IsZero() {
		t.Error("PublishedAt should parse from post_date")
	}
}

func TestFetchEmptyFeed(t *testing.T) {
	fs := newFeedServer(nil, nil)
	defer fs.Close()

	corpus, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 0 || corpus.TotalCount != 0 {
		t.Errorf("len = %d, TotalCount = %d, want 0", len(corpus.Articles), corpus.TotalCount)
	}
	if corpus.Degraded {
		t.Error("an empty but healthy feed is not degraded")
	}
}

// --- Fetch: pagination ---

func TestFetchPaginatesUntilExhaustion(t *testing.T) {
	fs := newFeedServer(makePosts(25), nil)
	defer fs.Close()

	corpus, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 25 {
		t.Fatalf("len = %d, want 25", len(corpus.Articles))
	}

	// Order must survive the page boundaries.
	if corpus.Articles[9].Title != "Post 10" || corpus.Articles[10].Title != "Post 11" {
		t.Errorf("page boundary order broken: [9] = %q, [10] = %q",
			corpus.Articles[9].Title, corpus.Articles[10].Title)
	}
	last := corpus.Articles[24]
	if last.Title != "Post 25" || last.Index != 25 {
		t.Errorf("last article = %q with index %d, want Post 25 / 25", last.Title, last.Index)
	}
}

func TestFetchStopsAtMaxArticles(t *testing.T) {
	fs := newFeedServer(makePosts(40), nil)
	defer fs.Close()

	cfg := feedCfg(fs.URL)
	cfg.MaxArticles = 20
	corpus, err := Fetch(context.Background(), fs.Client(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 20 {
		t.Fatalf("len = %d, want 20", len(corpus.Articles))
	}
	for _, off := range fs.seenOffsets() {
		if off >= 20 {
			t.Errorf("requested offset %d beyond MaxArticles", off)
		}
	}
}

func TestFetchTruncatesMidPage(t *testing.T) {
	fs := newFeedServer(makePosts(40), nil)
	defer fs.Close()

	cfg := feedCfg(fs.URL)
	cfg.MaxArticles = 15
	corpus, err := Fetch(context.Background(), fs.Client(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 15 {
		t.Fatalf("len = %d, want 15", len(corpus.Articles))
	}
	last := corpus.Articles[14]
	if last.Title != "Post 15" || last.Index != 15 {
		t.Errorf("last article = %q with index %d, want Post 15 / 15", last.Title, last.Index)
	}
}

// --- Fetch: failure modes ---

func TestFetchFirstPageFatal(t *testing.T) {
	fs := newFeedServer(nil, map[int]bool{0: true})
	defer fs.Close()

	_, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err == nil {
		t.Fatal("expected error when the first page never succeeds")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestFetchLaterPageFailureDegrades(t *testing.T) {
	fs := newFeedServer(makePosts(30), map[int]bool{10: true})
	defer fs.Close()

	cfg := feedCfg(fs.URL)
	cfg.MaxArticles = 30
	corpus, err := Fetch(context.Background(), fs.Client(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v (later page failures must not be fatal)", err)
	}
	if len(corpus.Articles) == 0 {
		t.Fatal("corpus should be non-empty after a later page failure")
	}
	if !corpus.Degraded {
		t.Error("Degraded = false, want true")
	}
	if corpus.PagesFailed != 1 {
		t.Errorf("PagesFailed = %d, want 1", corpus.PagesFailed)
	}
	// Page 3 succeeded but sits past the hole; splicing it in would shift
	// every ordinal after the failed page.
	if len(corpus.Articles) != 10 {
		t.Errorf("len = %d, want 10 (corpus cut at last good page)", len(corpus.Articles))
	}
}

// --- Fetch: normalization ---

func TestFetchDropsStubRecords(t *testing.T) {
	posts := makePosts(3)
	posts[1].BodyHTML = "<p>tiny</p>"
	posts[1].Description = "tiny"
	fs := newFeedServer(posts, nil)
	defer fs.Close()

	corpus, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 2 {
		t.Fatalf("len = %d, want 2", len(corpus.Articles))
	}
	if corpus.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", corpus.Dropped)
	}
	// Indices stay dense after the drop.
	if corpus.Articles[1].Title != "Post 3" || corpus.Articles[1].Index != 2 {
		t.Errorf("Articles[1] = %q with index %d, want Post 3 / 2",
			corpus.Articles[1].Title, corpus.Articles[1].Index)
	}
}

func TestFetchAuthorFallback(t *testing.T) {
	posts := makePosts(2)
	posts[0].Bylines = nil
	fs := newFeedServer(posts, nil)
	defer fs.Close()

	corpus, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if corpus.Articles[0].Author != "Unknown Author" {
		t.Errorf("Author = %q, want fallback", corpus.Articles[0].Author)
	}
	if corpus.Articles[1].Author != "Rita Book" {
		t.Errorf("Author = %q, want %q", corpus.Articles[1].Author, "Rita Book")
	}
}

func TestFetchDescriptionFallback(t *testing.T) {
	posts := makePosts(1)
	posts[0].BodyHTML = ""
	posts[0].Description = "<p>A description long enough to stand in for the missing body of this post.</p>"
	fs := newFeedServer(posts, nil)
	defer fs.Close()

	corpus, err := Fetch(context.Background(), fs.Client(), feedCfg(fs.URL), io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(corpus.Articles) != 1 {
		t.Fatalf("len = %d, want 1", len(corpus.Articles))
	}
	if !strings.Contains(corpus.Articles[0].Body, "stand in for the missing body") {
		t.Errorf("Body = %q, want description text", corpus.Articles[0].Body)
	}
}

func TestFetchSendsAuthToken(t *testing.T) {
	var mu sync.Mutex
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	cfg := feedCfg(ts.URL)
	cfg.AuthToken = "s3cret"
	if _, err := Fetch(context.Background(), ts.Client(), cfg, io.Discard); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer s3cret")
	}
}

// --- RSS fallback ---

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
<title>Field Notes</title>
<item>
<title>Latest Findings</title>
<link>https://feed.test/p/latest-findings</link>
<pubDate>Thu, 06 Aug 2026 09:00:00 GMT</pubDate>
<dc:creator>Ann Archer</dc:creator>
<description>Short summary.</description>
<content:encoded><![CDATA[<p>The full encoded body of the latest findings post, long enough to clear the stub threshold.</p>]]></content:encoded>
</item>
<item>
<title>Earlier Findings</title>
<link>https://feed.test/p/earlier-findings</link>
<pubDate>Wed, 05 Aug 2026 09:00:00 GMT</pubDate>
<dc:creator>Ann Archer</dc:creator>
<description><![CDATA[<p>Only a description here, but still long enough to keep the record around.</p>]]></description>
</item>
</channel>
</rss>`

func TestFetchFallsBackToRSS(t *testing.T) {
	api := newFeedServer(nil, map[int]bool{0: true})
	defer api.Close()
	rss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer rss.Close()

	cfg := feedCfg(api.URL)
	cfg.RSSURL = rss.URL
	corpus, err := Fetch(context.Background(), api.Client(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if corpus.Source != types.SourceRSS {
		t.Errorf("Source = %q, want %q", corpus.Source, types.SourceRSS)
	}
	if !corpus.Degraded {
		t.Error("RSS fallback corpus must be Degraded")
	}
	if len(corpus.Articles) != 2 {
		t.Fatalf("len = %d, want 2", len(corpus.Articles))
	}

	a := corpus.Articles[0]
	if a.Title != "Latest Findings" || a.Index != 1 {
		t.Errorf("Articles[0] = %q with index %d", a.Title, a.Index)
	}
	if a.Author != "Ann Archer" {
		t.Errorf("Author = %q, want dc:creator value", a.Author)
	}
	if !strings.Contains(a.Body, "full encoded body") || strings.Contains(a.Body, "<p>") {
		t.Errorf("Body = %q, want stripped content:encoded text", a.Body)
	}
	if a.PublishedAt.IsZero() {
		t.Error("PublishedAt should parse from pubDate")
	}

	// Second item has no content:encoded and falls back to description.
	if !strings.Contains(corpus.Articles[1].Body, "Only a description") {
		t.Errorf("Body = %q, want description text", corpus.Articles[1].Body)
	}
}

func TestFetchRSSAlsoFailing(t *testing.T) {
	api := newFeedServer(nil, map[int]bool{0: true})
	defer api.Close()
	rss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer rss.Close()

	cfg := feedCfg(api.URL)
	cfg.RSSURL = rss.URL
	_, err := Fetch(context.Background(), api.Client(), cfg, io.Discard)
	if err == nil {
		t.Fatal("expected error when both the feed and RSS are down")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}
