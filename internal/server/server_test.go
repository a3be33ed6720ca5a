// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/corpus-engine/internal/logutil"
	"github.com/pdiddy/corpus-engine/internal/prompt"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// fakeEngine implements Engine with canned answers.
type fakeEngine struct {
	mu         sync.Mutex
	greeting   string
	payload    prompt.Payload
	status     types.CorpusStatus
	avatar     types.AvatarSettings
	refreshErr error
	refreshes  int
}

func (f *fakeEngine) InitialGreeting() string { return f.greeting }

func (f *fakeEngine) ResponseContext(string) prompt.Payload {
	if f.payload == nil {
		return prompt.DigestOnly{Text: "digest"}
	}
	return f.payload
}

func (f *fakeEngine) CorpusStatus() types.CorpusStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeEngine) VoiceSettings() types.AvatarSettings { return f.avatar }

func (f *fakeEngine) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeEngine) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestServer(t *testing.T, cfg types.ServerConfig, eng Engine) *httptest.Server {
	t.Helper()
	srv := New(cfg, eng, logutil.New(io.Discard, "error", "text"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// scrapeMetrics fetches /metrics, returning "" on any failure so it can run
// inside require.Eventually closures.
func scrapeMetrics(baseURL string) string {
	resp, err := http.Get(baseURL + "/metrics")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

// --- routes ---

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, types.ServerConfig{}, &fakeEngine{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestGreeting(t *testing.T) {
	eng := &fakeEngine{greeting: "Acme AI research expert ready. What would you like to know?"}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Get(ts.URL + "/v1/greeting")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, eng.greeting, got["greeting"])
}

func TestContext_DigestOnly(t *testing.T) {
	eng := &fakeEngine{payload: prompt.DigestOnly{Text: "directory and policy"}}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Post(ts.URL+"/v1/context", "application/json",
		strings.NewReader(`{"utterance":"good morning"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got contextResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "digest_only", got.Kind)
	assert.Equal(t, "directory and policy", got.Instructions)
	assert.Nil(t, got.Article)
}

func TestContext_ArticleAnchored(t *testing.T) {
	eng := &fakeEngine{payload: prompt.ArticleAnchored{
		Text: "directory plus focus",
		Article: types.Article{
			Index:  3,
			Title:  "Vector Stores in Production",
			Author: "Rita Book",
			URL:    "https://feed.test/p/3",
			Body:   "full text",
		},
	}}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Post(ts.URL+"/v1/context", "application/json",
		strings.NewReader(`{"utterance":"tell me about vector stores"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got contextResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "article_anchored", got.Kind)
	assert.Equal(t, "directory plus focus", got.Instructions)
	require.NotNil(t, got.Article)
	assert.Equal(t, 3, got.Article.Index)
	assert.Equal(t, "Vector Stores in Production", got.Article.Title)
	assert.Equal(t, "Rita Book", got.Article.Author)
	assert.Equal(t, "https://feed.test/p/3", got.Article.URL)
}

func TestContext_MalformedBody(t *testing.T) {
	ts := newTestServer(t, types.ServerConfig{}, &fakeEngine{})

	resp, err := http.Post(ts.URL+"/v1/context", "application/json",
		strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, got["error"])
}

func TestContext_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, types.ServerConfig{}, &fakeEngine{})

	resp, err := http.Get(ts.URL + "/v1/context")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	want := types.CorpusStatus{
		ArticleCount: 12,
		Degraded:     true,
		FetchedAt:    time.Date(2026, 7, 15, 10, 30, 0, 0, time.UTC),
		Dropped:      2,
		Source:       types.SourceArchive,
		Message:      "Knowledge base loaded.",
	}
	ts := newTestServer(t, types.ServerConfig{}, &fakeEngine{status: want})

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got types.CorpusStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, want.ArticleCount, got.ArticleCount)
	assert.Equal(t, want.Degraded, got.Degraded)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, want.Dropped, got.Dropped)
	assert.Equal(t, want.Source, got.Source)
	assert.Equal(t, want.Message, got.Message)
}

func TestAvatar(t *testing.T) {
	eng := &fakeEngine{avatar: types.AvatarSettings{Voice: "nova", Speed: 0.9, Image: "assets/ada.png"}}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Get(ts.URL + "/v1/avatar")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got types.AvatarSettings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, eng.avatar, got)
}

// --- refresh ---

func TestRefresh_NoTokenConfigured(t *testing.T) {
	eng := &fakeEngine{}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Post(ts.URL+"/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "refresh started", got["status"])
	require.Eventually(t, func() bool { return eng.refreshCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRefresh_RequiresToken(t *testing.T) {
	eng := &fakeEngine{}
	ts := newTestServer(t, types.ServerConfig{AdminToken: "sekrit"}, eng)

	resp, err := http.Post(ts.URL+"/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/refresh", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, eng.refreshCount())

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/v1/refresh", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool { return eng.refreshCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRefresh_RecordsFailure(t *testing.T) {
	eng := &fakeEngine{refreshErr: errors.New("feed down")}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Post(ts.URL+"/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return strings.Contains(scrapeMetrics(ts.URL), `corpus_refreshes_total{outcome="error"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

// --- observability ---

func TestMetricsEndpoint(t *testing.T) {
	eng := &fakeEngine{status: types.CorpusStatus{ArticleCount: 7}}
	ts := newTestServer(t, types.ServerConfig{}, eng)

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, scrapeMetrics(ts.URL), "corpus_articles 7")
	require.Eventually(t, func() bool {
		return strings.Contains(scrapeMetrics(ts.URL),
			`http_requests_total{method="GET",path="/v1/status",status="200"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, types.ServerConfig{}, &fakeEngine{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc123", resp.Header.Get("X-Request-ID"))
}

// --- lifecycle ---

func TestRun_ShutdownOnCancel(t *testing.T) {
	srv := New(types.ServerConfig{Addr: "127.0.0.1:0"}, &fakeEngine{},
		logutil.New(io.Discard, "error", "text"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_CronRefresh(t *testing.T) {
	eng := &fakeEngine{}
	srv := New(types.ServerConfig{Addr: "127.0.0.1:0", RefreshCron: "@every 50ms"}, eng,
		logutil.New(io.Discard, "error", "text"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return eng.refreshCount() >= 1 },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BadCronSpec(t *testing.T) {
	srv := New(types.ServerConfig{Addr: "127.0.0.1:0", RefreshCron: "not a cron spec"}, &fakeEngine{},
		logutil.New(io.Discard, "error", "text"))

	err := srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduling refresh")
}
