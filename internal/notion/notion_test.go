package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"learntracker/internal/domain"
	"learntracker/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Path string
	Body map[string]any
}

type fakeNotion struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	results  int
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("Notion-Version") != apiVersion {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
		return
	}

	if f.status != 0 {
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object":  "error",
			"status":  f.status,
			"code":    "service_unavailable",
			"message": "try later",
		})
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/query"):
		results := make([]map[string]string, f.results)
		for i := range results {
			results[i] = map[string]string{"id": "page"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	case r.URL.Path == "/v1/pages":
		_, _ = w.Write([]byte(`{"object":"page","id":"page-1","url":"https://notion.so/page-1"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// redirectTransport sends every request to the test server.
type redirectTransport struct {
	target *url.URL
}

func (t redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	req.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestStore(t *testing.T, fake *fakeNotion, token string) *Store {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	client := &http.Client{Transport: redirectTransport{target: target}}
	return NewWithClient(client, token, "db-1", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExistsByURL(t *testing.T) {
	fake := &fakeNotion{results: 1}
	s := newTestStore(t, fake, "secret")

	exists, err := s.Exists(context.Background(), "https://example.com/a")

	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "/v1/databases/db-1/query", fake.requests[0].Path)

	filter := fake.requests[0].Body["filter"].(map[string]any)
	assert.Equal(t, "Tags", filter["property"])
	assert.Equal(t, map[string]any{"contains": identityTag("https://example.com/a")}, filter["multi_select"])
	assert.EqualValues(t, 1, fake.requests[0].Body["page_size"])
}

func TestExistsByHashTag(t *testing.T) {
	fake := &fakeNotion{}
	s := newTestStore(t, fake, "secret")

	exists, err := s.Exists(context.Background(), "sha256:0123456789abcdef")

	require.NoError(t, err)
	assert.False(t, exists)

	filter := fake.requests[0].Body["filter"].(map[string]any)
	assert.Equal(t, "Tags", filter["property"])
	assert.Equal(t, map[string]any{"contains": "repo-hash:0123456789abcdef"}, filter["multi_select"])
}

func TestWritePage(t *testing.T) {
	fake := &fakeNotion{}
	s := newTestStore(t, fake, "secret")

	err := s.Write(context.Background(), domain.SummaryRecord{
		Title:       "Title",
		Summary:     strings.Repeat("s", 2500),
		KeyInsights: []string{"one", "two"},
		Tags:        []string{"go", "a,b"},
		Source:      "Blog",
		Identity:    "sha256:00ff",
		Kind:        domain.KindRawText,
	})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	body := fake.requests[0].Body
	assert.Equal(t, "db-1", body["parent"].(map[string]any)["database_id"])

	properties := body["properties"].(map[string]any)
	assert.NotContains(t, properties, "URL")
	tags := properties["Tags"].(map[string]any)["multi_select"].([]any)
	names := make([]any, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.(map[string]any)["name"])
	}
	assert.Equal(t, []any{"go", "ab", "repo-hash:00ff"}, names)

	children := body["children"].([]any)
	require.Len(t, children, 5)

	callout := children[0].(map[string]any)["callout"].(map[string]any)
	assert.Len(t, callout["rich_text"].([]any), 2)
	assert.Equal(t, "divider", children[1].(map[string]any)["type"])
	assert.Equal(t, "heading_2", children[2].(map[string]any)["type"])
	assert.Equal(t, "bulleted_list_item", children[4].(map[string]any)["type"])
}

func TestWriteLinkSetsURL(t *testing.T) {
	fake := &fakeNotion{}
	s := newTestStore(t, fake, "secret")

	err := s.Write(context.Background(), domain.SummaryRecord{
		Title:       "T",
		Summary:     "S",
		KeyInsights: []string{"k"},
		Identity:    "https://example.com/a",
	})
	require.NoError(t, err)

	properties := fake.requests[0].Body["properties"].(map[string]any)
	assert.Equal(t, "https://example.com/a", properties["URL"].(map[string]any)["url"])
	assert.NotContains(t, properties, "Source")

	tags := properties["Tags"].(map[string]any)["multi_select"].([]any)
	require.Len(t, tags, 1)
	assert.Equal(t, identityTag("https://example.com/a"), tags[0].(map[string]any)["name"])
}

func TestIdentityTag(t *testing.T) {
	assert.Equal(t, "repo-hash:0123456789abcdef", identityTag("sha256:0123456789abcdef"))

	tag := identityTag("https://example.com/a")
	assert.True(t, strings.HasPrefix(tag, URLTagPrefix))
	assert.Len(t, tag, len(URLTagPrefix)+16)
	assert.Equal(t, tag, identityTag("https://example.com/a"))
	assert.NotEqual(t, tag, identityTag("https://example.com/b"))
}

func TestErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name          string
		fake          *fakeNotion
		token         string
		wantRetryable bool
	}{
		{name: "rate limited", fake: &fakeNotion{status: http.StatusTooManyRequests}, token: "secret", wantRetryable: true},
		{name: "server error", fake: &fakeNotion{status: http.StatusBadGateway}, token: "secret", wantRetryable: true},
		{name: "bad request", fake: &fakeNotion{status: http.StatusBadRequest}, token: "secret", wantRetryable: false},
		{name: "unauthorized", fake: &fakeNotion{}, token: "wrong", wantRetryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, tt.fake, tt.token)

			_, err := s.Exists(context.Background(), "https://example.com/a")

			require.Error(t, err)
			var storeErr *store.Error
			require.True(t, errors.As(err, &storeErr))
			assert.Equal(t, store.OpExists, storeErr.Op)
			assert.Equal(t, tt.wantRetryable, storeErr.Retryable)
			assert.Len(t, tt.fake.requests, 1)
		})
	}
}

func TestSplitRichText(t *testing.T) {
	assert.Len(t, splitRichText(""), 1)
	assert.Len(t, splitRichText(strings.Repeat("я", 2000)), 1)

	items := splitRichText(strings.Repeat("я", 4001))
	require.Len(t, items, 3)
	assert.Equal(t, "я", items[2].Text.Content)
}
