package extract

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learntracker/internal/domain"
)

const articleHTML = `<!doctype html>
<html>
<head>
  <title>Fallback title</title>
  <meta property="og:title" content="Understanding Go Channels">
  <meta property="og:site_name" content="Go Blog">
  <script>var tracking = 1;</script>
</head>
<body>
  <nav>Home | About</nav>
  <header>Site header</header>
  <article>
    <h1>Understanding Go Channels</h1>
    <p>Channels connect   concurrent goroutines.</p>
    <p>You can send values into channels from one goroutine and receive them in another.</p>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLinkIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://example.com/a", want: "https://example.com/a"},
		{in: " https://example.com/a#section ", want: "https://example.com/a"},
		{in: "https://example.com/a?utm_source=x&utm_medium=y", want: "https://example.com/a"},
		{in: "https://example.com/a?id=7&utm_campaign=z", want: "https://example.com/a?id=7"},
		{in: "not a url", want: "not a url"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LinkIdentity(tt.in), tt.in)
	}
}

func TestTextIdentity(t *testing.T) {
	id := TextIdentity("hello world")

	assert.True(t, strings.HasPrefix(id, "sha256:"))
	assert.Len(t, id, len("sha256:")+16)
	assert.Equal(t, id, TextIdentity("  hello world \n"))
	assert.NotEqual(t, id, TextIdentity("hello world!"))
}

func TestIsArticleURL(t *testing.T) {
	assert.True(t, IsArticleURL("https://example.com/posts/go-channels"))
	assert.False(t, IsArticleURL("https://ex.com/a"))
	assert.False(t, IsArticleURL("ftp://example.com/files/archive.tar"))
	assert.False(t, IsArticleURL("https://example.com/unsubscribe?id=123"))
	assert.False(t, IsArticleURL("https://cdn.example.com/images/banner.png"))
	assert.False(t, IsArticleURL("https://twitter.com/someone/status/1"))
}

func TestLinkFetcher(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	fetcher := NewLinkFetcher(server.Client())

	item, err := fetcher.Fetch(context.Background(), server.URL+"/post?utm_source=feed")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/post", item.Identity)
	assert.Equal(t, domain.KindLink, item.Kind)
	assert.Equal(t, "Understanding Go Channels", item.TitleHint)
	assert.Equal(t, "Go Blog", item.SourceHint)
	assert.Equal(t,
		"Understanding Go Channels\n\nChannels connect concurrent goroutines.\n\n"+
			"You can send values into channels from one goroutine and receive them in another.",
		item.RawText)
	assert.NotContains(t, item.RawText, "tracking")
	assert.NotContains(t, item.RawText, "Copyright")

	_, err = fetcher.Fetch(context.Background(), server.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLinkFetcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewLinkFetcher(server.Client())

	item, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, server.URL+"/missing", item.Identity)

	_, err = fetcher.Fetch(context.Background(), server.URL+"/empty")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Feed</title>
<item><title>Old</title><link>http://` + r.Host + `/articles/old-article</link><pubDate>Mon, 02 Mar 2026 09:00:00 GMT</pubDate></item>
<item><title>New</title><link>http://` + r.Host + `/articles/new-article</link><pubDate>Tue, 03 Mar 2026 09:00:00 GMT</pubDate></item>
<item><title>Pic</title><link>http://` + r.Host + `/images/picture.png</link></item>
</channel></rss>`))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(articleHTML))
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	longText := "# Notes on testing\n" + strings.Repeat("Table-driven tests keep cases readable. ", 5)

	writeFile(t, dir, "a-links.md", "Read "+server.URL+"/articles/first and "+server.URL+"/broken. Again: "+server.URL+"/articles/first")
	writeFile(t, dir, "b-notes.txt", longText)
	writeFile(t, dir, "c-short.txt", "too short")
	writeFile(t, dir, "sub/d.feeds", "# feeds\n"+server.URL+"/feed.xml\n")
	writeFile(t, dir, "e-ignored.json", "{}")
	writeFile(t, dir, ".hidden.txt", longText)

	resolver, err := NewResolver(Options{FetchTimeout: 5 * time.Second, RSSMaxEntries: 1}, discardLogger())
	require.NoError(t, err)

	extractions, err := resolver.Resolve(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, extractions, 4)

	assert.NoError(t, extractions[0].Err)
	assert.Equal(t, server.URL+"/articles/first", extractions[0].Item.Identity)
	assert.Equal(t, filepath.Join(dir, "a-links.md"), extractions[0].Item.Origin)

	assert.Error(t, extractions[1].Err)
	assert.Equal(t, server.URL+"/broken", extractions[1].Item.Identity)

	assert.NoError(t, extractions[2].Err)
	assert.Equal(t, domain.KindRawText, extractions[2].Item.Kind)
	assert.Equal(t, "Notes on testing", extractions[2].Item.TitleHint)
	assert.Equal(t, TextIdentity(longText), extractions[2].Item.Identity)

	assert.NoError(t, extractions[3].Err)
	assert.Equal(t, server.URL+"/articles/new-article", extractions[3].Item.Identity)
	assert.Equal(t, server.URL+"/feed.xml", extractions[3].Item.Origin)
}

func TestResolveMissingDirectory(t *testing.T) {
	resolver, err := NewResolver(Options{FetchTimeout: time.Second}, discardLogger())
	require.NoError(t, err)

	extractions, err := resolver.Resolve(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)

	require.NoError(t, err)
	assert.Empty(t, extractions)
}

func TestReadPDFMissingFile(t *testing.T) {
	item, err := ReadPDF(filepath.Join(t.TempDir(), "Some Paper.pdf"))

	require.Error(t, err)
	assert.Equal(t, domain.KindPDFText, item.Kind)
	assert.Equal(t, "Some Paper", item.TitleHint)
}

func writeFile(t *testing.T, dir string, name string, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
