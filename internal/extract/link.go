package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"learntracker/internal/domain"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	linkCacheMaxEntries = 1024
	linkCacheTTL        = 6 * time.Hour
	maxPageBytes        = 8 << 20
)

var (
	ErrNoContent = errors.New("page has no readable text")

	noiseSelectors   = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"
	contentSelectors = []string{"article", "main", "body"}
)

type page struct {
	title  string
	source string
	text   string
}

// LinkFetcher downloads pages and reduces them to readable text. Results are
// cached by URL so one link listed in several inputs is fetched once per run.
type LinkFetcher struct {
	client *http.Client
	cache  *expirable.LRU[string, page]
}

func NewLinkFetcher(client *http.Client) *LinkFetcher {
	return &LinkFetcher{
		client: client,
		cache:  expirable.NewLRU[string, page](linkCacheMaxEntries, nil, linkCacheTTL),
	}
}

// Fetch returns a link item for rawURL with extracted text, title and source.
func (f *LinkFetcher) Fetch(ctx context.Context, rawURL string) (domain.InputItem, error) {
	item := domain.InputItem{
		Identity: LinkIdentity(rawURL),
		Kind:     domain.KindLink,
	}

	p, ok := f.cache.Get(item.Identity)
	if !ok {
		var err error
		if p, err = f.fetch(ctx, rawURL); err != nil {
			return item, err
		}
		f.cache.Add(item.Identity, p)
	}

	item.RawText = p.text
	item.TitleHint = p.title
	item.SourceHint = p.source

	return item, nil
}

func (f *LinkFetcher) fetch(ctx context.Context, rawURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req) //nolint:gosec // URLs come from the operator's inputs
	if err != nil {
		return page{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return page{}, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return page{}, fmt.Errorf("create document from reader: %w", err)
	}

	p := page{
		title:  pageTitle(doc),
		source: pageSource(doc, resp.Request.URL),
		text:   pageText(doc),
	}
	if p.text == "" {
		return page{}, ErrNoContent
	}

	return p, nil
}

func pageTitle(doc *goquery.Document) string {
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		if title := strings.TrimSpace(content); title != "" {
			return title
		}
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

func pageSource(doc *goquery.Document, u *url.URL) string {
	if content, ok := doc.Find("meta[property='og:site_name']").Attr("content"); ok {
		if site := strings.TrimSpace(content); site != "" {
			return site
		}
	}

	if u == nil {
		return ""
	}

	return strings.TrimPrefix(u.Hostname(), "www.")
}

func pageText(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()

	for _, selector := range contentSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}

		if text := blockText(selection); text != "" {
			return text
		}
	}

	return ""
}

// blockText joins the text of block elements with blank lines so that the
// chunker can cut on paragraph boundaries.
func blockText(selection *goquery.Selection) string {
	var paragraphs []string

	blocks := selection.Find("p, h1, h2, h3, h4, h5, h6, li, pre, blockquote, td")
	blocks.Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote, td").Length() > 0 {
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return collapseSpaces(selection.Text())
	}

	return strings.Join(paragraphs, "\n\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
