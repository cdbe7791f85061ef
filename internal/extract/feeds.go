package extract

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const fetchFeedsMaxConcurrencyGrowthFactor = 4

// FeedEntry is one article link taken from an RSS or Atom feed.
type FeedEntry struct {
	URL       string
	Title     string
	FeedURL   string
	FeedTitle string
}

type FeedReader struct {
	parser     *gofeed.Parser
	maxEntries int
	log        *slog.Logger
}

func NewFeedReader(parser *gofeed.Parser, maxEntries int, log *slog.Logger) *FeedReader {
	return &FeedReader{
		parser:     parser,
		maxEntries: maxEntries,
		log:        log,
	}
}

// Entries reads every feed concurrently and returns up to maxEntries article
// links per feed, feeds in the given order. A feed that fails to parse is
// logged and skipped.
func (r *FeedReader) Entries(ctx context.Context, feedURLs []string) []FeedEntry {
	if len(feedURLs) == 0 {
		return nil
	}

	results := make([][]FeedEntry, len(feedURLs))

	var wg sync.WaitGroup
	concurrency := min(runtime.NumCPU()*fetchFeedsMaxConcurrencyGrowthFactor, len(feedURLs))
	semCh := make(chan struct{}, concurrency)

	for i, feedURL := range feedURLs {
		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			entries, err := r.read(ctx, feedURL)
			if err != nil {
				r.log.WarnContext(ctx, "Failed to read feed",
					"error", err,
					"feedURL", feedURL)
				return
			}

			results[i] = entries
		})
	}

	wg.Wait()

	var entries []FeedEntry
	for _, feedEntries := range results {
		entries = append(entries, feedEntries...)
	}

	return entries
}

func (r *FeedReader) read(ctx context.Context, feedURL string) ([]FeedEntry, error) {
	feedURL = strings.TrimSpace(feedURL)

	parsed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	feedTitle := strings.TrimSpace(parsed.Title)
	if feedTitle == "" {
		feedTitle = feedURL
	}

	items := slices.Clone(parsed.Items)
	slices.SortStableFunc(items, func(a, b *gofeed.Item) int {
		return publishedTime(b).Compare(publishedTime(a))
	})

	var entries []FeedEntry
	for _, item := range items {
		if r.maxEntries > 0 && len(entries) == r.maxEntries {
			break
		}

		link := strings.TrimSpace(item.Link)
		if !IsArticleURL(link) {
			r.log.DebugContext(ctx, "Skipping feed item",
				"feedURL", feedURL,
				"itemURL", link,
				"itemTitle", item.Title)
			continue
		}

		entries = append(entries, FeedEntry{
			URL:       link,
			Title:     strings.TrimSpace(item.Title),
			FeedURL:   feedURL,
			FeedTitle: feedTitle,
		})
	}

	return entries, nil
}

func publishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
