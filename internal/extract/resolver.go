package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"

	"learntracker/internal/domain"
)

const (
	minRawTextLength     = 120
	fetchLinksMaxWorkers = 8
	feedListExtension    = ".feeds"
)

var textExtensions = []string{".txt", ".md", ".url"}

type Options struct {
	FetchTimeout  time.Duration
	RSSMaxEntries int
}

type linkJob struct {
	url       string
	origin    string
	titleHint string
}

// Resolver turns an inputs directory and a feed list into extraction results.
type Resolver struct {
	links *LinkFetcher
	feeds *FeedReader
	urlRe *regexp.Regexp
	log   *slog.Logger
}

func NewResolver(opts Options, log *slog.Logger) (*Resolver, error) {
	urlRe, err := xurls.StrictMatchingScheme("https?://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	client := &http.Client{Timeout: opts.FetchTimeout}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &Resolver{
		links: NewLinkFetcher(client),
		feeds: NewFeedReader(parser, opts.RSSMaxEntries, log),
		urlRe: urlRe,
		log:   log,
	}, nil
}

// Resolve walks dir (recursively, in lexical order) and the given feeds and
// returns one extraction per discovered item. Extraction failures are
// reported per item, not as an error; the error is only for an unreadable
// directory.
func (r *Resolver) Resolve(ctx context.Context, dir string, feedURLs []string) ([]domain.Extraction, error) {
	files, err := listFiles(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list inputs: %w", err)
		}

		r.log.InfoContext(ctx, "Inputs directory is missing",
			"dir", dir)
	}

	var (
		extractions []domain.Extraction
		jobs        []linkJob
		jobSlots    []int
	)

	feedURLs = slices.Clone(feedURLs)

	for _, path := range files {
		ext := strings.ToLower(filepath.Ext(path))

		switch {
		case ext == ".pdf":
			item, err := ReadPDF(path)
			if err != nil {
				item.Identity = path
			}
			extractions = append(extractions, domain.Extraction{Item: item, Err: err})

		case ext == feedListExtension:
			urls, err := r.readFeedList(path)
			if err != nil {
				extractions = append(extractions, failedExtraction(path, domain.KindLink, err))
				continue
			}
			feedURLs = append(feedURLs, urls...)

		case slices.Contains(textExtensions, ext):
			data, err := os.ReadFile(path)
			if err != nil {
				extractions = append(extractions, failedExtraction(path, domain.KindRawText, fmt.Errorf("read file: %w", err)))
				continue
			}

			urls := r.findURLs(string(data))
			if len(urls) == 0 {
				if item, ok := rawTextItem(path, string(data)); ok {
					extractions = append(extractions, domain.Extraction{Item: item})
				} else {
					r.log.DebugContext(ctx, "Skipping short text input",
						"path", path)
				}
				continue
			}

			for _, u := range urls {
				jobs = append(jobs, linkJob{url: u, origin: path})
				jobSlots = append(jobSlots, len(extractions))
				extractions = append(extractions, domain.Extraction{})
			}
		}
	}

	for _, entry := range r.feeds.Entries(ctx, dedupe(feedURLs)) {
		jobs = append(jobs, linkJob{url: entry.URL, origin: entry.FeedURL, titleHint: entry.Title})
		jobSlots = append(jobSlots, len(extractions))
		extractions = append(extractions, domain.Extraction{})
	}

	for i, result := range r.fetchLinks(ctx, jobs) {
		extractions[jobSlots[i]] = result
	}

	r.log.InfoContext(ctx, "Inputs are resolved",
		"dir", dir,
		"fileCount", len(files),
		"feedCount", len(feedURLs),
		"itemCount", len(extractions))

	return extractions, nil
}

// fetchLinks downloads every link concurrently; results keep job order.
func (r *Resolver) fetchLinks(ctx context.Context, jobs []linkJob) []domain.Extraction {
	results := make([]domain.Extraction, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semCh := make(chan struct{}, min(fetchLinksMaxWorkers, len(jobs)))

	for i, job := range jobs {
		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			item, err := r.links.Fetch(ctx, job.url)
			item.Origin = job.origin
			if item.TitleHint == "" {
				item.TitleHint = job.titleHint
			}
			if err != nil {
				r.log.WarnContext(ctx, "Failed to fetch link",
					"error", err,
					"url", job.url,
					"origin", job.origin)
				err = fmt.Errorf("fetch %s: %w", job.url, err)
			}

			results[i] = domain.Extraction{Item: item, Err: err}
		})
	}

	wg.Wait()

	return results
}

// findURLs returns the distinct http(s) URLs of one input file in order of
// appearance.
func (r *Resolver) findURLs(text string) []string {
	var urls []string
	seen := make(map[string]struct{})

	for _, u := range r.urlRe.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?)")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	return urls
}

func (r *Resolver) readFeedList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed list: %w", err)
	}

	var urls []string
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	return urls, nil
}

func rawTextItem(path string, text string) (domain.InputItem, bool) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minRawTextLength {
		return domain.InputItem{}, false
	}

	firstLine, _, _ := strings.Cut(text, "\n")
	firstLine = strings.TrimSpace(strings.TrimLeft(firstLine, "# "))

	return domain.InputItem{
		Identity:  TextIdentity(text),
		Kind:      domain.KindRawText,
		RawText:   text,
		TitleHint: truncateRunes(firstLine, maxTitleRunes),
		Origin:    path,
	}, true
}

func failedExtraction(path string, kind domain.Kind, err error) domain.Extraction {
	return domain.Extraction{
		Item: domain.InputItem{Identity: path, Kind: kind, Origin: path},
		Err:  err,
	}
}

func listFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}

	return result
}
