package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"learntracker/internal/chunker"
	"learntracker/internal/domain"
	"learntracker/internal/summarizer"

	"golang.org/x/sync/errgroup"
)

type Phase string

const (
	PhaseChunk      Phase = "chunk"
	PhaseSingleShot Phase = "single-shot"
	PhaseMap        Phase = "map"
	PhaseReduce     Phase = "reduce"
)

var errEmptyText = errors.New("text is empty")

// Error reports the phase (and chunk for the map phase) that failed.
type Error struct {
	Identity   string
	Phase      Phase
	ChunkIndex int
	Err        error
}

func (e *Error) Error() string {
	if e.Phase == PhaseMap {
		return fmt.Sprintf("summarize %s: %s chunk %d: %v", e.Identity, e.Phase, e.ChunkIndex, e.Err)
	}
	return fmt.Sprintf("summarize %s: %s: %v", e.Identity, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Options struct {
	ChunkSize      int
	ChunkTolerance int
	MapParallelism int
}

// Orchestrator turns one input item into a single candidate record: one call
// for short texts, otherwise a parallel map over chunks and one reduce call.
type Orchestrator struct {
	provider summarizer.Provider
	opts     Options
	log      *slog.Logger
}

func New(provider summarizer.Provider, opts Options, log *slog.Logger) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultMaxSize
	}
	if opts.ChunkTolerance < 0 {
		opts.ChunkTolerance = chunker.DefaultTolerance
	}
	opts.MapParallelism = max(1, opts.MapParallelism)

	return &Orchestrator{
		provider: provider,
		opts:     opts,
		log:      log,
	}
}

func (o *Orchestrator) Summarize(ctx context.Context, item domain.InputItem) (summarizer.Candidate, error) {
	chunks := chunker.Split(item.RawText, o.opts.ChunkSize, o.opts.ChunkTolerance)

	switch len(chunks) {
	case 0:
		return summarizer.Candidate{}, &Error{Identity: item.Identity, Phase: PhaseChunk, Err: errEmptyText}
	case 1:
		return o.singleShot(ctx, item, chunks[0])
	}

	o.log.DebugContext(ctx, "Item is chunked",
		"identity", item.Identity,
		"chunkCount", len(chunks))

	partials, err := o.mapChunks(ctx, item, chunks)
	if err != nil {
		return summarizer.Candidate{}, err
	}

	return o.reduce(ctx, item, partials)
}

func (o *Orchestrator) singleShot(
	ctx context.Context,
	item domain.InputItem,
	chunk domain.Chunk,
) (summarizer.Candidate, error) {
	candidate, err := o.provider.Summarize(ctx, summarizer.Request{
		Mode:       summarizer.ModeSingleShot,
		Text:       chunk.Text,
		Identity:   item.Identity,
		TitleHint:  item.TitleHint,
		SourceHint: item.SourceHint,
	})
	if err != nil {
		return summarizer.Candidate{}, &Error{Identity: item.Identity, Phase: PhaseSingleShot, Err: err}
	}

	return merge(item, candidate, nil), nil
}

// mapChunks summarizes every chunk and returns the results in chunk order.
// The first failure cancels the remaining calls.
func (o *Orchestrator) mapChunks(
	ctx context.Context,
	item domain.InputItem,
	chunks []domain.Chunk,
) ([]summarizer.Partial, error) {
	partials := make([]summarizer.Partial, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MapParallelism)

	for _, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &Error{Identity: item.Identity, Phase: PhaseMap, ChunkIndex: chunk.SequenceIndex, Err: err}
			}

			candidate, err := o.provider.Summarize(gctx, summarizer.Request{
				Mode:       summarizer.ModeChunk,
				Text:       chunk.Text,
				Identity:   item.Identity,
				TitleHint:  item.TitleHint,
				SourceHint: item.SourceHint,
				ChunkIndex: chunk.SequenceIndex,
				ChunkTotal: len(chunks),
			})
			if err != nil {
				return &Error{Identity: item.Identity, Phase: PhaseMap, ChunkIndex: chunk.SequenceIndex, Err: err}
			}

			partials[chunk.SequenceIndex] = summarizer.Partial{
				SequenceIndex: chunk.SequenceIndex,
				Summary:       strings.TrimSpace(candidate.Summary),
				KeyPoints:     candidate.KeyPoints,
				Tags:          candidate.Tags,
				SourceHint:    strings.TrimSpace(candidate.SourceHint),
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return partials, nil
}

func (o *Orchestrator) reduce(
	ctx context.Context,
	item domain.InputItem,
	partials []summarizer.Partial,
) (summarizer.Candidate, error) {
	candidate, err := o.provider.Summarize(ctx, summarizer.Request{
		Mode:       summarizer.ModeReduce,
		Identity:   item.Identity,
		TitleHint:  item.TitleHint,
		SourceHint: item.SourceHint,
		Partials:   partials,
	})
	if err != nil {
		return summarizer.Candidate{}, &Error{Identity: item.Identity, Phase: PhaseReduce, Err: err}
	}

	return merge(item, candidate, partials), nil
}

// merge fills empty fields of the final candidate from the item hints and
// the ordered partials. Non-empty fields from the model always win.
func merge(item domain.InputItem, candidate summarizer.Candidate, partials []summarizer.Partial) summarizer.Candidate {
	if strings.TrimSpace(candidate.Title) == "" {
		candidate.Title = firstTitle(item, partials)
	}

	if len(candidate.KeyInsights) == 0 {
		for _, p := range partials {
			candidate.KeyInsights = append(candidate.KeyInsights, p.KeyPoints...)
		}
	}

	if len(candidate.Tags) == 0 {
		seen := make(map[string]struct{})
		for _, p := range partials {
			for _, tag := range p.Tags {
				key := strings.ToLower(strings.TrimSpace(tag))
				if _, ok := seen[key]; ok || key == "" {
					continue
				}
				seen[key] = struct{}{}
				candidate.Tags = append(candidate.Tags, tag)
			}
		}
	}

	if strings.TrimSpace(candidate.Source) == "" {
		candidate.Source = firstSource(item, partials)
	}

	return candidate
}

func firstTitle(item domain.InputItem, partials []summarizer.Partial) string {
	if title := strings.TrimSpace(item.TitleHint); title != "" {
		return title
	}

	for _, p := range partials {
		if p.Summary == "" {
			continue
		}
		line, _, _ := strings.Cut(p.Summary, "\n")
		return strings.TrimSpace(line)
	}

	return ""
}

func firstSource(item domain.InputItem, partials []summarizer.Partial) string {
	for _, p := range partials {
		if p.SourceHint != "" {
			return p.SourceHint
		}
	}

	return strings.TrimSpace(item.SourceHint)
}
