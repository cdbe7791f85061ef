package summarizer

import (
	"context"
	"fmt"
	"log/slog"

	"learntracker/internal/config"
)

// Mode selects the shape of a summarization request.
type Mode string

const (
	ModeChunk      Mode = "chunk-summary"
	ModeReduce     Mode = "reduce-summary"
	ModeSingleShot Mode = "single-shot-summary"
)

// Partial is one chunk-summary result handed to the reduce call.
type Partial struct {
	SequenceIndex int      `json:"chunk_index"`
	Summary       string   `json:"chunk_summary"`
	KeyPoints     []string `json:"key_points"`
	Tags          []string `json:"tags"`
	SourceHint    string   `json:"source_hint"`
}

// Request describes the payload for a summary request.
type Request struct {
	Mode Mode
	// Text contains the chunk or whole-document text. Empty in reduce mode.
	Text     string
	Identity string
	// TitleHint and SourceHint are optional metadata from extraction.
	TitleHint  string
	SourceHint string
	// ChunkIndex is 0-based; ChunkTotal is set only in chunk mode.
	ChunkIndex int
	ChunkTotal int
	// Partials are the ordered map results, set only in reduce mode.
	Partials []Partial
}

// Candidate is a provider result that has not been validated yet.
type Candidate struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	KeyInsights []string `json:"key_insights"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source"`

	// Chunk-summary only.
	KeyPoints  []string `json:"key_points,omitempty"`
	SourceHint string   `json:"source_hint,omitempty"`
}

// Provider produces a structured summary candidate for one request.
// Errors are *Failure values.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, req Request) (Candidate, error)
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, config.ErrNoProvider
	case config.ProviderOpenAI:
		return NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.Model)
	case config.ProviderAnthropic:
		return NewAnthropicSummarizer(cfg.AnthropicAPIKey, cfg.Model)
	case config.ProviderGemini:
		return NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.Model)
	case config.ProviderCompat:
		return NewCompatSummarizer(cfg.CompatBaseURL, cfg.CompatAPIKey, cfg.Model, log)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, cfg.Provider)
	}
}

// Close releases backend resources when the provider holds any.
func Close(p Provider) error {
	if closer, ok := p.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
