package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const compatTemperature = 0.2

// CompatSummarizer talks to any OpenAI-compatible chat endpoint (Ollama,
// vLLM, OpenRouter) through langchaingo.
type CompatSummarizer struct {
	client llms.Model
	log    *slog.Logger
}

func NewCompatSummarizer(baseURL string, apiKey string, model string, log *slog.Logger) (*CompatSummarizer, error) {
	if baseURL == "" {
		return nil, errors.New("compat base url is empty")
	}
	if apiKey == "" {
		// Local servers accept any token.
		apiKey = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create compat client: %w", err)
	}

	return newCompatSummarizer(client, log), nil
}

func newCompatSummarizer(client llms.Model, log *slog.Logger) *CompatSummarizer {
	return &CompatSummarizer{
		client: client,
		log:    log,
	}
}

func (s *CompatSummarizer) Name() string {
	return "compat"
}

func (s *CompatSummarizer) Summarize(ctx context.Context, req Request) (Candidate, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return Candidate{}, newFailure(s.Name(), KindPermanent, err)
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt(req.Mode)),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := s.client.GenerateContent(ctx, content,
		llms.WithTemperature(compatTemperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Candidate{}, s.classify(ctx, fmt.Errorf("generate content: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Candidate{}, invalid(s.Name(), "response has no choices")
	}

	output := strings.TrimSpace(resp.Choices[0].Content)
	if output == "" {
		return Candidate{}, invalid(s.Name(), "output text is missing (stopReason = %s)", resp.Choices[0].StopReason)
	}

	s.log.DebugContext(ctx, "Compat response is received",
		"identity", req.Identity,
		"mode", req.Mode,
		"outputLen", len(output))

	return parseCandidate(s.Name(), req.Mode, output)
}

func (s *CompatSummarizer) classify(ctx context.Context, err error) error {
	if kind, ok := classifyCommon(ctx, err); ok {
		return newFailure(s.Name(), kind, err)
	}

	return newFailure(s.Name(), classifyMessage(err), err)
}
