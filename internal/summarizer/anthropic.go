package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicSummarizer calls the Anthropic Messages API.
type AnthropicSummarizer struct {
	client anthropic.Client
	model  string
}

func NewAnthropicSummarizer(apiKey string, model string, opts ...option.RequestOption) (*AnthropicSummarizer, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key is empty")
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicSummarizer{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (s *AnthropicSummarizer) Name() string {
	return "anthropic"
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, req Request) (Candidate, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return Candidate{}, newFailure(s.Name(), KindPermanent, err)
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(req.Mode)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Candidate{}, s.classify(ctx, fmt.Errorf("do request: %w", err))
	}

	var output strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			output.WriteString(block.Text)
		}
	}

	if resp.StopReason == anthropic.StopReasonMaxTokens {
		return Candidate{}, invalid(s.Name(), "response is truncated (maxTokens = %d)", anthropicMaxTokens)
	}
	if strings.TrimSpace(output.String()) == "" {
		return Candidate{}, invalid(s.Name(), "output text is missing (stopReason = %s)", resp.StopReason)
	}

	return parseCandidate(s.Name(), req.Mode, output.String())
}

func (s *AnthropicSummarizer) classify(ctx context.Context, err error) error {
	if kind, ok := classifyCommon(ctx, err); ok {
		return newFailure(s.Name(), kind, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's "overloaded".
		return newFailure(s.Name(), classifyStatus(apiErr.StatusCode), err)
	}

	return newFailure(s.Name(), classifyMessage(err), err)
}
