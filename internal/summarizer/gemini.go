package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const geminiTemperature = 0.2

// GeminiSummarizer calls the Gemini API with JSON response mode.
type GeminiSummarizer struct {
	client *generativelanguage.GenerativeClient
	model  string
}

// NewGeminiSummarizer builds a REST client with the generated call options
// cleared, so each Summarize is exactly one request on the wire.
func NewGeminiSummarizer(ctx context.Context, apiKey string, model string, opts ...option.ClientOption) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := generativelanguage.NewGenerativeRESTClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	client.CallOptions.GenerateContent = nil

	return &GeminiSummarizer{
		client: client,
		model:  model,
	}, nil
}

func (s *GeminiSummarizer) Name() string {
	return "gemini"
}

func (s *GeminiSummarizer) Close() error {
	return s.client.Close()
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, req Request) (Candidate, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return Candidate{}, newFailure(s.Name(), KindPermanent, err)
	}

	temperature := float32(geminiTemperature)
	resp, err := s.client.GenerateContent(ctx, &generativelanguagepb.GenerateContentRequest{
		Model: "models/" + s.model,
		SystemInstruction: &generativelanguagepb.Content{
			Parts: []*generativelanguagepb.Part{textPart(systemPrompt(req.Mode))},
		},
		Contents: []*generativelanguagepb.Content{{
			Role:  "user",
			Parts: []*generativelanguagepb.Part{textPart(prompt)},
		}},
		GenerationConfig: &generativelanguagepb.GenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      &temperature,
		},
	})
	if err != nil {
		return Candidate{}, s.classify(ctx, fmt.Errorf("generate content: %w", err))
	}

	if reason := resp.GetPromptFeedback().GetBlockReason(); reason != generativelanguagepb.GenerateContentResponse_PromptFeedback_BLOCK_REASON_UNSPECIFIED {
		return Candidate{}, newFailure(s.Name(), KindPermanent, fmt.Errorf("prompt is blocked (blockReason = %s)", reason))
	}
	if len(resp.GetCandidates()) == 0 || resp.GetCandidates()[0].GetContent() == nil {
		return Candidate{}, invalid(s.Name(), "response has no candidates")
	}

	candidate := resp.GetCandidates()[0]

	var output strings.Builder
	for _, part := range candidate.GetContent().GetParts() {
		output.WriteString(part.GetText())
	}

	if candidate.GetFinishReason() == generativelanguagepb.Candidate_MAX_TOKENS {
		return Candidate{}, invalid(s.Name(), "response is truncated (finishReason = %s)", candidate.GetFinishReason())
	}
	if strings.TrimSpace(output.String()) == "" {
		return Candidate{}, invalid(s.Name(), "output text is missing")
	}

	return parseCandidate(s.Name(), req.Mode, output.String())
}

func textPart(text string) *generativelanguagepb.Part {
	return &generativelanguagepb.Part{Data: &generativelanguagepb.Part_Text{Text: text}}
}

func (s *GeminiSummarizer) classify(ctx context.Context, err error) error {
	if kind, ok := classifyCommon(ctx, err); ok {
		return newFailure(s.Name(), kind, err)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return newFailure(s.Name(), classifyStatus(code), err)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return newFailure(s.Name(), classifyCode(st.Code()), err)
		}
	}

	var httpErr *googleapi.Error
	if errors.As(err, &httpErr) {
		return newFailure(s.Name(), classifyStatus(httpErr.Code), err)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return newFailure(s.Name(), classifyCode(st.Code()), err)
	}

	return newFailure(s.Name(), classifyMessage(err), err)
}

func classifyCode(code codes.Code) Kind {
	switch code {
	case codes.ResourceExhausted:
		return KindRateLimited
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return KindTransient
	default:
		return KindPermanent
	}
}
