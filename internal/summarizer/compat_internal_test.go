package summarizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	content  string
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.content}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestCompatSummarizer(t *testing.T) {
	model := &fakeModel{
		content: "```json\n{\"chunk_summary\":\"part\",\"key_points\":[\"p\"],\"tags\":[\"t\"],\"source_hint\":\"\"}\n```",
	}
	s := newCompatSummarizer(model, slog.New(slog.NewTextHandler(io.Discard, nil)))

	candidate, err := s.Summarize(context.Background(), Request{
		Mode:       ModeChunk,
		Text:       "chunk text",
		ChunkIndex: 0,
		ChunkTotal: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, "part", candidate.Summary)
	assert.Equal(t, []string{"p"}, candidate.KeyPoints)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
}

func TestCompatSummarizerClassifies(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: errors.New("API returned unexpected status code: 429: rate limit"), want: KindRateLimited},
		{err: errors.New("API returned unexpected status code: 503"), want: KindTransient},
		{err: errors.New("model not found"), want: KindPermanent},
	}

	for _, tt := range tests {
		s := newCompatSummarizer(&fakeModel{err: tt.err}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := s.Summarize(context.Background(), Request{Mode: ModeSingleShot, Text: "text"})

		require.Error(t, err)
		assert.Equal(t, tt.want, KindOf(err), tt.err.Error())
	}
}
