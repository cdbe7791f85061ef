package summarizer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"learntracker/internal/summarizer"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const recordJSON = `{\"title\":\"Go\",\"summary\":\"About Go.\",\"key_insights\":[\"a\"],\"tags\":[\"go\"],\"source\":\"Blog\"}`

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestOpenAISummarizer(t *testing.T) {
	server := newServer(t, http.StatusOK, `{
		"id": "resp_1",
		"object": "response",
		"status": "completed",
		"model": "gpt-test",
		"output": [{
			"type": "message",
			"id": "msg_1",
			"status": "completed",
			"role": "assistant",
			"content": [{"type": "output_text", "text": "`+recordJSON+`", "annotations": []}]
		}]
	}`)

	s, err := summarizer.NewOpenAISummarizer("sk-test", "gpt-test", openaioption.WithBaseURL(server.URL))
	require.NoError(t, err)

	candidate, err := s.Summarize(context.Background(), summarizer.Request{
		Mode: summarizer.ModeSingleShot,
		Text: "Go is a language.",
	})

	require.NoError(t, err)
	assert.Equal(t, "Go", candidate.Title)
	assert.Equal(t, []string{"a"}, candidate.KeyInsights)
}

func TestOpenAISummarizerClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   summarizer.Kind
	}{
		{status: http.StatusTooManyRequests, want: summarizer.KindRateLimited},
		{status: http.StatusBadGateway, want: summarizer.KindTransient},
		{status: http.StatusUnauthorized, want: summarizer.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := newServer(t, tt.status, `{"error": {"message": "nope", "type": "error", "code": "x"}}`)

			s, err := summarizer.NewOpenAISummarizer("sk-test", "gpt-test", openaioption.WithBaseURL(server.URL))
			require.NoError(t, err)

			_, err = s.Summarize(context.Background(), summarizer.Request{
				Mode: summarizer.ModeSingleShot,
				Text: "text",
			})

			require.Error(t, err)
			assert.Equal(t, tt.want, summarizer.KindOf(err))
		})
	}
}

func TestAnthropicSummarizer(t *testing.T) {
	server := newServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [{"type": "text", "text": "Sure:\n`+recordJSON+`"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`)

	s, err := summarizer.NewAnthropicSummarizer("key", "claude-test", anthropicoption.WithBaseURL(server.URL))
	require.NoError(t, err)

	candidate, err := s.Summarize(context.Background(), summarizer.Request{
		Mode: summarizer.ModeSingleShot,
		Text: "Go is a language.",
	})

	require.NoError(t, err)
	assert.Equal(t, "About Go.", candidate.Summary)
	assert.Equal(t, "Blog", candidate.Source)
}

func TestAnthropicSummarizerRateLimited(t *testing.T) {
	server := newServer(t, http.StatusTooManyRequests,
		`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)

	s, err := summarizer.NewAnthropicSummarizer("key", "claude-test", anthropicoption.WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), summarizer.Request{
		Mode: summarizer.ModeSingleShot,
		Text: "text",
	})

	require.Error(t, err)
	assert.Equal(t, summarizer.KindRateLimited, summarizer.KindOf(err))
	assert.True(t, summarizer.IsRetryable(err))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := summarizer.NewOpenAISummarizer("", "")
	assert.Error(t, err)

	_, err = summarizer.NewAnthropicSummarizer("", "")
	assert.Error(t, err)

	_, err = summarizer.NewCompatSummarizer("", "", "", discardLogger())
	assert.Error(t, err)

	_, err = summarizer.NewGeminiSummarizer(context.Background(), "", "")
	assert.Error(t, err)
}

func newGeminiSummarizer(t *testing.T, server *httptest.Server) *summarizer.GeminiSummarizer {
	t.Helper()

	s, err := summarizer.NewGeminiSummarizer(context.Background(), "key", "gemini-test", option.WithEndpoint(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestGeminiSummarizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Contains(t, string(body), "application/json")
		assert.Contains(t, string(body), "Go is a language.")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "` + recordJSON + `"}]},
				"finishReason": "STOP"
			}]
		}`))
	}))
	t.Cleanup(server.Close)

	s := newGeminiSummarizer(t, server)

	candidate, err := s.Summarize(context.Background(), summarizer.Request{
		Mode: summarizer.ModeSingleShot,
		Text: "Go is a language.",
	})

	require.NoError(t, err)
	assert.Equal(t, "Go", candidate.Title)
	assert.Equal(t, "Blog", candidate.Source)
}

func TestGeminiSummarizerInvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "max tokens",
			body: `{"candidates": [{"content": {"parts": [{"text": "{\"title\": \"Go"}]}, "finishReason": "MAX_TOKENS"}]}`,
		},
		{
			name: "no candidates",
			body: `{"candidates": []}`,
		},
		{
			name: "empty text",
			body: `{"candidates": [{"content": {"parts": [{"text": "  "}]}, "finishReason": "STOP"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newGeminiSummarizer(t, newServer(t, http.StatusOK, tt.body))

			_, err := s.Summarize(context.Background(), summarizer.Request{
				Mode: summarizer.ModeSingleShot,
				Text: "text",
			})

			require.Error(t, err)
			assert.Equal(t, summarizer.KindInvalid, summarizer.KindOf(err))
		})
	}
}

func TestGeminiSummarizerClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   summarizer.Kind
	}{
		{status: http.StatusTooManyRequests, want: summarizer.KindRateLimited},
		{status: http.StatusServiceUnavailable, want: summarizer.KindTransient},
		{status: http.StatusBadRequest, want: summarizer.KindPermanent},
		{status: http.StatusForbidden, want: summarizer.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				requests.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"code": ` + strconv.Itoa(tt.status) + `, "message": "nope", "status": "X"}}`))
			}))
			t.Cleanup(server.Close)

			s := newGeminiSummarizer(t, server)

			_, err := s.Summarize(context.Background(), summarizer.Request{
				Mode: summarizer.ModeSingleShot,
				Text: "text",
			})

			require.Error(t, err)
			assert.Equal(t, tt.want, summarizer.KindOf(err))
			assert.Equal(t, int32(1), requests.Load())
		})
	}
}

func TestGeminiSummarizerGovernedAttemptsMatchRequests(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`))
	}))
	t.Cleanup(server.Close)

	policy := testPolicy()
	policy.MaxAttempts = 2
	policy.Timeout = 5 * time.Second
	governed := summarizer.Governed(newGeminiSummarizer(t, server), policy, nil, discardLogger())

	_, err := governed.Summarize(context.Background(), summarizer.Request{
		Mode: summarizer.ModeSingleShot,
		Text: "text",
	})

	require.Error(t, err)
	assert.Equal(t, summarizer.KindTransient, summarizer.KindOf(err))
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), requests.Load())
}
