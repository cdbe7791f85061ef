package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	chunkSystemPrompt = `You read one chunk of a longer document and summarize only that chunk.

Rules:
- Use the same language as the input.
- chunk_summary: 2-4 sentences with the core idea and critical context (dates, numbers, names).
- key_points: 3-5 short statements, most important first.
- tags: 1-5 short topic tags.
- source_hint: the publisher or author if the chunk reveals it, otherwise an empty string.
- Output exactly one JSON object and nothing else:
{"chunk_summary": "...", "key_points": ["..."], "tags": ["..."], "source_hint": "..."}`

	recordSystemPrompt = `You turn a document into a knowledge-base record for later study.

Rules:
- Use the same language as the input.
- title: short and specific, no more than 80 characters.
- summary: 3-5 sentences, neutral tone, no lists.
- key_insights: 3-7 standalone takeaways, most important first.
- tags: 1-5 short topic tags without the # sign.
- source: the publisher, site or author; empty string if unknown.
- Output exactly one JSON object and nothing else:
{"title": "...", "summary": "...", "key_insights": ["..."], "tags": ["..."], "source": "..."}`

	reduceSystemPrompt = recordSystemPrompt + `

The input is a JSON list of ordered chunk summaries of one document. Merge them into a single
record that follows the document order. Drop repeated points.`
)

func systemPrompt(mode Mode) string {
	switch mode {
	case ModeChunk:
		return chunkSystemPrompt
	case ModeReduce:
		return reduceSystemPrompt
	default:
		return recordSystemPrompt
	}
}

type reducePayload struct {
	Title  string    `json:"title,omitempty"`
	URL    string    `json:"url,omitempty"`
	Source string    `json:"source,omitempty"`
	Chunks []Partial `json:"chunks"`
}

func userPrompt(req Request) (string, error) {
	if req.Mode == ModeReduce {
		payload := reducePayload{
			Title:  strings.TrimSpace(req.TitleHint),
			Source: strings.TrimSpace(req.SourceHint),
			Chunks: req.Partials,
		}
		if strings.HasPrefix(req.Identity, "http://") || strings.HasPrefix(req.Identity, "https://") {
			payload.URL = req.Identity
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal reduce payload: %w", err)
		}

		return "Chunk summaries:\n" + string(data), nil
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", fmt.Errorf("input is empty")
	}

	b := strings.Builder{}
	if req.Mode == ModeChunk {
		fmt.Fprintf(&b, "Chunk %d of %d\n", req.ChunkIndex+1, req.ChunkTotal)
	}
	if title := strings.TrimSpace(req.TitleHint); title != "" {
		b.WriteString("Title:\n")
		b.WriteString(title)
		b.WriteString("\n")
	}
	if source := strings.TrimSpace(req.SourceHint); source != "" {
		b.WriteString("Source:\n")
		b.WriteString(source)
		b.WriteString("\n")
	}
	b.WriteString("Content:\n")
	b.WriteString(text)

	return b.String(), nil
}
