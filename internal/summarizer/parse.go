package summarizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFenceRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// lines accepts a JSON array of strings or one string with an item per line.
type lines []string

func (l *lines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitNonEmpty(s, "\n")
		return nil
	default:
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
}

// tagList accepts a JSON array of strings or one comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = splitNonEmpty(strings.ReplaceAll(s, "\n", ","), ",")
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*t = items

	return nil
}

type rawCandidate struct {
	Title        string  `json:"title"`
	Summary      string  `json:"summary"`
	ChunkSummary string  `json:"chunk_summary"`
	KeyInsights  lines   `json:"key_insights"`
	KeyPoints    lines   `json:"key_points"`
	Tags         tagList `json:"tags"`
	Source       string  `json:"source"`
	SourceHint   string  `json:"source_hint"`
}

// parseCandidate decodes model output into a Candidate. Output that is not a
// JSON object of the expected shape is an Invalid failure.
func parseCandidate(provider string, mode Mode, output string) (Candidate, error) {
	payload := extractJSON(output)
	if payload == "" {
		return Candidate{}, invalid(provider, "output has no JSON object (output = %q)", preview(output))
	}

	var raw rawCandidate
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Candidate{}, invalid(provider, "decode output: %w", err)
	}

	if mode == ModeChunk {
		candidate := Candidate{
			Summary:    firstNonEmpty(raw.ChunkSummary, raw.Summary),
			KeyPoints:  firstNonEmptyList(raw.KeyPoints, raw.KeyInsights),
			Tags:       raw.Tags,
			SourceHint: firstNonEmpty(raw.SourceHint, raw.Source),
		}
		if strings.TrimSpace(candidate.Summary) == "" && len(candidate.KeyPoints) == 0 {
			return Candidate{}, invalid(provider, "chunk output has neither summary nor key points")
		}
		return candidate, nil
	}

	return Candidate{
		Title:       raw.Title,
		Summary:     firstNonEmpty(raw.Summary, raw.ChunkSummary),
		KeyInsights: firstNonEmptyList(raw.KeyInsights, raw.KeyPoints),
		Tags:        raw.Tags,
		Source:      firstNonEmpty(raw.Source, raw.SourceHint),
	}, nil
}

// extractJSON strips Markdown fences and surrounding prose and returns the
// outermost JSON object, or "" when there is none.
func extractJSON(output string) string {
	text := strings.TrimSpace(output)
	if match := codeFenceRegex.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}

	return text[start : end+1]
}

func splitNonEmpty(s string, sep string) []string {
	var items []string
	for item := range strings.SplitSeq(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func preview(s string) string {
	const limit = 200

	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return fmt.Sprintf("%s...", string(runes[:limit]))
}
