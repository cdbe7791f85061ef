package chunker

import (
	"strings"
	"unicode"

	"learntracker/internal/domain"
)

const (
	DefaultMaxSize   = 6000
	DefaultTolerance = 600
)

type boundaryFinder func(runes []rune, lo int, hi int) int

// Boundary classes in order of preference. Each returns the cut position
// (exclusive end of the current chunk) or -1.
var boundaryFinders = []boundaryFinder{
	paragraphBoundary,
	lineBoundary,
	sentenceBoundary,
	spaceBoundary,
}

// Split cuts text into ordered chunks of at most maxSize runes. Inside the last
// tolerance runes before the limit it prefers paragraph, line, sentence and
// word breaks, in that order, and hard-cuts at maxSize only when none exists.
// Text that fits in maxSize yields exactly one chunk; blank text yields none.
func Split(text string, maxSize int, tolerance int) []domain.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if maxSize <= 0 || len(runes) <= maxSize {
		return []domain.Chunk{{SequenceIndex: 0, Text: trimmed}}
	}

	tolerance = max(0, min(tolerance, maxSize-1))

	var chunks []domain.Chunk
	for len(runes) > 0 {
		if len(runes) <= maxSize {
			chunks = appendChunk(chunks, runes)
			break
		}

		cut := findCut(runes, maxSize, tolerance)
		chunks = appendChunk(chunks, runes[:cut])
		runes = trimLeftSpace(runes[cut:])
	}

	return chunks
}

func findCut(runes []rune, maxSize int, tolerance int) int {
	lo := max(1, maxSize-tolerance)

	for _, find := range boundaryFinders {
		if cut := find(runes, lo, maxSize); cut > 0 {
			return cut
		}
	}

	return maxSize
}

func paragraphBoundary(runes []rune, lo int, hi int) int {
	for i := hi - 2; i >= lo-1 && i >= 0; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}

	return -1
}

func lineBoundary(runes []rune, lo int, hi int) int {
	for i := hi - 1; i >= lo-1 && i >= 0; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}

	return -1
}

func sentenceBoundary(runes []rune, lo int, hi int) int {
	for i := hi - 1; i >= lo-1 && i >= 0; i-- {
		switch runes[i] {
		case '。', '！', '？':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				return i + 1
			}
		}
	}

	return -1
}

func spaceBoundary(runes []rune, lo int, hi int) int {
	for i := hi; i >= lo; i-- {
		if i < len(runes) && unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return -1
}

func appendChunk(chunks []domain.Chunk, runes []rune) []domain.Chunk {
	text := strings.TrimSpace(string(runes))
	if text == "" {
		return chunks
	}

	return append(chunks, domain.Chunk{SequenceIndex: len(chunks), Text: text})
}

func trimLeftSpace(runes []rune) []rune {
	for len(runes) > 0 && unicode.IsSpace(runes[0]) {
		runes = runes[1:]
	}

	return runes
}
