package validator

import (
	"fmt"
	"strings"

	"learntracker/internal/domain"
	"learntracker/internal/summarizer"
)

const DefaultMaxKeyInsights = 7

type Field string

const (
	FieldIdentity    Field = "identity"
	FieldTitle       Field = "title"
	FieldSummary     Field = "summary"
	FieldKeyInsights Field = "key_insights"
)

// Violation is one broken constraint of the record shape.
type Violation struct {
	Field   Field
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Error lists every violation found in a candidate.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "invalid summary: " + strings.Join(parts, "; ")
}

// Has reports whether a violation was recorded for field.
func (e *Error) Has(field Field) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

type Options struct {
	MaxKeyInsights int
	Kind           domain.Kind
}

var bulletPrefixes = []string{"- ", "* ", "• ", "– ", "· "}

// Validate normalizes a candidate and checks it against the record shape.
// It never assumes which backend produced the candidate.
func Validate(candidate summarizer.Candidate, identity string, opts Options) (domain.SummaryRecord, error) {
	maxInsights := opts.MaxKeyInsights
	if maxInsights <= 0 {
		maxInsights = DefaultMaxKeyInsights
	}

	record := domain.SummaryRecord{
		Identity:    strings.TrimSpace(identity),
		Kind:        opts.Kind,
		Title:       collapseSpace(candidate.Title),
		Summary:     strings.TrimSpace(candidate.Summary),
		KeyInsights: normalizeInsights(candidate.KeyInsights, maxInsights),
		Tags:        normalizeTags(candidate.Tags),
		Source:      strings.TrimSpace(candidate.Source),
	}

	var violations []Violation
	if record.Identity == "" {
		violations = append(violations, Violation{Field: FieldIdentity, Message: "is missing"})
	}
	if record.Title == "" {
		violations = append(violations, Violation{Field: FieldTitle, Message: "is missing"})
	}
	if record.Summary == "" {
		violations = append(violations, Violation{Field: FieldSummary, Message: "is empty"})
	}
	if len(record.KeyInsights) == 0 {
		violations = append(violations, Violation{Field: FieldKeyInsights, Message: "has no entries"})
	}

	if len(violations) > 0 {
		return domain.SummaryRecord{}, &Error{Violations: violations}
	}

	return record, nil
}

func normalizeInsights(insights []string, limit int) []string {
	var result []string
	for _, insight := range insights {
		insight = stripBullet(strings.TrimSpace(insight))
		if insight == "" {
			continue
		}
		result = append(result, insight)
		if len(result) == limit {
			break
		}
	}
	return result
}

func stripBullet(s string) string {
	for {
		trimmed := s
		for _, prefix := range bulletPrefixes {
			if trimmed == strings.TrimSpace(prefix) {
				return ""
			}
			trimmed = strings.TrimPrefix(trimmed, prefix)
		}
		trimmed = stripNumbering(trimmed)
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// stripNumbering removes "1. " and "2) " list markers.
func stripNumbering(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i > 3 || i+1 >= len(s) {
		return s
	}
	if (s[i] == '.' || s[i] == ')') && s[i+1] == ' ' {
		return s[i+2:]
	}
	return s
}

// normalizeTags trims tags, drops empty ones and removes case-insensitive
// duplicates keeping the first spelling.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = collapseSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}

		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, tag)
	}

	return result
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
