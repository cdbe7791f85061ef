package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"learntracker/internal/domain"
)

const (
	telegramMessageMaxLength = 4096

	reportHeader         = "📚 *Learning run*\n\n"
	reportContinueHeader = "📚 *Learning run \\(continue\\)*\n\n"

	maxErrorRunes = 200
)

// FormatReport renders a run report as MarkdownV2 messages, each at most
// telegramMessageMaxLength bytes.
func FormatReport(report *domain.Report) []string {
	var messages []string
	var currentMessage strings.Builder

	currentMessage.WriteString(reportHeader)
	currentMessage.WriteString(summaryBlock(report))

	var stored, failed []domain.ItemResult
	for _, item := range report.Items {
		switch {
		case item.Outcome == domain.OutcomePersisted:
			stored = append(stored, item)
		case item.Outcome.Failed():
			failed = append(failed, item)
		}
	}

	sections := []struct {
		header string
		items  []domain.ItemResult
		line   func(domain.ItemResult) string
	}{
		{header: "✅ *Stored*\n\n", items: stored, line: storedLine},
		{header: "❌ *Failed*\n\n", items: failed, line: failedLine},
	}

	for _, section := range sections {
		if len(section.items) == 0 {
			continue
		}

		if currentMessage.Len()+len(section.header)+len(section.line(section.items[0])) > telegramMessageMaxLength {
			messages = append(messages, currentMessage.String())
			currentMessage.Reset()
			currentMessage.WriteString(reportContinueHeader)
		}

		currentMessage.WriteString(section.header)

		for _, item := range section.items {
			bulletPoint := section.line(item)

			if currentMessage.Len()+len(bulletPoint) > telegramMessageMaxLength {
				messages = append(messages, currentMessage.String())
				currentMessage.Reset()
				currentMessage.WriteString(reportContinueHeader)
				currentMessage.WriteString(section.header)
			}

			currentMessage.WriteString(bulletPoint)
		}
	}

	messages = append(messages, currentMessage.String())

	return messages
}

func summaryBlock(report *domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Provider: %s, store: %s\n",
		EscapeMarkdownV2(report.Provider),
		EscapeMarkdownV2(report.Store))

	for _, outcome := range domain.Outcomes {
		if n := report.Counts[outcome]; n > 0 {
			fmt.Fprintf(&b, "– %s: %d\n", EscapeMarkdownV2(string(outcome)), n)
		}
	}

	if report.NotDispatched > 0 {
		fmt.Fprintf(&b, "– not dispatched: %d\n", report.NotDispatched)
	}
	if report.Canceled {
		b.WriteString("⚠️ Run was canceled\n")
	}

	b.WriteString("\n")

	return b.String()
}

func storedLine(item domain.ItemResult) string {
	title := item.Title
	if title == "" {
		title = item.Identity
	}

	if item.Kind == domain.KindLink {
		return fmt.Sprintf("– [%s](%s)\n", EscapeMarkdownV2(title), escapeLinkURL(item.Identity))
	}

	return fmt.Sprintf("– %s\n", EscapeMarkdownV2(title))
}

func failedLine(item domain.ItemResult) string {
	return fmt.Sprintf("– %s \\(%s\\): %s\n",
		EscapeMarkdownV2(item.Identity),
		EscapeMarkdownV2(string(item.Outcome)),
		EscapeMarkdownV2(truncate(item.Error, maxErrorRunes)))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}
