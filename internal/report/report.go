package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"learntracker/internal/database"
	"learntracker/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	header = color.New(color.FgCyan, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Print writes a human readable run report: one line per item followed by
// the outcome counts.
func Print(w io.Writer, report *domain.Report) {
	fmt.Fprintf(w, "\n%s\n", header("=== Run "+report.RunID+" ==="))
	fmt.Fprintf(w, "Provider: %s  Store: %s\n", report.Provider, report.Store)
	fmt.Fprintf(w, "Started:  %s  (%s)\n\n",
		report.StartedAt.Local().Format(timeLayout),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	if len(report.Items) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No items"))
	}

	for _, item := range report.Items {
		paint := outcomeColor(item.Outcome)

		label := item.Title
		if label == "" {
			label = item.Identity
		}

		fmt.Fprintf(w, "  %s %s %s\n", paint(outcomeIcon(item.Outcome)), paint(string(item.Outcome)), label)
		if item.Title != "" {
			fmt.Fprintf(w, "    %s\n", gray(item.Identity))
		}
		if item.Error != "" {
			fmt.Fprintf(w, "    %s\n", red(item.Error))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", yellow("Counts:"), Counts(report.Counts))

	if report.NotDispatched > 0 {
		fmt.Fprintf(w, "%s %d\n", yellow("Not dispatched:"), report.NotDispatched)
	}
	if report.Canceled {
		fmt.Fprintf(w, "%s\n", red("Run was canceled"))
	}
}

// PrintRuns writes one line per stored run, newest first.
func PrintRuns(w io.Writer, runs []database.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "%s\n", gray("No runs yet"))
		return
	}

	for _, run := range runs {
		status := green("ok")
		if failed(run.Counts) > 0 {
			status = red("failed")
		}
		if run.Canceled {
			status = yellow("canceled")
		}

		fmt.Fprintf(w, "%s  %s  %s/%s  %s  %s\n",
			run.StartedAt.Local().Format(timeLayout),
			gray(run.ID),
			run.Provider,
			run.Store,
			status,
			Counts(run.Counts))
	}
}

// Counts formats non-zero outcome counts in report order.
func Counts(counts map[domain.Outcome]int) string {
	var parts []string
	for _, outcome := range domain.Outcomes {
		if n := counts[outcome]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", outcome, n))
		}
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, " ")
}

// WriteFile stores the report as YAML, creating parent directories.
func WriteFile(path string, report *domain.Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	if err = os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // report files are meant to be read
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var report domain.Report
	if err = yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	return &report, nil
}

func outcomeColor(outcome domain.Outcome) func(a ...any) string {
	switch {
	case outcome == domain.OutcomePersisted:
		return green
	case outcome == domain.OutcomeSkippedDuplicate:
		return gray
	case outcome.Failed():
		return red
	default:
		return yellow
	}
}

func outcomeIcon(outcome domain.Outcome) string {
	switch {
	case outcome == domain.OutcomePersisted:
		return "●"
	case outcome == domain.OutcomeSkippedDuplicate:
		return "○"
	default:
		return "✗"
	}
}

func failed(counts map[domain.Outcome]int) int {
	n := 0
	for outcome, count := range counts {
		if outcome.Failed() {
			n += count
		}
	}
	return n
}
