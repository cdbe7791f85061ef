package domain

import "time"

type Kind string

const (
	KindLink    Kind = "link"
	KindPDFText Kind = "pdf-text"
	KindRawText Kind = "raw-text"
)

// InputItem is a resolved piece of content. It is not modified after resolution.
type InputItem struct {
	Identity string
	Kind     Kind
	RawText  string
	// TitleHint and SourceHint come from the extraction layer and are used only
	// when the model leaves the corresponding field empty.
	TitleHint  string
	SourceHint string
	// Origin names where the item was found (file path or feed URL).
	Origin string
}

// Extraction is the extraction layer's result for one input: either an item or
// the reason it could not be produced.
type Extraction struct {
	Item InputItem
	Err  error
}

type Chunk struct {
	SequenceIndex int
	Text          string
}

// SummaryRecord is the validated record eligible for persistence.
type SummaryRecord struct {
	Title       string   `json:"title"       yaml:"title"`
	Summary     string   `json:"summary"     yaml:"summary"`
	KeyInsights []string `json:"keyInsights" yaml:"keyInsights"`
	Tags        []string `json:"tags"        yaml:"tags"`
	Source      string   `json:"source"      yaml:"source"`
	Identity    string   `json:"identity"    yaml:"identity"`
	Kind        Kind     `json:"kind"        yaml:"kind"`
}

type Outcome string

const (
	OutcomePersisted           Outcome = "persisted"
	OutcomeSkippedDuplicate    Outcome = "skipped_duplicate"
	OutcomeFailedExtraction    Outcome = "failed_extraction"
	OutcomeFailedSummarization Outcome = "failed_summarization"
	OutcomeFailedValidation    Outcome = "failed_validation"
	OutcomeFailedPersistence   Outcome = "failed_persistence"
)

// Outcomes lists every outcome kind in report order.
var Outcomes = []Outcome{
	OutcomePersisted,
	OutcomeSkippedDuplicate,
	OutcomeFailedExtraction,
	OutcomeFailedSummarization,
	OutcomeFailedValidation,
	OutcomeFailedPersistence,
}

func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailedExtraction,
		OutcomeFailedSummarization,
		OutcomeFailedValidation,
		OutcomeFailedPersistence:
		return true
	default:
		return false
	}
}

type ItemResult struct {
	Identity string        `yaml:"identity"`
	Kind     Kind          `yaml:"kind"`
	Origin   string        `yaml:"origin,omitempty"`
	Outcome  Outcome       `yaml:"outcome"`
	Title    string        `yaml:"title,omitempty"`
	Error    string        `yaml:"error,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

type Report struct {
	RunID         string          `yaml:"runId"`
	Provider      string          `yaml:"provider"`
	Store         string          `yaml:"store"`
	StartedAt     time.Time       `yaml:"startedAt"`
	FinishedAt    time.Time       `yaml:"finishedAt"`
	Items         []ItemResult    `yaml:"items"`
	Counts        map[Outcome]int `yaml:"counts"`
	NotDispatched int             `yaml:"notDispatched,omitempty"`
	Canceled      bool            `yaml:"canceled,omitempty"`
}

func (r *Report) Failed() int {
	failed := 0
	for _, item := range r.Items {
		if item.Outcome.Failed() {
			failed++
		}
	}

	return failed
}

// Outcomes maps every reported identity to its outcome. When the same identity
// appears more than once the first non-duplicate outcome wins.
func (r *Report) Outcomes() map[string]Outcome {
	out := make(map[string]Outcome, len(r.Items))
	for _, item := range r.Items {
		prev, ok := out[item.Identity]
		if !ok || prev == OutcomeSkippedDuplicate {
			out[item.Identity] = item.Outcome
		}
	}

	return out
}
