package models

import "time"

// GenerationResult is the output of one generation call. Either Text is
// non-empty or Err is set.
type GenerationResult struct {
	Text string
	Err  error
}

func (r GenerationResult) OK() bool {
	return r.Err == nil && r.Text != ""
}

// PageResult is the analysis of one fetched page.
type PageResult struct {
	URL      string `json:"url"`
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SourceResult collects everything produced for one configured source.
type SourceResult struct {
	Source Source       `json:"source"`
	Pages  []PageResult `json:"pages"`
	Error  string       `json:"error,omitempty"`
}

// Analyses returns the non-empty analyses in page order.
func (r SourceResult) Analyses() []string {
	var out []string
	for _, p := range r.Pages {
		if p.Analysis != "" {
			out = append(out, p.Analysis)
		}
	}
	return out
}

type EventKind string

const (
	EventPassStarted  EventKind = "pass_started"
	EventItemStatus   EventKind = "item_status"
	EventItemSkipped  EventKind = "item_skipped"
	EventPassFinished EventKind = "pass_finished"
)

// Event is published by the runners while a pass is in progress.
type Event struct {
	RunID   string    `json:"run_id"`
	Kind    EventKind `json:"kind"`
	Item    string    `json:"item,omitempty"`
	Status  JobStatus `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Prompt is the user side of a generation request. Instructions are sent
// verbatim; Content is the part that may be truncated to fit the context.
type Prompt struct {
	Instructions string
	Content      string
}

func (p Prompt) String() string {
	return p.Instructions + p.Content
}

// ArchiveRecord is a stored analysis.
type ArchiveRecord struct {
	ID        string
	Source    string
	URL       string
	Category  string
	Content   string
	CreatedAt time.Time
	Distance  float64
}
