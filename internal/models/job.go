package models

import "fmt"

// JobStatus is the processing state of a tracked file.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// FileRecord is the persisted state of one file in the hash memory.
type FileRecord struct {
	Hash   string    `json:"hash"`
	Status JobStatus `json:"status"`
}

// FileResult is the outcome of one file in a batch pass.
type FileResult struct {
	Path    string
	Status  JobStatus
	Skipped bool
	Chunks  int
	Output  string
	Error   string
}

func (r FileResult) String() string {
	if r.Skipped {
		return fmt.Sprintf("%s: unchanged", r.Path)
	}
	if r.Error != "" {
		return fmt.Sprintf("%s: %s (%s)", r.Path, r.Status, r.Error)
	}
	return fmt.Sprintf("%s: %s -> %s", r.Path, r.Status, r.Output)
}
