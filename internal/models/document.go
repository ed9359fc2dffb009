package models

import "time"

// Document is a fetched page after text extraction.
type Document struct {
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Source identifies one trackable origin of content: a URL or a file path.
type Source struct {
	ID       string
	Category string
	Keywords []string
}

// Snapshot is the last-seen content of a source.
type Snapshot struct {
	SourceID      string
	Content       string
	LastProcessed *time.Time
}

// IsEmpty reports whether the source has never been processed.
func (s Snapshot) IsEmpty() bool {
	return s.Content == "" && s.LastProcessed == nil
}

type Chunk struct {
	Index int
	Text  string
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
