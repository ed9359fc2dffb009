package types

import (
	"context"

	"github.com/xhad/narrator/internal/models"
)

// Core interfaces shared by the runners and their collaborators.

type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Extractor interface {
	ExtractText(html string) (string, error)
}

type LinkFinder interface {
	Links(html, baseURL string) ([]string, error)
}

type Generator interface {
	Generate(ctx context.Context, systemPrompt string, prompt models.Prompt) models.GenerationResult
}

type SnapshotStore interface {
	Load(ctx context.Context, sourceID string) (models.Snapshot, error)
	Save(ctx context.Context, sourceID, content string) error
}

// Narrator turns ordered text chunks into ordered audio segments. A nil
// segment marks a chunk that failed; the error joins all chunk failures.
type Narrator interface {
	Narrate(ctx context.Context, chunks []models.Chunk) ([][]byte, error)
}

type PageReader interface {
	PageCount(path string) (int, error)
	ReadPages(path string, start, count int) (string, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type Archive interface {
	Store(ctx context.Context, rec models.ArchiveRecord, embedding []float32) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.ArchiveRecord, error)
	Close()
}

type EventSink interface {
	Publish(evt models.Event)
}
