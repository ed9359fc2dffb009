package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/fileutil"
)

// ErrCorrupt is returned when a stored snapshot cannot be decoded.
var ErrCorrupt = errors.New("snapshot is corrupt")

// Key maps a source identifier to its storage key.
func Key(sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID))
	return "state_" + hex.EncodeToString(sum[:])
}

// document is the persisted form: {"content": ..., "last_processed": epoch seconds or null}.
type document struct {
	Content       string   `json:"content"`
	LastProcessed *float64 `json:"last_processed"`
}

func encode(content string, now time.Time) ([]byte, error) {
	ts := float64(now.UnixNano()) / float64(time.Second)
	data, err := json.MarshalIndent(document{Content: content, LastProcessed: &ts}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decode(sourceID string, data []byte) (models.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, sourceID, err)
	}
	snap := models.Snapshot{SourceID: sourceID, Content: doc.Content}
	if doc.LastProcessed != nil {
		sec := *doc.LastProcessed
		t := time.Unix(0, int64(sec*float64(time.Second))).UTC()
		snap.LastProcessed = &t
	}
	return snap, nil
}

func empty(sourceID string) models.Snapshot {
	return models.Snapshot{SourceID: sourceID}
}

// FileStore keeps one JSON file per source in Dir.
type FileStore struct {
	Dir string
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{Dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(sourceID string) string {
	return filepath.Join(s.Dir, Key(sourceID)+".json")
}

// Load returns the stored snapshot, or an empty one if the source is new.
func (s *FileStore) Load(_ context.Context, sourceID string) (models.Snapshot, error) {
	data, err := os.ReadFile(s.path(sourceID))
	if errors.Is(err, os.ErrNotExist) {
		return empty(sourceID), nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decode(sourceID, data)
}

// Save replaces the snapshot. The file is written next to its destination
// and renamed into place so readers never observe a partial document.
func (s *FileStore) Save(_ context.Context, sourceID, content string) error {
	data, err := encode(content, s.now())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return fileutil.WriteFileAtomic(s.path(sourceID), data, 0o644)
}
