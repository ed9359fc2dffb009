package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/fileutil"
)

// TrackerFile is the name of the hash memory inside a work directory.
const TrackerFile = "file_hashes.json"

// Tracker remembers the content hash and processing state of every file
// seen by a batch runner. Every change is persisted before it returns.
type Tracker struct {
	mu      sync.Mutex
	path    string
	records map[string]models.FileRecord
}

// LoadTracker reads the hash memory at path. A missing file yields an
// empty memory; entries of the legacy {path: hash} format are taken as
// completed.
func LoadTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path, records: make(map[string]models.FileRecord)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hash memory: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse hash memory %s: %w", path, err)
	}

	for file, value := range raw {
		var legacy string
		if err := json.Unmarshal(value, &legacy); err == nil {
			t.records[file] = models.FileRecord{Hash: legacy, Status: models.StatusCompleted}
			continue
		}
		var rec models.FileRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse hash memory entry %s: %w", file, err)
		}
		if !rec.Status.Valid() {
			rec.Status = models.StatusPending
		}
		t.records[file] = rec
	}
	return t, nil
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Scan hashes files and returns those that need processing: new files,
// changed files and files whose last run did not complete. They are
// recorded as pending. Unreadable files are returned too so that the
// caller fails them individually.
func (t *Tracker) Scan(files []string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []string
	for _, file := range files {
		hash, err := HashFile(file)
		if err != nil {
			pending = append(pending, file)
			continue
		}
		rec, ok := t.records[file]
		if ok && rec.Hash == hash && rec.Status == models.StatusCompleted {
			continue
		}
		t.records[file] = models.FileRecord{Hash: hash, Status: models.StatusPending}
		pending = append(pending, file)
	}

	return pending, t.save()
}

// SetStatus records and persists the status of a file.
func (t *Tracker) SetStatus(file string, status models.JobStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.records[file]
	rec.Status = status
	t.records[file] = rec
	return t.save()
}

func (t *Tracker) Record(file string) (models.FileRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[file]
	return rec, ok
}

func (t *Tracker) save() error {
	data, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode hash memory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(t.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save hash memory: %w", err)
	}
	return nil
}
