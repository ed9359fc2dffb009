package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/report"
)

// narrateTo narrates chunks with segments kept in segmentDir and writes
// them to path as one audio file. The segments are removed once the file
// is written; after a failure they stay for the next attempt.
func narrateTo(ctx context.Context, narrator NarratorFor, segmentDir string, chunks []models.Chunk, path string) error {
	segments, err := narrator(segmentDir).Narrate(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%d of %d chunks failed: %w", countNil(segments), len(chunks), err)
	}
	if err := report.WriteAudio(path, segments); err != nil {
		return err
	}
	if segmentDir != "" {
		if err := os.RemoveAll(segmentDir); err != nil {
			return fmt.Errorf("failed to remove segments: %w", err)
		}
	}
	return nil
}

// segmentDir is the work directory of file's segments. The path hash keeps
// files with the same name in different directories apart.
func segmentDir(workDir, file string) string {
	sum := sha256.Sum256([]byte(file))
	return filepath.Join(workDir, fmt.Sprintf("tmp_%s_%s", stem(file), hex.EncodeToString(sum[:4])))
}

func countNil(segments [][]byte) int {
	n := 0
	for _, s := range segments {
		if s == nil {
			n++
		}
	}
	return n
}
