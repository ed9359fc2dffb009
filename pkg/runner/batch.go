package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/fileutil"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/metrics"
	"github.com/xhad/narrator/pkg/processor"
	)

type Mode string

const (
	// ModeAudio narrates each file into <base>.mp3 next to it.
	ModeAudio Mode = "audio"
	// ModeCorrect sends each page through OCR correction into <base>_corrected.txt.
	ModeCorrect Mode = "correct"
)

// NarratorFor returns a narrator that keeps its segments in dir.
type NarratorFor func(dir string) types.Narrator

type BatchConfig struct {
	InputDir string
	WorkDir  string
	Patterns []string
	Mode     Mode
}

type BatchRunner struct {
	config    BatchConfig
	tracker   *Tracker
	processor processor.Processor
	narrator  NarratorFor
	generator types.Generator
	sink      types.EventSink
	log       logger.Logger
	metrics   *metrics.Metrics
}

type BatchOption func(*BatchRunner)

func WithNarrator(n NarratorFor) BatchOption {
	return func(r *BatchRunner) { r.narrator = n }
}

func WithGenerator(g types.Generator) BatchOption {
	return func(r *BatchRunner) { r.generator = g }
}

func WithEvents(sink types.EventSink) BatchOption {
	return func(r *BatchRunner) { r.sink = sink }
}

func WithLogger(l logger.Logger) BatchOption {
	return func(r *BatchRunner) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) BatchOption {
	return func(r *BatchRunner) { r.metrics = m }
}

// NewBatchRunner checks the directories and loads the hash memory of the
// work directory.
func NewBatchRunner(config BatchConfig, proc processor.Processor, opts ...BatchOption) (*BatchRunner, error) {
	if config.Mode == "" {
		config.Mode = ModeAudio
	}
	if len(config.Patterns) == 0 {
		config.Patterns = []string{"*.md", "*.txt"}
	}

	info, err := os.Stat(config.InputDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("input path %q is not a directory", config.InputDir)
	}
	if err := os.MkdirAll(config.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	tracker, err := LoadTracker(filepath.Join(config.WorkDir, TrackerFile))
	if err != nil {
		return nil, err
	}

	r := &BatchRunner{
		config:    config,
		tracker:   tracker,
		processor: proc,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	switch config.Mode {
	case ModeAudio:
		if r.narrator == nil {
			return nil, errors.New("audio mode needs a narrator")
		}
	case ModeCorrect:
		if r.generator == nil {
			return nil, errors.New("correct mode needs a generator")
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", config.Mode)
	}
	return r, nil
}

func (r *BatchRunner) Tracker() *Tracker {
	return r.tracker
}

// Discover lists the files under dir that match one of the patterns,
// sorted by lower-case file stem.
func Discover(dir string, patterns []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				files = append(files, abs)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		si, sj := strings.ToLower(stem(files[i])), strings.ToLower(stem(files[j]))
		if si != sj {
			return si < sj
		}
		return files[i] < files[j]
	})
	return files, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

const correctedSuffix = "_corrected"

// OutputPath is where the artifact of file is written in mode.
func OutputPath(file string, mode Mode) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	if mode == ModeCorrect {
		return base + correctedSuffix + ".txt"
	}
	return base + ".mp3"
}

// Run processes every new, changed or unfinished file once, in order.
// A failing file is recorded and the pass moves on. Cancellation stops
// the pass before the next file; the interrupted file is never marked
// completed.
func (r *BatchRunner) Run(ctx context.Context) ([]models.FileResult, error) {
	found, err := Discover(r.config.InputDir, r.config.Patterns)
	if err != nil {
		return nil, err
	}
	files := found[:0]
	for _, f := range found {
		if !strings.HasSuffix(stem(f), correctedSuffix) {
			files = append(files, f)
		}
	}
	pending, err := r.tracker.Scan(files)
	if err != nil {
		return nil, err
	}

	ev := newEvents(r.sink)
	ev.publish(models.EventPassStarted, r.config.InputDir, "", fmt.Sprintf("%d files, %d to process", len(files), len(pending)))
	r.log.Info("batch pass started", logger.Int("files", len(files)), logger.Int("pending", len(pending)))

	todo := make(map[string]bool, len(pending))
	for _, f := range pending {
		todo[f] = true
	}

	results := make([]models.FileResult, 0, len(files))
	for _, file := range files {
		if !todo[file] {
			results = append(results, models.FileResult{Path: file, Status: models.StatusCompleted, Skipped: true})
			ev.publish(models.EventItemSkipped, file, models.StatusCompleted, "unchanged")
			r.metrics.Item("file", metrics.OutcomeSkipped)
			continue
		}
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.processFile(ctx, file, ev))
	}

	ev.publish(models.EventPassFinished, r.config.InputDir, "", summary(results))
	return results, ctx.Err()
}

func (r *BatchRunner) processFile(ctx context.Context, file string, ev events) models.FileResult {
	res := models.FileResult{Path: file, Status: models.StatusProcessing}
	log := r.log.With(logger.String("file", file))

	if err := r.tracker.SetStatus(file, models.StatusProcessing); err != nil {
		res.Status = models.StatusFailed
		res.Error = err.Error()
		return res
	}
	ev.publish(models.EventItemStatus, file, models.StatusProcessing, "")

	var err error
	switch r.config.Mode {
	case ModeCorrect:
		res.Output, res.Chunks, err = r.correct(ctx, file)
	default:
		res.Output, res.Chunks, err = r.narrate(ctx, file)
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	res.Status = models.StatusCompleted
	if err != nil {
		res.Status = models.StatusFailed
		res.Error = err.Error()
		log.Error("file failed", logger.Error(err))
	} else {
		log.Info("file completed", logger.String("output", res.Output), logger.Int("chunks", res.Chunks))
	}

	if serr := r.tracker.SetStatus(file, res.Status); serr != nil {
		log.Error("failed to persist status", logger.Error(serr))
		if res.Error == "" {
			res.Status = models.StatusFailed
			res.Error = serr.Error()
		}
	}

	outcome := metrics.OutcomeSuccess
	if res.Status == models.StatusFailed {
		outcome = metrics.OutcomeFailure
	}
	r.metrics.Item("file", outcome)
	ev.publish(models.EventItemStatus, file, res.Status, res.Error)
	return res
}

func (r *BatchRunner) narrate(ctx context.Context, file string) (string, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read: %w", err)
	}
	chunks := r.processor.Process(string(data))
	if len(chunks) == 0 {
		r.log.Info("file has no text", logger.String("file", file))
		return "", 0, nil
	}

	out := OutputPath(file, ModeAudio)
	if err := narrateTo(ctx, r.narrator, segmentDir(r.config.WorkDir, file), chunks, out); err != nil {
		return "", len(chunks), err
	}
	return out, len(chunks), nil
}

func (r *BatchRunner) correct(ctx context.Context, file string) (string, int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read: %w", err)
	}
	pages := processor.SplitPages(string(data))
	if len(pages) == 0 {
		r.log.Info("file has no text", logger.String("file", file))
		return "", 0, nil
	}

	corrected := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", len(pages), err
		}
		res := r.generator.Generate(ctx, llm.OCRCorrectionSystem, llm.OCRCorrection(page))
		if res.Err != nil {
			return "", len(pages), fmt.Errorf("page %d: %w", i+1, res.Err)
		}
		corrected = append(corrected, res.Text)
	}

	out := OutputPath(file, ModeCorrect)
	text := strings.Join(corrected, "\n"+processor.PageSeparator+"\n") + "\n"
	if err := fileutil.WriteFileAtomic(out, []byte(text), 0o644); err != nil {
		return "", len(pages), err
	}
	return out, len(pages), nil
}

func summary(results []models.FileResult) string {
	var done, failed, skipped int
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Status == models.StatusFailed:
			failed++
		default:
			done++
		}
	}
	return fmt.Sprintf("%d completed, %d failed, %d unchanged", done, failed, skipped)
}
