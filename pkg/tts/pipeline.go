package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/fileutil"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/processor"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 5

type PipelineConfig struct {
	Concurrency int
	Models      []string
	// Retries is the number of extra attempts per chunk.
	Retries int
	// WorkDir, if set, stores every segment under a name derived from its
	// position and text, and reuses a non-empty segment of the same text on
	// the next run.
	WorkDir string
	// OnSegment is called after each chunk finishes, from the worker goroutine.
	OnSegment func(index int, err error)
}

// Pipeline synthesizes many chunks concurrently and returns the segments
// in chunk order.
type Pipeline struct {
	synth    Synthesizer
	selector VoiceSelector
	config   PipelineConfig
	log      logger.Logger
}

func NewPipeline(synth Synthesizer, selector VoiceSelector, config PipelineConfig, log logger.Logger) *Pipeline {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if len(config.Models) == 0 {
		config.Models = DefaultModels
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if selector == nil {
		selector = NewRandomSelector(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{synth: synth, selector: selector, config: config, log: log}
}

func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

// SegmentPath is the work file of the chunk with the given index and text.
func SegmentPath(dir string, index int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return filepath.Join(dir, fmt.Sprintf("chunk_%04d_%s.mp3", index, hex.EncodeToString(sum[:6])))
}

// pieces splits text that is too long for one speech request. The pieces
// are synthesized in order and their audio is joined into one segment.
func pieces(text string) []string {
	if len(text) <= MaxInputChars {
		return []string{text}
	}
	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      MaxInputChars,
		Strategy:       processor.StrategySentence,
		AllowHardSplit: true,
	})
	return models.Texts(proc.Process(text))
}

// SynthesizeAll returns one segment and one error slot per chunk, both
// addressed by the chunk's position. A failed chunk has a nil segment and a
// non-nil error; other chunks are not affected.
func (p *Pipeline) SynthesizeAll(ctx context.Context, chunks []models.Chunk) ([][]byte, []error) {
	segments := make([][]byte, len(chunks))
	errs := make([]error, len(chunks))

	if p.config.WorkDir != "" {
		if err := os.MkdirAll(p.config.WorkDir, 0o755); err != nil {
			for i := range errs {
				errs[i] = fmt.Errorf("failed to create work dir: %w", err)
			}
			return segments, errs
		}
	}

	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			segments[i], errs[i] = p.synthesize(ctx, chunk)
			if errs[i] != nil {
				p.log.Warn("chunk failed", logger.Int("chunk", chunk.Index), logger.Error(errs[i]))
			}
			if p.config.OnSegment != nil {
				p.config.OnSegment(i, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return segments, errs
}

func (p *Pipeline) synthesize(ctx context.Context, chunk models.Chunk) ([]byte, error) {
	var path string
	if p.config.WorkDir != "" {
		path = SegmentPath(p.config.WorkDir, chunk.Index, chunk.Text)
		if fileutil.NonEmpty(path) {
			p.log.Debug("reusing segment", logger.String("path", path))
			return os.ReadFile(path)
		}
	}

	parts := pieces(chunk.Text)
	if len(parts) > 1 {
		p.log.Debug("splitting oversized chunk", logger.Int("chunk", chunk.Index), logger.Int("pieces", len(parts)))
	}
	audio := make([][]byte, 0, len(parts))
	for _, text := range parts {
		data, err := p.synthesizePiece(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		audio = append(audio, data)
	}
	segment := bytes.Join(audio, nil)

	if path != "" {
		if err := fileutil.WriteFileAtomic(path, segment, 0o644); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
	}
	return segment, nil
}

func (p *Pipeline) synthesizePiece(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	var err error
	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		audio, err = p.synth.Synthesize(ctx, text, p.selector.Select(), p.config.Models)
		if err == nil || errors.Is(err, ErrInputTooLong) {
			break
		}
	}
	return audio, err
}

// Narrate implements the runner's narrator contract: segments in chunk
// order, nil for failed chunks, and the failures joined into one error.
func (p *Pipeline) Narrate(ctx context.Context, chunks []models.Chunk) ([][]byte, error) {
	segments, errs := p.SynthesizeAll(ctx, chunks)
	return segments, errors.Join(errs...)
}

// Failed counts the non-nil errors.
func Failed(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
