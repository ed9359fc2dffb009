package runner_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/runner"
	"github.com/xhad/narrator/pkg/tts"
)

// fakeNarrator turns chunk i into "[i]" and fails chunks containing FAIL.
type fakeNarrator struct {
	mu    sync.Mutex
	dirs  []string
	calls int
}

func (f *fakeNarrator) For(dir string) types.Narrator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dir)
	return narratorFunc(func(ctx context.Context, chunks []models.Chunk) ([][]byte, error) {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()

		segments := make([][]byte, len(chunks))
		var errs []error
		for i, c := range chunks {
			if strings.Contains(c.Text, "FAIL") {
				errs = append(errs, fmt.Errorf("chunk %d: synthesis failed", c.Index))
				continue
			}
			segments[i] = []byte(fmt.Sprintf("[%d]", c.Index))
		}
		return segments, errors.Join(errs...)
	})
}

// echoSynth returns "<text>" as audio. Like the speech endpoint it rejects
// input over the limit, and it fails text containing FAIL.
type echoSynth struct {
	calls   atomic.Int32
	longest atomic.Int32
}

func (e *echoSynth) Synthesize(_ context.Context, text string, _ tts.Voice, _ []string) ([]byte, error) {
	e.calls.Add(1)
	for {
		l := e.longest.Load()
		if int32(len(text)) <= l || e.longest.CompareAndSwap(l, int32(len(text))) {
			break
		}
	}
	if len(text) > tts.MaxInputChars {
		return nil, fmt.Errorf("%w: %d", tts.ErrInputTooLong, len(text))
	}
	if strings.Contains(text, "FAIL") {
		return nil, errors.New("synthesis failed")
	}
	return []byte("<" + text + ">"), nil
}

// pipelines narrates through real speech pipelines backed by synth.
func pipelines(synth tts.Synthesizer) runner.NarratorFor {
	return func(dir string) types.Narrator {
		return tts.NewPipeline(synth, tts.FixedSelector{Name: "alloy"}, tts.PipelineConfig{WorkDir: dir}, nil)
	}
}

type narratorFunc func(ctx context.Context, chunks []models.Chunk) ([][]byte, error)

func (f narratorFunc) Narrate(ctx context.Context, chunks []models.Chunk) ([][]byte, error) {
	return f(ctx, chunks)
}

// fakeGenerator answers with a prefix and the prompt content, and fails
// when the content contains FAIL.
type fakeGenerator struct {
	mu      sync.Mutex
	prefix  string
	systems []string
	prompts []models.Prompt
}

func (g *fakeGenerator) Generate(_ context.Context, system string, prompt models.Prompt) models.GenerationResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.systems = append(g.systems, system)
	g.prompts = append(g.prompts, prompt)
	if strings.Contains(prompt.Content, "FAIL") {
		return models.GenerationResult{Err: errors.New("rate limited")}
	}
	return models.GenerationResult{Text: g.prefix + prompt.Content}
}

func (g *fakeGenerator) Prompts() []models.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.Prompt(nil), g.prompts...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *recordingSink) Publish(evt models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) Kinds() []models.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}
