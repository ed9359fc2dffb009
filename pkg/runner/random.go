package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/pdf"
	"github.com/xhad/narrator/pkg/processor"
)

const DefaultRandomPages = 5

var ErrNoDocuments = errors.New("no pdf or txt files found")

type RandomConfig struct {
	Dirs      []string
	Pages     int
	Language  string
	OutputDir string
	// WorkDir holds the speech segments of an excerpt until its audio is
	// written.
	WorkDir string
}

// RandomResult describes one excerpt that was read aloud.
type RandomResult struct {
	File      string
	StartPage int
	EndPage   int
	Text      string
	Output    string
}

// RandomReader explains a random excerpt of a random document.
type RandomReader struct {
	config    RandomConfig
	rng       *rand.Rand
	readerFor func(path string) types.PageReader
	generator types.Generator
	narrator  NarratorFor
	processor processor.Processor
	log       logger.Logger
}

func NewRandomReader(config RandomConfig, rng *rand.Rand, generator types.Generator, narrator NarratorFor, proc processor.Processor, log logger.Logger) *RandomReader {
	if config.Pages <= 0 {
		config.Pages = DefaultRandomPages
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RandomReader{
		config:    config,
		rng:       rng,
		readerFor: pdf.ForPath,
		generator: generator,
		narrator:  narrator,
		processor: proc,
		log:       log,
	}
}

// Documents lists the pdf and txt files directly inside dirs.
func Documents(dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".pdf" || ext == ".txt") {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Pick chooses a document and a page range.
func (r *RandomReader) Pick() (string, int, error) {
	files, err := Documents(r.config.Dirs)
	if err != nil {
		return "", 0, err
	}
	if len(files) == 0 {
		return "", 0, ErrNoDocuments
	}
	file := files[r.rng.Intn(len(files))]

	total, err := r.readerFor(file).PageCount(file)
	if err != nil {
		return "", 0, err
	}
	if total == 0 {
		return "", 0, fmt.Errorf("%s has no pages", file)
	}
	start := r.rng.Intn(max(1, total-r.config.Pages+1))
	return file, start, nil
}

// Read explains and narrates one random excerpt.
func (r *RandomReader) Read(ctx context.Context) (RandomResult, error) {
	file, start, err := r.Pick()
	if err != nil {
		return RandomResult{}, err
	}
	res := RandomResult{File: file, StartPage: start + 1, EndPage: start + r.config.Pages}
	log := r.log.With(logger.String("file", file), logger.Int("page", res.StartPage))

	text, err := r.readerFor(file).ReadPages(file, start, r.config.Pages)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(text) == "" {
		return res, fmt.Errorf("no text on pages %d-%d of %s", res.StartPage, res.EndPage, file)
	}

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	source := fmt.Sprintf("%s, pages %d to %d", name, res.StartPage, res.EndPage)

	system, prompt := llm.TutorSystem(r.config.Language), llm.ExplainExcerpt(source, text)
	if !strings.EqualFold(filepath.Ext(file), ".pdf") {
		system, prompt = llm.SummarizerSystem(r.config.Language), llm.ExplainText(source, r.config.Language, text)
	}
	gen := r.generator.Generate(ctx, system, prompt)
	if gen.Err != nil {
		return res, fmt.Errorf("explanation failed: %w", gen.Err)
	}
	res.Text = gen.Text
	log.Info("excerpt explained", logger.Int("length", len(gen.Text)))

	res.Output = filepath.Join(r.config.OutputDir, fmt.Sprintf("%s_p%d.mp3", name, res.StartPage))
	var segments string
	if r.config.WorkDir != "" {
		segments = segmentDir(r.config.WorkDir, res.Output)
	}
	if err := narrateTo(ctx, r.narrator, segments, r.processor.Process(gen.Text), res.Output); err != nil {
		return res, err
	}
	return res, nil
}
