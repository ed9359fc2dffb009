package runner_test

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/processor"
	"github.com/xhad/narrator/pkg/runner"
)

func TestDocuments(t *testing.T) {
	pdfs, texts := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(pdfs, "b.pdf"), "%PDF")
	writeFile(t, filepath.Join(pdfs, "notes.md"), "skip")
	writeFile(t, filepath.Join(texts, "a.TXT"), "text")
	require.NoError(t, os.Mkdir(filepath.Join(texts, "dir.txt"), 0o755))

	files, err := runner.Documents([]string{pdfs, texts})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(pdfs, "b.pdf"), filepath.Join(texts, "a.TXT")}, files)

	_, err = runner.Documents([]string{filepath.Join(pdfs, "missing")})
	assert.Error(t, err)
}

func TestRandomReader_NoDocuments(t *testing.T) {
	r := runner.NewRandomReader(runner.RandomConfig{Dirs: []string{t.TempDir()}}, rand.New(rand.NewSource(1)),
		&fakeGenerator{}, (&fakeNarrator{}).For, processor.NewWithConfig(processor.ProcessorConfig{}), nil)

	_, err := r.Read(context.Background())
	assert.ErrorIs(t, err, runner.ErrNoDocuments)
}

func TestRandomReader_Read(t *testing.T) {
	dir, out := t.TempDir(), t.TempDir()
	pages := []string{"page one text", "page two text", "page three text"}
	writeFile(t, filepath.Join(dir, "book.txt"), strings.Join(pages, "\n"+processor.PageSeparator+"\n"))
	gen := &fakeGenerator{prefix: "explained: "}
	work := filepath.Join(t.TempDir(), "random")

	r := runner.NewRandomReader(runner.RandomConfig{Dirs: []string{dir}, Pages: 2, OutputDir: out, Language: "English", WorkDir: work},
		rand.New(rand.NewSource(42)), gen, pipelines(&echoSynth{}),
		processor.NewWithConfig(processor.ProcessorConfig{}), logger.NewNop())

	res, err := r.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "book.txt"), res.File)
	assert.Contains(t, []int{1, 2}, res.StartPage)
	assert.Equal(t, res.StartPage+1, res.EndPage)
	assert.True(t, strings.HasPrefix(res.Text, "explained: "))
	assert.Contains(t, res.Text, pages[res.StartPage-1])
	assert.Equal(t, out, filepath.Dir(res.Output))
	audio, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(audio), "<explained: "))
	assert.Empty(t, dirNames(t, work), "segments are removed once the audio is written")

	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0].Instructions, "book, pages")
	assert.Equal(t, llm.SummarizerSystem("English"), gen.systems[0])
}
