package processor_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/processor"
)

// sentenceText builds n sentences of exactly 100 bytes each, separated by a space.
func sentenceText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		s := fmt.Sprintf("Sentence %03d ", i)
		s += strings.Repeat("x", 99-len(s))
		b.WriteString(s + ".")
	}
	return b.String()
}

func TestChunk_SentenceBoundaries(t *testing.T) {
	text := sentenceText(90)
	require.Greater(t, len(text), 9000)

	chunks := processor.Chunk(text, 4000, processor.StrategyParagraph)

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len(c.Text), 4000)
		if i < len(chunks)-1 {
			assert.True(t, strings.HasSuffix(c.Text, "."), "chunk %d should end on a sentence", i)
		}
	}
}

func TestChunk_OversizedSentenceFallsBackToWords(t *testing.T) {
	sentence := strings.TrimSpace(strings.Repeat("word ", 1000)) + "."
	require.Len(t, sentence, 5000)

	chunks := processor.Chunk(sentence, 4000, processor.StrategySentence)

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 4000)
	}
}

func TestChunk_OversizedWordKeptWhole(t *testing.T) {
	long := strings.Repeat("a", 50)
	chunks := processor.Chunk("short words "+long+" end", 20, processor.StrategyWord)

	require.Len(t, chunks, 3)
	assert.Equal(t, "short words", chunks[0].Text)
	assert.Equal(t, long, chunks[1].Text)
	assert.Equal(t, "end", chunks[2].Text)
}

func TestChunk_HardSplitRespectsBound(t *testing.T) {
	text := strings.Repeat("ä", 30) + " tail"

	chunks := processor.Chunk(text, 7, processor.StrategyChar)

	require.NotEmpty(t, chunks)
	var rebuilt strings.Builder
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 7)
		rebuilt.WriteString(c.Text)
	}
	assert.Equal(t, strings.ReplaceAll(text, " ", ""), strings.ReplaceAll(rebuilt.String(), " ", ""))
}

func TestProcessor_HardSplitOption(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      10,
		Strategy:       processor.StrategyWord,
		AllowHardSplit: true,
	})

	chunks := p.Process(strings.Repeat("z", 25))

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 10)
	}
}

func TestChunk_Properties(t *testing.T) {
	inputs := []string{
		"",
		"   \n\n  \t ",
		"One. Two! Three? Four",
		"First paragraph with text.\n\nSecond paragraph.\n   \nThird one here, a little longer than the rest of them.",
		sentenceText(25),
		strings.Repeat("lorem ipsum dolor sit amet ", 300),
	}
	strategies := []processor.Strategy{
		processor.StrategyParagraph,
		processor.StrategySentence,
		processor.StrategyWord,
		processor.StrategyChar,
	}

	for i, input := range inputs {
		for _, strategy := range strategies {
			t.Run(fmt.Sprintf("%d/%s", i, strategy), func(t *testing.T) {
				chunks := processor.Chunk(input, 120, strategy)

				for _, c := range chunks {
					assert.NotEmpty(t, strings.TrimSpace(c.Text), "no empty chunks")
					assert.Equal(t, strings.TrimSpace(c.Text), c.Text, "chunks are trimmed")
					if strategy == processor.StrategyWord || strategy == processor.StrategyChar {
						assert.LessOrEqual(t, len(c.Text), 120)
					}
				}

				joined := strings.Join(models.Texts(chunks), " ")
				assert.Equal(t, strings.Join(strings.Fields(input), ""), strings.Join(strings.Fields(joined), ""),
					"no characters lost")
			})
		}
	}
}

func TestRebalance(t *testing.T) {
	chunks := processor.Chunk(sentenceText(10), 100, processor.StrategySentence)
	require.Len(t, chunks, 10)

	merged := processor.Rebalance(chunks, 3, " ")

	require.Len(t, merged, 3)
	assert.Equal(t, 4, strings.Count(merged[0].Text, "Sentence"))
	assert.Equal(t, 3, strings.Count(merged[1].Text, "Sentence"))
	assert.Equal(t, 3, strings.Count(merged[2].Text, "Sentence"))
	assert.Greater(t, len(merged[0].Text), 100, "merged chunks may exceed the size bound")
	for i, c := range merged {
		assert.Equal(t, i, c.Index)
	}

	assert.Equal(t, chunks, processor.Rebalance(chunks, 20, " "), "fewer chunks than target are left alone")
}

func TestProcessor_Defaults(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	cfg := p.Config()
	assert.Equal(t, processor.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, processor.StrategyParagraph, cfg.Strategy)
}

func TestProcessor_TargetChunks(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    100,
		Strategy:     processor.StrategySentence,
		TargetChunks: 2,
	})

	chunks := p.Process(sentenceText(7))

	require.Len(t, chunks, 2)
	assert.Equal(t, 4, strings.Count(chunks[0].Text, "Sentence"))
}

func TestSplitPages(t *testing.T) {
	text := "page one\n" + processor.PageSeparator + "\n\n  \n" + processor.PageSeparator + "\npage three"

	pages := processor.SplitPages(text)

	assert.Equal(t, []string{"page one", "page three"}, pages)
}
