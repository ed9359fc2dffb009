package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/llm"
)

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Generate(_ context.Context, _ string, p models.Prompt) models.GenerationResult {
	g.calls++
	return models.GenerationResult{Text: "echo " + p.Content}
}

func TestThrottled(t *testing.T) {
	next := &countingGenerator{}
	gen := llm.NewThrottled(next, 0, 0)

	for i := 0; i < 3; i++ {
		res := gen.Generate(context.Background(), "", models.Prompt{Content: "x"})
		assert.Equal(t, "echo x", res.Text)
	}
	assert.Equal(t, 3, next.calls)
}

func TestThrottled_Cancelled(t *testing.T) {
	next := &countingGenerator{}
	gen := llm.NewThrottled(next, 0.001, 1)

	ctx := context.Background()
	assert.True(t, gen.Generate(ctx, "", models.Prompt{Content: "x"}).OK())

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	res := gen.Generate(ctx, "", models.Prompt{Content: "y"})

	assert.ErrorIs(t, res.Err, llm.ErrTransport)
	assert.Equal(t, 1, next.calls)
}

func TestPrompts(t *testing.T) {
	p := llm.NewsAnalysis("https://example.com", "AI", []string{"LLM", "agents"}, "", "new lines")
	assert.Contains(t, p.Instructions, "https://example.com")
	assert.Contains(t, p.Instructions, "LLM, agents")
	assert.Contains(t, p.Instructions, llm.DefaultLanguage)
	assert.Equal(t, "new lines", p.Content)

	e := llm.ExplainExcerpt("book.pdf, pages 3-7", "text")
	assert.True(t, len(e.Instructions) > 0)
	assert.Contains(t, e.String(), "book.pdf, pages 3-7")

	assert.Equal(t, "page", llm.OCRCorrection("  page \n").Content)
}
