package llm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/llm"
)

func TestBudget_Fit(t *testing.T) {
	content := strings.TrimSpace(strings.Repeat("token ", 100))

	tests := []struct {
		name      string
		limit     int
		system    string
		prompt    models.Prompt
		wantWords int
	}{
		{"fits", 200, "sys", models.Prompt{Instructions: "do it", Content: content}, 100},
		{"exactly at limit", 103, "sys", models.Prompt{Instructions: "do it", Content: content}, 100},
		{"truncated", 50, "one two", models.Prompt{Instructions: "three four five", Content: content}, 45},
		{"no room left", 4, "one two", models.Prompt{Instructions: "three four five", Content: content}, 0},
		{"disabled", 0, "sys", models.Prompt{Content: content}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := llm.Budget{Limit: tt.limit, Tokenizer: wordTokenizer{}}

			got := b.Fit(tt.system, tt.prompt)

			assert.Equal(t, tt.prompt.Instructions, got.Instructions)
			assert.Len(t, strings.Fields(got.Content), tt.wantWords)
		})
	}
}

func TestEstimateTokenizer(t *testing.T) {
	tok := llm.EstimateTokenizer{}

	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 1, tok.Count("abc"))
	assert.Equal(t, 3, tok.Count(strings.Repeat("a", 12)))

	cut := tok.Truncate(strings.Repeat("ü", 10), 1)
	assert.Equal(t, "üü", cut, "cuts on rune boundaries")
	assert.Equal(t, "short", tok.Truncate("short", 10))
}
