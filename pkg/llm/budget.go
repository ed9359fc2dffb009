package llm

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/xhad/narrator/internal/models"
)

// DefaultContextLimit is the token budget of the default chat models.
const DefaultContextLimit = 128000

// Tokenizer counts tokens and cuts text to a token prefix.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, tokens int) string
}

type tiktokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a cl100k_base tokenizer.
func NewTiktoken() (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &tiktokenizer{enc: enc}, nil
}

func (t *tiktokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenizer) Truncate(text string, tokens int) string {
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= tokens {
		return text
	}
	return t.enc.Decode(ids[:tokens])
}

// EstimateTokenizer approximates one token per four bytes. It is used when
// the tiktoken vocabulary cannot be loaded.
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	return (len(text) + 3) / 4
}

func (EstimateTokenizer) Truncate(text string, tokens int) string {
	limit := tokens * 4
	if limit >= len(text) {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// Budget keeps a request inside the model's context window.
type Budget struct {
	Limit     int
	Tokenizer Tokenizer
}

// Fit truncates prompt.Content so that system, instructions and content
// together fit Limit. Instructions are never altered.
func (b Budget) Fit(system string, prompt models.Prompt) models.Prompt {
	if b.Limit <= 0 || b.Tokenizer == nil {
		return prompt
	}

	fixed := b.Tokenizer.Count(system) + b.Tokenizer.Count(prompt.Instructions)
	if fixed+b.Tokenizer.Count(prompt.Content) <= b.Limit {
		return prompt
	}

	available := b.Limit - fixed
	if available <= 0 {
		prompt.Content = ""
		return prompt
	}
	prompt.Content = b.Tokenizer.Truncate(prompt.Content, available)
	return prompt
}
