package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaURL is the local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

type ollamaBackend struct {
	llm    *ollama.LLM
	config ProviderConfig
}

func newOllama(config ProviderConfig) (*ollamaBackend, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaURL
	}

	model, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &ollamaBackend{llm: model, config: config}, nil
}

func (b *ollamaBackend) complete(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	opts := []llms.CallOption{llms.WithMaxTokens(b.config.MaxTokens)}
	if b.config.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(b.config.Temperature))
	}

	resp, err := b.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

// Ollama reports failures as plain errors; they are treated as transport errors.
func (b *ollamaBackend) classify(error) error {
	return nil
}

func (b *ollamaBackend) close() error {
	return nil
}
