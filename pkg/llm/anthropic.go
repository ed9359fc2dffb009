package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicBackend struct {
	client anthropic.Client
	config ProviderConfig
}

func newAnthropic(config ProviderConfig, apiKey string) (*anthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingAPIKey)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &anthropicBackend{client: anthropic.NewClient(opts...), config: config}, nil
}

func (b *anthropicBackend) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.config.Model),
		MaxTokens: int64(b.config.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if b.config.Temperature > 0 {
		params.Temperature = anthropic.Float(b.config.Temperature)
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (b *anthropicBackend) classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return nil
	}
	if apiErr.StatusCode == http.StatusRequestEntityTooLarge {
		return ErrContextLength
	}
	return KindFromStatus(apiErr.StatusCode, "")
}

func (b *anthropicBackend) close() error {
	return nil
}
