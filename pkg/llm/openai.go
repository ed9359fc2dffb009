package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

type openAIBackend struct {
	client openai.Client
	config ProviderConfig
}

// NewOpenAIClient builds an SDK client. Retries are handled by the caller.
func NewOpenAIClient(apiKey, baseURL string) (openai.Client, error) {
	if apiKey == "" {
		return openai.Client{}, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...), nil
}

func newOpenAI(config ProviderConfig, apiKey string) (*openAIBackend, error) {
	client, err := NewOpenAIClient(apiKey, config.BaseURL)
	if err != nil {
		return nil, err
	}
	return &openAIBackend{client: client, config: config}, nil
}

func (b *openAIBackend) complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxCompletionTokens: openai.Int(int64(b.config.MaxTokens)),
	}
	if b.config.Temperature > 0 {
		params.Temperature = openai.Float(b.config.Temperature)
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

// ClassifyOpenAI returns the error kind of an OpenAI API error, or nil.
func ClassifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return KindFromStatus(apiErr.StatusCode, apiErr.Code)
	}
	return nil
}

func (b *openAIBackend) classify(err error) error {
	return ClassifyOpenAI(err)
}

func (b *openAIBackend) close() error {
	return nil
}
