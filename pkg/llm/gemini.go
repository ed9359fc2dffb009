package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type geminiBackend struct {
	client *genai.Client
	config ProviderConfig
}

func newGemini(ctx context.Context, config ProviderConfig, apiKey string) (*geminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingAPIKey)
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiBackend{client: client, config: config}, nil
}

func (b *geminiBackend) complete(ctx context.Context, system, user string) (string, error) {
	model := b.client.GenerativeModel(b.config.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	model.SetMaxOutputTokens(int32(b.config.MaxTokens))
	if b.config.Temperature > 0 {
		model.SetTemperature(float32(b.config.Temperature))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	return strings.Join(parts, ""), nil
}

func (b *geminiBackend) classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return KindFromStatus(apiErr.Code, "")
	}
	return nil
}

func (b *geminiBackend) close() error {
	return b.client.Close()
}
