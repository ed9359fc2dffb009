// Package tts turns text into speech through the OpenAI audio API.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/metrics"
)

// MaxInputChars stays below the 4096 character limit of the speech endpoint.
const MaxInputChars = 4000

const DefaultTimeout = 120 * time.Second

// DefaultModels are tried in order.
var DefaultModels = []string{"gpt-4o-mini-tts", "tts-1"}

var (
	ErrInputTooLong     = errors.New("input exceeds speech input limit")
	ErrNoModelAvailable = errors.New("no speech model available")
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice, models []string) ([]byte, error)
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Format  string
}

// OpenAI synthesizes speech with the audio/speech endpoint.
type OpenAI struct {
	client  openai.Client
	config  OpenAIConfig
	metrics *metrics.Metrics
}

func NewOpenAI(config OpenAIConfig, m *metrics.Metrics) (*OpenAI, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Format == "" {
		config.Format = "mp3"
	}
	client, err := llm.NewOpenAIClient(config.APIKey, config.BaseURL)
	if err != nil {
		return nil, err
	}
	return &OpenAI{client: client, config: config, metrics: m}, nil
}

// Synthesize tries each model in order. Only a model that is unavailable
// moves on to the next one; any other failure is returned immediately.
func (o *OpenAI) Synthesize(ctx context.Context, text string, voice Voice, models []string) ([]byte, error) {
	if len(text) > MaxInputChars {
		return nil, fmt.Errorf("%w: %d > %d", ErrInputTooLong, len(text), MaxInputChars)
	}
	if len(models) == 0 {
		models = DefaultModels
	}

	var lastErr error
	for _, model := range models {
		audio, err := o.speak(ctx, model, text, voice)
		if err == nil {
			return audio, nil
		}
		if !errors.Is(err, llm.ErrModelUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrNoModelAvailable, lastErr)
}

// acceptsInstructions reports whether model honours delivery instructions.
func acceptsInstructions(model string) bool {
	return model != "tts-1" && model != "tts-1-hd"
}

func (o *OpenAI) speak(ctx context.Context, model, text string, voice Voice) (audio []byte, err error) {
	started := time.Now()
	defer func() { o.metrics.Synthesis(model, started, err) }()

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	body := map[string]any{
		"model":           model,
		"input":           text,
		"voice":           voice.Name,
		"response_format": o.config.Format,
	}
	if voice.Instructions != "" && acceptsInstructions(model) {
		body["instructions"] = voice.Instructions
	}

	var resp *http.Response
	if err := o.client.Post(ctx, "audio/speech", body, &resp); err != nil {
		return nil, classify(model, err)
	}
	defer resp.Body.Close()

	audio, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.Error{Provider: llm.ProviderOpenAI, Model: model, Kind: llm.ErrTransport, Err: err}
	}
	if len(audio) == 0 {
		return nil, &llm.Error{Provider: llm.ProviderOpenAI, Model: model, Kind: llm.ErrEmptyResponse}
	}
	return audio, nil
}

func classify(model string, err error) error {
	kind := llm.ClassifyOpenAI(err)
	if kind == nil {
		kind = llm.ErrTransport
	}
	return &llm.Error{Provider: llm.ProviderOpenAI, Model: model, Kind: kind, Err: err}
}
