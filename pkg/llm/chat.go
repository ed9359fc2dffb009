package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/metrics"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
)

// Providers lists the supported providers.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama}

func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 2 * time.Second
	MaxBackoff         = 32 * time.Second
	DefaultMaxTokens   = 4096
)

var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-1.5-flash",
	ProviderOllama:    "mistral",
}

// ProviderConfig selects and tunes the chat backend.
type ProviderConfig struct {
	Provider     Provider      `yaml:"provider"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	ContextLimit int           `yaml:"context_limit"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	BaseBackoff  time.Duration `yaml:"-"`
}

// Keys holds provider credentials.
type Keys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
}

// backend is one provider's chat completion call.
type backend interface {
	complete(ctx context.Context, system, user string) (string, error)
	// classify returns the error kind of a failed call, or nil if unknown.
	classify(err error) error
	close() error
}

// Client generates text through one configured provider.
type Client struct {
	config  ProviderConfig
	backend backend
	budget  Budget
	log     logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTokenizer(t Tokenizer) Option {
	return func(c *Client) { c.budget.Tokenizer = t }
}

// New validates the configuration and connects the selected provider.
func New(ctx context.Context, config ProviderConfig, keys Keys, opts ...Option) (*Client, error) {
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	if !config.Provider.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
	}
	if config.Model == "" {
		config.Model = defaultModels[config.Provider]
	}
	if config.ContextLimit <= 0 {
		config.ContextLimit = DefaultContextLimit
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultBaseBackoff
	}

	c := &Client{
		config: config,
		budget: Budget{Limit: config.ContextLimit},
		log:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.budget.Tokenizer == nil {
		tok, err := NewTiktoken()
		if err != nil {
			c.log.Warn("falling back to estimated token counts", logger.Error(err))
			tok = EstimateTokenizer{}
		}
		c.budget.Tokenizer = tok
	}

	var err error
	switch config.Provider {
	case ProviderOpenAI:
		c.backend, err = newOpenAI(config, keys.OpenAI)
	case ProviderAnthropic:
		c.backend, err = newAnthropic(config, keys.Anthropic)
	case ProviderGemini:
		c.backend, err = newGemini(ctx, config, keys.Gemini)
	case ProviderOllama:
		c.backend, err = newOllama(config)
	}
	if err != nil {
		return nil, err
	}

	c.log = c.log.With(logger.String("provider", string(config.Provider)), logger.String("model", config.Model))
	return c, nil
}

func (c *Client) Config() ProviderConfig {
	return c.config
}

// Generate sends one system + user exchange. Content is truncated to the
// context budget, rate limits are retried with exponential backoff and
// every failure is returned as a classified *Error in the result.
func (c *Client) Generate(ctx context.Context, systemPrompt string, prompt models.Prompt) models.GenerationResult {
	started := time.Now()
	fitted := c.budget.Fit(systemPrompt, prompt)
	if len(fitted.Content) < len(prompt.Content) {
		c.log.Debug("truncated prompt content",
			logger.Int("from", len(prompt.Content)), logger.Int("to", len(fitted.Content)))
	}

	text, err := c.generateWithRetry(ctx, systemPrompt, fitted.String())
	c.metrics.Generation(string(c.config.Provider), started, err)
	if err != nil {
		c.log.Error("generation failed", logger.Error(err))
		return models.GenerationResult{Err: err}
	}
	return models.GenerationResult{Text: text}
}

func (c *Client) generateWithRetry(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.BaseBackoff
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}
			c.log.Warn("rate limited, backing off", logger.Duration("backoff", backoff), logger.Int("attempt", attempt))

			select {
			case <-ctx.Done():
				return "", c.wrap(ErrTransport, ctx.Err())
			case <-time.After(backoff):
			}
		}

		text, err := c.call(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}
	}

	return "", lastErr
}

func (c *Client) call(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	text, err := c.backend.complete(ctx, system, user)
	if err != nil {
		return "", c.wrap(kindOf(err, c.backend.classify), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", c.wrap(ErrEmptyResponse, nil)
	}
	return text, nil
}

func (c *Client) wrap(kind, err error) error {
	return &Error{Provider: c.config.Provider, Model: c.config.Model, Kind: kind, Err: err}
}

func (c *Client) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.close()
}
