package config

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/robfig/cron/v3"
	"github.com/xhad/narrator/pkg/processor"
	"github.com/xhad/narrator/pkg/tts"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if !c.LLM.Provider.Valid() {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be positive",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.BaseURL != "" && !validHTTPURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid base URL",
		})
	}

	// Validate Speech config
	if c.Speech.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "speech.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Speech.Voice != "" && !slices.Contains(tts.Voices, c.Speech.Voice) {
		errors = append(errors, ValidationError{
			Field:   "speech.voice",
			Message: fmt.Sprintf("unknown voice %q", c.Speech.Voice),
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 || c.Processor.ChunkSize > tts.MaxInputChars {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: fmt.Sprintf("chunk_size must be between 1 and %d", tts.MaxInputChars),
		})
	}

	switch processor.Strategy(c.Processor.Strategy) {
	case processor.StrategyParagraph, processor.StrategySentence, processor.StrategyWord, processor.StrategyChar:
	default:
		errors = append(errors, ValidationError{
			Field:   "processor.strategy",
			Message: fmt.Sprintf("unknown strategy %q", c.Processor.Strategy),
		})
	}

	// Validate Scraper config
	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate State config
	switch c.State.Backend {
	case "file":
	case "redis":
		if c.State.Redis.Addr == "" {
			errors = append(errors, ValidationError{
				Field:   "state.redis.addr",
				Message: "redis address is required for the redis backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "state.backend",
			Message: "backend must be file or redis",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate News config
	if c.News.Schedule != "" {
		if _, err := cron.ParseStandard(c.News.Schedule); err != nil {
			errors = append(errors, ValidationError{
				Field:   "news.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if c.Books.Mode != "audio" && c.Books.Mode != "correct" {
		errors = append(errors, ValidationError{
			Field:   "books.mode",
			Message: "mode must be audio or correct",
		})
	}

	// Validate sources
	for i, src := range c.Sources {
		if !validHTTPURL(src.URL) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("sources[%d].url", i),
				Message: fmt.Sprintf("invalid source URL %q", src.URL),
			})
		}
	}

	return errors
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
