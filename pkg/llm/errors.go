package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. An *Error matches its kind with errors.Is.
var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrContextLength    = errors.New("context length exceeded")
	ErrTransport        = errors.New("transport error")
	ErrEmptyResponse    = errors.New("empty response")

	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("missing api key")
)

// Error is a classified provider failure.
type Error struct {
	Provider Provider
	Model    string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Model, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindFromStatus maps an HTTP status and provider error code to an error kind.
func KindFromStatus(status int, code string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == "context_length_exceeded" || code == "string_above_max_length":
		return ErrContextLength
	case status == http.StatusNotFound || code == "model_not_found":
		return ErrModelUnavailable
	default:
		return ErrTransport
	}
}

// kindOf falls back to ErrTransport for errors without provider detail.
func kindOf(err error, classify func(error) error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTransport
	}
	if classify != nil {
		if kind := classify(err); kind != nil {
			return kind
		}
	}
	return ErrTransport
}
