package llm

import (
	"context"
	"fmt"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
	"golang.org/x/time/rate"
)

// Throttled limits the request rate of a Generator.
type Throttled struct {
	next    types.Generator
	limiter *rate.Limiter
}

// NewThrottled allows perSecond requests with the given burst. A
// non-positive rate disables limiting.
func NewThrottled(next types.Generator, perSecond float64, burst int) *Throttled {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) Generate(ctx context.Context, systemPrompt string, prompt models.Prompt) models.GenerationResult {
	if err := t.limiter.Wait(ctx); err != nil {
		return models.GenerationResult{Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	return t.next.Generate(ctx, systemPrompt, prompt)
}
