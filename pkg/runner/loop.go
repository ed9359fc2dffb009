package runner

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/xhad/narrator/pkg/logger"
)

// Pass is one run over all items.
type Pass func(ctx context.Context) error

// Loop runs pass n times, or until ctx is done when n is zero. A failing
// pass is logged and the loop continues.
func Loop(ctx context.Context, n int, pass Pass, log logger.Logger) error {
	for i := 1; n == 0 || i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("starting pass", logger.Int("pass", i))
		if err := pass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("pass failed", logger.Int("pass", i), logger.Error(err))
		}
	}
	return nil
}

// Schedule runs pass on every tick of the standard cron expression spec
// until ctx is done. Passes never overlap.
func Schedule(ctx context.Context, spec string, pass Pass, log logger.Logger) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		log.Info("scheduled pass started")
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduled pass failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	log.Info("scheduler started", logger.String("schedule", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
