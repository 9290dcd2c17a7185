package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// RunFlow orchestrates the sync loop: run → done → wait → run. With every <= 0 the
// run happens once. The loop ends when ctx is cancelled; a run in progress is left
// to wind down on its own terms and its error is returned.
func RunFlow(ctx context.Context, clock clockwork.Clock, every time.Duration, logger *slog.Logger, run func(context.Context) error) error {
	for {
		start := clock.Now()
		if err := run(ctx); err != nil {
			return err
		}
		if every <= 0 {
			return nil
		}

		nextRun := start.Add(every)
		waitDur := nextRun.Sub(clock.Now())
		if waitDur <= 0 {
			logger.Info("next run passed, running now", "next_run", nextRun.UTC().Format(time.DateTime))
			continue
		}
		logger.Info("done, wait until next run", "wait", waitDur.Round(time.Second), "until", nextRun.UTC().Format(time.DateTime))
		select {
		case <-clock.After(waitDur):
		case <-ctx.Done():
			logger.Info("stopping", "reason", ctx.Err())
			return nil
		}
	}
}
