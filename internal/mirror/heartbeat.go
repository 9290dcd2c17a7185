package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// progress is shared by the symbol goroutines of a sweep and read by the heartbeat.
type progress struct {
	mu                               sync.Mutex
	total                            int
	done, upToDate, failed           int
	fetched, skipped, removed, items int
}

func (p *progress) add(r SymbolReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	switch r.Status {
	case StatusUpToDate:
		p.upToDate++
	case StatusFailed:
		p.failed++
	}
	p.fetched += r.Fetched
	p.skipped += r.Skipped
	p.removed += r.Removed
	p.items += r.Failed
}

func runHeartbeat(ctx context.Context, clock clockwork.Clock, interval time.Duration, p *progress, logger *slog.Logger) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.mu.Lock()
			attrs := []any{
				"done", p.done, "total", p.total, "up_to_date", p.upToDate, "failed_symbols", p.failed,
				"fetched", p.fetched, "skipped", p.skipped, "removed", p.removed, "failed_items", p.items,
			}
			p.mu.Unlock()
			logger.Info("heartbeat", attrs...)
		}
	}
}
