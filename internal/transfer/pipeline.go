// Package transfer downloads archives, decodes them and writes them to the mirror.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"binance-mirror/internal/market"
	"binance-mirror/internal/saver"
	"binance-mirror/internal/storage"
)

const (
	DefaultFetchConcurrency = 50
	DefaultBatchSize        = 20
	DefaultMaxRetries       = 3
)

// Downloader fetches the raw bytes of a remote archive.
type Downloader interface {
	Download(ctx context.Context, key market.ArchiveKey) ([]byte, error)
}

// Config tunes retries and batching.
type Config struct {
	MaxRetries int
	BatchSize  int
	Backoff    Backoff
}

// Pipeline moves archives from the remote catalog into a Store.
type Pipeline struct {
	dl     Downloader
	store  storage.Store
	layout storage.Layout
	saver  saver.TableSaver
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPipeline wires a pipeline. layout.Ext should match sv.Extension().
func NewPipeline(dl Downloader, store storage.Store, layout storage.Layout, sv saver.TableSaver,
	cfg Config, clock clockwork.Clock, logger *slog.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialBackoff(time.Second)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{dl: dl, store: store, layout: layout, saver: sv, cfg: cfg, clock: clock, logger: logger}
}

// NewFetchLimiter bounds concurrent downloads of one symbol sync.
func NewFetchLimiter(n int) *semaphore.Weighted {
	if n <= 0 {
		n = DefaultFetchConcurrency
	}
	return semaphore.NewWeighted(int64(n))
}

// FetchOne stores one archive unless its destination already exists. The existence
// check runs before a limiter slot is taken. Download, decode, canonicalization and
// store all share one budget of MaxRetries retries.
func (p *Pipeline) FetchOne(ctx context.Context, key market.ArchiveKey, limiter *semaphore.Weighted) Outcome {
	dest := p.layout.ArchiveKey(key)
	out := Outcome{Key: key, Dest: dest}
	log := p.logger.With("symbol", key.Symbol, "token", key.Token)

	exists, err := p.store.Exists(ctx, dest)
	if err != nil {
		log.Warn("existence check failed, fetching anyway", "dest", dest, "error", err)
	}
	if exists {
		out.Status = SkippedExisting
		return out
	}

	if err := limiter.Acquire(ctx, 1); err != nil {
		out.Status = Failed
		out.Err = fmt.Errorf("%w: %s: %w", ErrFetch, key, err)
		return out
	}
	defer limiter.Release(1)

	for attempt := 0; ; attempt++ {
		out.Attempts = attempt + 1
		rows, err := p.transferOnce(ctx, key, dest)
		if err == nil {
			out.Status = Stored
			out.Rows = rows
			log.Debug("stored", "dest", dest, "rows", rows, "attempts", out.Attempts)
			return out
		}
		if attempt >= p.cfg.MaxRetries {
			out.Status = Failed
			out.Err = err
			log.Error("fetch failed", "remote", key.RemotePath(), "attempts", out.Attempts, "error", err)
			return out
		}
		delay := p.cfg.Backoff(attempt)
		log.Warn("fetch attempt failed, retrying", "remote", key.RemotePath(),
			"attempt", out.Attempts, "of", p.cfg.MaxRetries+1, "delay", delay, "error", err)
		select {
		case <-p.clock.After(delay):
		case <-ctx.Done():
			out.Status = Failed
			out.Err = fmt.Errorf("%w: %s: %w", ErrFetch, key, ctx.Err())
			return out
		}
	}
}

func (p *Pipeline) transferOnce(ctx context.Context, key market.ArchiveKey, dest string) (int, error) {
	archive, err := p.dl.Download(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	_, data, err := extractSole(archive)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFetch, key.FileName(), err)
	}
	table, err := Decode(data, key.Selection.Market, key.Selection.Category.DataType())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key.FileName(), err)
	}
	if err := Canonicalize(table, p.clock.Now()); err != nil {
		return 0, fmt.Errorf("%s: %w", key.FileName(), err)
	}
	payload, err := p.saver.Encode(table)
	if err != nil {
		return 0, fmt.Errorf("%w: encode %s: %w", ErrFetch, key.FileName(), err)
	}
	if err := p.store.Put(ctx, dest, payload); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return table.Rows, nil
}

// FetchBatch runs keys in fixed-size batches, each batch concurrently and joined
// before the next. Every item is attempted: failures never stop the batch. A
// cancelled ctx stops new batches from starting; started items run to completion on a
// detached context. Outcomes are returned in key order; unscheduled keys are absent.
func (p *Pipeline) FetchBatch(ctx context.Context, keys []market.ArchiveKey, limiter *semaphore.Weighted) []Outcome {
	outs := make([]Outcome, 0, len(keys))
	detached := context.WithoutCancel(ctx)
	total := (len(keys) + p.cfg.BatchSize - 1) / p.cfg.BatchSize

	for b, start := 0, 0; start < len(keys); b, start = b+1, start+p.cfg.BatchSize {
		if ctx.Err() != nil {
			p.logger.Warn("fetch cancelled", "batches_done", b, "batches", total, "error", ctx.Err())
			break
		}
		batch := keys[start:min(start+p.cfg.BatchSize, len(keys))]
		res := make([]Outcome, len(batch))
		var wg sync.WaitGroup
		for i, k := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res[i] = p.FetchOne(detached, k, limiter)
			}()
		}
		wg.Wait()

		c := CountOutcomes(res)
		p.logger.Info("batch done", "batch", b+1, "of", total,
			"stored", c.Stored, "skipped", c.Skipped, "failed", c.Failed)
		outs = append(outs, res...)
	}
	return outs
}
