// Package mirror keeps a local or S3 mirror of one market selection in sync with the
// remote archive.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"binance-mirror/internal/coverage"
	"binance-mirror/internal/market"
	"binance-mirror/internal/model"
	"binance-mirror/internal/storage"
	"binance-mirror/internal/symbols"
	"binance-mirror/internal/transfer"
)

const (
	DefaultSymbolConcurrency = 10
	DefaultWaveSize          = 20
	defaultHeartbeat         = 30 * time.Second
)

// Catalog is the remote side of a sync.
type Catalog interface {
	ListSymbols(ctx context.Context) ([]string, error)
	ListFiles(ctx context.Context, f market.Frequency, symbol string) ([]string, error)
}

// Config bounds the sweep. Zero values take the defaults.
type Config struct {
	FetchConcurrency  int
	SymbolConcurrency int
	WaveSize          int
	HeartbeatInterval time.Duration
}

// Syncer reconciles symbols of one selection against a Store.
type Syncer struct {
	cat    Catalog
	store  storage.Store
	layout storage.Layout
	pipe   *transfer.Pipeline
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewSyncer(cat Catalog, store storage.Store, layout storage.Layout, pipe *transfer.Pipeline,
	cfg Config, clock clockwork.Clock, logger *slog.Logger) *Syncer {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = transfer.DefaultFetchConcurrency
	}
	if cfg.SymbolConcurrency <= 0 {
		cfg.SymbolConcurrency = DefaultSymbolConcurrency
	}
	if cfg.WaveSize <= 0 {
		cfg.WaveSize = DefaultWaveSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{cat: cat, store: store, layout: layout, pipe: pipe, cfg: cfg, clock: clock, logger: logger}
}

// Selection is the market selection being mirrored.
func (s *Syncer) Selection() market.Selection { return s.layout.Selection }

// ListSymbols lists every remote symbol. A listing error means the set is unknown,
// even if some symbols came back.
func (s *Syncer) ListSymbols(ctx context.Context) ([]string, error) {
	syms, err := s.cat.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols of %s: %w", s.layout.Selection, err)
	}
	return syms, nil
}

// LocalCoverage reads the tokens already mirrored for symbol.
func (s *Syncer) LocalCoverage(ctx context.Context, symbol string) (coverage.Coverage, error) {
	names, err := s.store.List(ctx, s.layout.SymbolDir(symbol))
	if err != nil {
		return coverage.Coverage{}, err
	}
	tokens := make([]model.DateToken, 0, len(names))
	for _, n := range names {
		if tok, ok := s.layout.TokenFromName(n); ok {
			tokens = append(tokens, tok)
		}
	}
	return coverage.Split(tokens), nil
}

// RemoteCoverage lists the monthly and daily archives of symbol concurrently.
func (s *Syncer) RemoteCoverage(ctx context.Context, symbol string) (coverage.Coverage, error) {
	var monthly, daily []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		monthly, err = s.cat.ListFiles(gctx, market.Monthly, symbol)
		return err
	})
	g.Go(func() (err error) {
		daily, err = s.cat.ListFiles(gctx, market.Daily, symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return coverage.Coverage{}, err
	}

	cov := coverage.Coverage{Months: coverage.Set{}, Days: coverage.Set{}}
	s.addTokens(cov.Months, monthly, model.DateToken.IsMonth)
	s.addTokens(cov.Days, daily, model.DateToken.IsDay)
	return cov, nil
}

func (s *Syncer) addTokens(dst coverage.Set, keys []string, want func(model.DateToken) bool) {
	for _, k := range keys {
		tok, err := market.TokenFromKey(k)
		if err != nil || !want(tok) {
			s.logger.Debug("ignoring remote key", "key", k)
			continue
		}
		dst.Add(tok)
	}
}

// ComputeCoverage is the dry-run plan of one symbol.
func (s *Syncer) ComputeCoverage(ctx context.Context, symbol string) (coverage.Result, error) {
	local, err := s.LocalCoverage(ctx, symbol)
	if err != nil {
		return coverage.Result{}, fmt.Errorf("local coverage of %s: %w", symbol, err)
	}
	remote, err := s.RemoteCoverage(ctx, symbol)
	if err != nil {
		return coverage.Result{}, fmt.Errorf("remote coverage of %s: %w", symbol, err)
	}
	return coverage.ReconcileCoverage(local, remote), nil
}

// SyncSymbol brings one symbol in line with the remote: superseded days are deleted
// first, then missing months and days are fetched. Listing and deletion run to
// completion once started; ctx only stops further fetch batches.
func (s *Syncer) SyncSymbol(ctx context.Context, symbol string) SymbolReport {
	start := s.clock.Now()
	log := s.logger.With("symbol", symbol)
	rep := SymbolReport{Symbol: symbol}
	defer func() { rep.Duration = s.clock.Since(start) }()

	inflight := context.WithoutCancel(ctx)
	plan, err := s.ComputeCoverage(inflight, symbol)
	if err != nil {
		log.Error("symbol failed", "error", err)
		rep.Status = StatusFailed
		rep.Error = err.Error()
		return rep
	}
	rep.Planned = PlanCounts{
		Months:  len(plan.MonthsToFetch),
		Days:    len(plan.DaysToFetch),
		Removes: len(plan.DaysToRemove),
	}
	if plan.Empty() {
		log.Info("symbol is up to date")
		rep.Status = StatusUpToDate
		return rep
	}
	log.Info("symbol plan", "months", rep.Planned.Months, "days", rep.Planned.Days, "removes", rep.Planned.Removes)

	if len(plan.DaysToRemove) > 0 {
		dr := s.DeleteMany(inflight, symbol, plan.DaysToRemove.Sorted())
		rep.Removed = dr.Deleted
		for _, f := range dr.Failures {
			rep.addFailure(OpDelete, f.Key, f.Err)
		}
	}

	keys := make([]market.ArchiveKey, 0, len(plan.MonthsToFetch)+len(plan.DaysToFetch))
	for _, tok := range append(plan.MonthsToFetch.Sorted(), plan.DaysToFetch.Sorted()...) {
		keys = append(keys, market.ArchiveKey{Selection: s.layout.Selection, Symbol: symbol, Token: tok})
	}
	outs := s.pipe.FetchBatch(ctx, keys, transfer.NewFetchLimiter(s.cfg.FetchConcurrency))
	for _, o := range outs {
		switch o.Status {
		case transfer.Stored:
			rep.Fetched++
		case transfer.SkippedExisting:
			rep.Skipped++
		default:
			rep.addFailure(OpFetch, string(o.Key.Token), o.Err)
		}
	}
	rep.Unscheduled = len(keys) - len(outs)
	rep.Status = StatusSynced
	log.Info("symbol synced", "fetched", rep.Fetched, "skipped", rep.Skipped,
		"removed", rep.Removed, "failed", rep.Failed, "unscheduled", rep.Unscheduled)
	return rep
}

// Sync runs SyncSymbol over symbols, or over every remote symbol when none are
// given. Symbols run in waves of WaveSize, at most SymbolConcurrency at a time, and
// each wave is joined before the next starts. Cancelling ctx stops new waves; the
// report then has Cancelled set and covers the symbols that ran.
func (s *Syncer) Sync(ctx context.Context, syms []string) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		Selection: s.layout.Selection.String(),
		Store:     s.store.Name(),
		StartedAt: s.clock.Now().UTC(),
	}
	syms = symbols.Normalize(syms, s.logger)
	if len(syms) == 0 {
		all, err := s.ListSymbols(ctx)
		if err != nil {
			return rep, err
		}
		syms = all
	}
	waves := partition(syms, s.cfg.WaveSize)
	log := s.logger.With("run", rep.RunID)
	log.Info("sync start", "selection", rep.Selection, "store", rep.Store, "symbols", len(syms), "waves", len(waves))

	prog := &progress{total: len(syms)}
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go runHeartbeat(hbCtx, s.clock, s.cfg.HeartbeatInterval, prog, log)

	for w, wave := range waves {
		if ctx.Err() != nil {
			log.Warn("sync cancelled", "waves_done", w, "waves", len(waves), "error", ctx.Err())
			rep.Cancelled = true
			break
		}
		results := make([]SymbolReport, len(wave))
		var g errgroup.Group
		g.SetLimit(s.cfg.SymbolConcurrency)
		for i, sym := range wave {
			g.Go(func() error {
				results[i] = s.SyncSymbol(ctx, sym)
				prog.add(results[i])
				return nil
			})
		}
		g.Wait()
		rep.Symbols = append(rep.Symbols, results...)
		log.Info("wave done", "wave", w+1, "of", len(waves), "symbols", len(wave))
	}

	rep.FinishedAt = s.clock.Now().UTC()
	rep.logSummary(log)
	return rep, nil
}

// SymbolPlan is the dry-run result of one symbol.
type SymbolPlan struct {
	Symbol string
	Result coverage.Result
	Err    error
}

// Plan computes the coverage of every symbol without transferring anything.
func (s *Syncer) Plan(ctx context.Context, syms []string) ([]SymbolPlan, error) {
	syms = symbols.Normalize(syms, s.logger)
	if len(syms) == 0 {
		all, err := s.ListSymbols(ctx)
		if err != nil {
			return nil, err
		}
		syms = all
	}
	plans := make([]SymbolPlan, len(syms))
	var g errgroup.Group
	g.SetLimit(s.cfg.SymbolConcurrency)
	for i, sym := range syms {
		g.Go(func() error {
			res, err := s.ComputeCoverage(ctx, sym)
			plans[i] = SymbolPlan{Symbol: sym, Result: res, Err: err}
			return nil
		})
	}
	g.Wait()
	return plans, nil
}

func partition(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
