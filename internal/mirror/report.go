package mirror

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

type SymbolStatus string

const (
	StatusUpToDate SymbolStatus = "up-to-date"
	StatusSynced   SymbolStatus = "synced"
	StatusFailed   SymbolStatus = "failed"
)

const (
	OpFetch  = "fetch"
	OpDelete = "delete"
)

// ItemFailure is one archive that could not be fetched or removed.
type ItemFailure struct {
	Op     string `json:"op"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// PlanCounts is the size of a symbol's reconciliation.
type PlanCounts struct {
	Months  int `json:"months"`
	Days    int `json:"days"`
	Removes int `json:"removes"`
}

// SymbolReport is the outcome of one SyncSymbol. Status failed means the symbol
// could not be planned; item failures of a synced symbol are listed in Failures.
type SymbolReport struct {
	Symbol      string        `json:"symbol"`
	Status      SymbolStatus  `json:"status"`
	Planned     PlanCounts    `json:"planned"`
	Fetched     int           `json:"fetched"`
	Skipped     int           `json:"skipped"`
	Removed     int           `json:"removed"`
	Failed      int           `json:"failed"`
	Unscheduled int           `json:"unscheduled,omitempty"`
	Failures    []ItemFailure `json:"failures,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

func (r *SymbolReport) addFailure(op, item string, err error) {
	r.Failed++
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	r.Failures = append(r.Failures, ItemFailure{Op: op, Item: item, Reason: reason})
}

// Clean reports whether the symbol finished without any failure.
func (r SymbolReport) Clean() bool {
	return r.Status != StatusFailed && r.Failed == 0 && r.Unscheduled == 0
}

// Report is the outcome of one Sync run.
type Report struct {
	RunID      string         `json:"run_id"`
	Selection  string         `json:"selection"`
	Store      string         `json:"store"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Cancelled  bool           `json:"cancelled,omitempty"`
	Symbols    []SymbolReport `json:"symbols"`
}

// Totals aggregates a Report.
type Totals struct {
	Symbols, UpToDate, Synced, FailedSymbols int
	Fetched, Skipped, Removed, FailedItems   int
}

func (r *Report) Totals() Totals {
	var t Totals
	for _, s := range r.Symbols {
		t.Symbols++
		switch s.Status {
		case StatusUpToDate:
			t.UpToDate++
		case StatusSynced:
			t.Synced++
		case StatusFailed:
			t.FailedSymbols++
		}
		t.Fetched += s.Fetched
		t.Skipped += s.Skipped
		t.Removed += s.Removed
		t.FailedItems += s.Failed
	}
	return t
}

// HasFailures reports whether any symbol or item failed.
func (r *Report) HasFailures() bool {
	t := r.Totals()
	return t.FailedSymbols > 0 || t.FailedItems > 0
}

func (r *Report) logSummary(logger *slog.Logger) {
	t := r.Totals()
	logger.Info("summary", "symbols", t.Symbols, "up_to_date", t.UpToDate, "synced", t.Synced,
		"failed_symbols", t.FailedSymbols, "fetched", t.Fetched, "skipped", t.Skipped,
		"removed", t.Removed, "failed_items", t.FailedItems,
		"elapsed", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), "cancelled", r.Cancelled)
	if failed := r.failedEntries(); len(failed) > 0 {
		logger.Info("summary failed", "count", len(failed), "reasons", joinFailedReasons(failed))
	}
}

// failedEntry is one line of .lastrun.failed.json.
type failedEntry struct {
	Symbol string `json:"symbol"`
	Op     string `json:"op,omitempty"`
	Item   string `json:"item,omitempty"`
	Reason string `json:"reason"`
}

func (r *Report) failedEntries() []failedEntry {
	var out []failedEntry
	for _, s := range r.Symbols {
		if s.Status == StatusFailed {
			out = append(out, failedEntry{Symbol: s.Symbol, Reason: s.Error})
			continue
		}
		for _, f := range s.Failures {
			out = append(out, failedEntry{Symbol: s.Symbol, Op: f.Op, Item: f.Item, Reason: f.Reason})
		}
	}
	return out
}

// WriteRunReport writes .lastrun.success.json (symbols that finished cleanly) and
// .lastrun.failed.json (symbol and item failures) into dir. Each file is written
// only when it has entries, the full report always goes to .lastrun.report.json.
func WriteRunReport(fs afero.Fs, dir string, r *Report, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir %s: %w", dir, err)
	}

	var success []string
	for _, s := range r.Symbols {
		if s.Clean() {
			success = append(success, s.Symbol)
		}
	}
	if len(success) > 0 {
		p := filepath.Join(dir, ".lastrun.success.json")
		if err := writeJSON(fs, p, success); err != nil {
			return err
		}
		logger.Info("report wrote success", "path", p, "symbols", len(success))
	}
	if failed := r.failedEntries(); len(failed) > 0 {
		p := filepath.Join(dir, ".lastrun.failed.json")
		if err := writeJSON(fs, p, failed); err != nil {
			return err
		}
		logger.Info("report wrote failed", "path", p, "count", len(failed))
	}
	return writeJSON(fs, filepath.Join(dir, ".lastrun.report.json"), r)
}

func writeJSON(fs afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func joinFailedReasons(failed []failedEntry) string {
	var b strings.Builder
	for i, f := range failed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Symbol)
		if f.Item != "" {
			b.WriteString("@" + f.Item)
		}
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failed) > 6 {
			fmt.Fprintf(&b, " (+%d more)", len(failed)-5)
			break
		}
	}
	return b.String()
}
