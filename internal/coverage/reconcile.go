// Package coverage decides which archives a symbol needs fetched or removed by
// comparing what the mirror holds against what the remote archive offers.
package coverage

import "binance-mirror/internal/model"

// Set is a set of date tokens.
type Set map[model.DateToken]struct{}

// NewSet builds a Set from tokens.
func NewSet(tokens ...model.DateToken) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

func (s Set) Has(t model.DateToken) bool {
	_, ok := s[t]
	return ok
}

func (s Set) Add(t model.DateToken) { s[t] = struct{}{} }

// Sorted returns the members oldest first.
func (s Set) Sorted() []model.DateToken {
	out := make([]model.DateToken, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	model.SortTokens(out)
	return out
}

// Coverage is what one source holds for a symbol, split by granularity.
type Coverage struct {
	Days   Set
	Months Set
}

// Split partitions tokens by length; anything that is neither a day nor a month is dropped.
func Split(tokens []model.DateToken) Coverage {
	c := Coverage{Days: Set{}, Months: Set{}}
	for _, t := range tokens {
		switch {
		case t.IsMonth():
			c.Months.Add(t)
		case t.IsDay():
			c.Days.Add(t)
		}
	}
	return c
}

// Result is the per-symbol plan. The three sets are disjoint.
type Result struct {
	MonthsToFetch Set
	DaysToFetch   Set
	DaysToRemove  Set
}

// Empty reports whether the symbol is already in sync.
func (r Result) Empty() bool {
	return len(r.MonthsToFetch) == 0 && len(r.DaysToFetch) == 0 && len(r.DaysToRemove) == 0
}

// Reconcile computes the plan for one symbol.
//
// A remote month supersedes every day inside it: local days in such a month are
// removed and remote days in it are never fetched. A local day whose remote daily
// archive disappeared without a covering month is left in place.
func Reconcile(localDays, localMonths, remoteDays, remoteMonths Set) Result {
	r := Result{MonthsToFetch: Set{}, DaysToFetch: Set{}, DaysToRemove: Set{}}
	for m := range remoteMonths {
		if !localMonths.Has(m) {
			r.MonthsToFetch.Add(m)
		}
	}
	for d := range remoteDays {
		if remoteMonths.Has(d.Month()) || localDays.Has(d) {
			continue
		}
		r.DaysToFetch.Add(d)
	}
	for d := range localDays {
		if remoteMonths.Has(d.Month()) {
			r.DaysToRemove.Add(d)
		}
	}
	return r
}

// ReconcileCoverage is Reconcile over two Coverage values.
func ReconcileCoverage(local, remote Coverage) Result {
	return Reconcile(local.Days, local.Months, remote.Days, remote.Months)
}
