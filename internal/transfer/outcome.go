package transfer

import (
	"errors"

	"binance-mirror/internal/market"
)

var (
	// ErrFetch marks items that could not be downloaded, extracted or stored.
	ErrFetch = errors.New("fetch failed")
	// ErrParse marks items whose payload could not be decoded.
	ErrParse = errors.New("parse failed")
)

type Status int

const (
	Stored Status = iota
	SkippedExisting
	Failed
)

func (s Status) String() string {
	switch s {
	case Stored:
		return "stored"
	case SkippedExisting:
		return "skipped-existing"
	default:
		return "failed"
	}
}

// Outcome is the result of one FetchOne call.
type Outcome struct {
	Key      market.ArchiveKey
	Status   Status
	Dest     string
	Rows     int
	Attempts int
	Err      error
}

// Reason is the failure message, empty unless Status is Failed.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Counts tallies outcomes by status.
type Counts struct {
	Stored  int
	Skipped int
	Failed  int
}

func (c *Counts) Add(o Outcome) {
	switch o.Status {
	case Stored:
		c.Stored++
	case SkippedExisting:
		c.Skipped++
	default:
		c.Failed++
	}
}

func CountOutcomes(outs []Outcome) Counts {
	var c Counts
	for _, o := range outs {
		c.Add(o)
	}
	return c
}
