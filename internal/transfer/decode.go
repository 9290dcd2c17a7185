package transfer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"binance-mirror/internal/market"
	"binance-mirror/internal/model"
)

// Decode parses an extracted CSV member. For (m, dt) pairs with a known header-less
// layout the registry names the columns and a leading header row is dropped;
// otherwise the file's own header is used. Column kinds are inferred from the cells.
func Decode(data []byte, m market.Market, dt market.DataType) (*model.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %w", ErrParse, err)
	}

	names, known := market.Columns(m, dt)
	switch {
	case known && len(records) > 0 && isHeaderRow(records[0]):
		// newer archives carry a header; trust it when it disagrees with the registry
		if len(records[0]) != len(names) {
			names = trimAll(records[0])
		}
		records = records[1:]
	case !known:
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: empty file without header", ErrParse)
		}
		names = trimAll(records[0])
		records = records[1:]
	}

	t := &model.Table{Rows: len(records), Columns: make([]model.Column, len(names))}
	for j, n := range names {
		t.Columns[j] = model.Column{Name: n, Values: make([]any, len(records))}
	}
	for i, rec := range records {
		if len(rec) != len(names) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrParse, i+1, len(rec), len(names))
		}
	}
	for j := range t.Columns {
		fillColumn(&t.Columns[j], records, j)
	}
	return t, nil
}

// isHeaderRow reports whether no cell of rec is numeric. Data rows of every known
// layout carry at least one number, while some start with a date string.
func isHeaderRow(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	for _, cell := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return false
		}
	}
	return true
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, s := range rec {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// fillColumn infers the narrowest kind that parses every non-empty cell, in the
// order int64, float64, bool, string, then converts.
func fillColumn(c *model.Column, records [][]string, j int) {
	isInt, isFloat, isBool := true, true, true
	for _, rec := range records {
		s := strings.TrimSpace(rec[j])
		if s == "" {
			continue
		}
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			break
		}
	}

	switch {
	case isInt:
		c.Kind = model.KindInt64
	case isFloat:
		c.Kind = model.KindFloat64
	case isBool:
		c.Kind = model.KindBool
	default:
		c.Kind = model.KindString
	}

	for i, rec := range records {
		s := strings.TrimSpace(rec[j])
		if s == "" {
			continue
		}
		switch c.Kind {
		case model.KindInt64:
			c.Values[i], _ = strconv.ParseInt(s, 10, 64)
		case model.KindFloat64:
			c.Values[i], _ = strconv.ParseFloat(s, 64)
		case model.KindBool:
			c.Values[i], _ = parseBool(s)
		default:
			c.Values[i] = s
		}
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
