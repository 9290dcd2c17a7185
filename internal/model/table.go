package model

import "time"

// Kind is the physical type of a decoded column.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// Column holds one decoded column. Values[i] is nil for an empty cell, otherwise
// string, int64, float64, bool or time.Time according to Kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Table is the decoded payload of one archive, held in memory between decode and store.
type Table struct {
	Columns []Column
	Rows    int
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Names returns column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Record returns row i as name → value, with time values kept as time.Time.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		rec[c.Name] = c.Values[i]
	}
	return rec
}

// Int64s returns the non-null int64 values of c.
func (c *Column) Int64s() []int64 {
	out := make([]int64, 0, len(c.Values))
	for _, v := range c.Values {
		if n, ok := v.(int64); ok {
			out = append(out, n)
		}
	}
	return out
}

// Times returns the non-null time values of c.
func (c *Column) Times() []time.Time {
	out := make([]time.Time, 0, len(c.Values))
	for _, v := range c.Values {
		if ts, ok := v.(time.Time); ok {
			out = append(out, ts)
		}
	}
	return out
}
