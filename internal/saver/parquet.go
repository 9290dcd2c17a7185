package saver

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"binance-mirror/internal/model"
)

// ParquetSaver writes a single row group with one optional column per table column.
// Parquet groups order their fields by name, so the file's column order is
// alphabetical rather than the table's.
type ParquetSaver struct {
	Codec compress.Codec
}

func (ParquetSaver) Extension() string { return "parquet" }

func (s ParquetSaver) Encode(t *model.Table) ([]byte, error) {
	group := make(parquet.Group, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := group[c.Name]; dup {
			return nil, fmt.Errorf("parquet: duplicate column %q", c.Name)
		}
		group[c.Name] = parquet.Optional(parquetNode(c.Kind))
	}
	schema := parquet.NewSchema("archive", group)

	// leaf index of each table column in the schema's sorted field order
	names := t.Names()
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leaf := make(map[string]int, len(sorted))
	for i, n := range sorted {
		leaf[n] = i
	}
	order := make([]int, len(sorted))
	for i, n := range sorted {
		order[i] = indexOf(names, n)
	}

	opts := []parquet.WriterOption{schema}
	if s.Codec != nil {
		opts = append(opts, parquet.Compression(s.Codec))
	}
	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, opts...)

	const chunk = 4096
	rows := make([]parquet.Row, 0, min(chunk, t.Rows))
	for i := 0; i < t.Rows; i++ {
		row := make(parquet.Row, len(order))
		for li, ci := range order {
			c := t.Columns[ci]
			row[li] = parquetValue(c.Kind, c.Values[i], leaf[c.Name])
		}
		rows = append(rows, row)
		if len(rows) == chunk {
			if _, err := w.WriteRows(rows); err != nil {
				return nil, fmt.Errorf("parquet: write rows: %w", err)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := w.WriteRows(rows); err != nil {
			return nil, fmt.Errorf("parquet: write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet: close: %w", err)
	}
	return buf.Bytes(), nil
}

func parquetNode(k model.Kind) parquet.Node {
	switch k {
	case model.KindInt64:
		return parquet.Int(64)
	case model.KindFloat64:
		return parquet.Leaf(parquet.DoubleType)
	case model.KindBool:
		return parquet.Leaf(parquet.BooleanType)
	case model.KindTimestamp:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.String()
	}
}

func parquetValue(k model.Kind, v any, col int) parquet.Value {
	if v == nil {
		return parquet.NullValue().Level(0, 0, col)
	}
	var pv parquet.Value
	switch k {
	case model.KindInt64:
		pv = parquet.Int64Value(v.(int64))
	case model.KindFloat64:
		pv = parquet.DoubleValue(v.(float64))
	case model.KindBool:
		pv = parquet.BooleanValue(v.(bool))
	case model.KindTimestamp:
		pv = parquet.Int64Value(v.(time.Time).UnixNano())
	default:
		pv = parquet.ByteArrayValue([]byte(cellString(v)))
	}
	return pv.Level(0, 1, col)
}

// parquetCodec maps a compression name to its codec. "none" and "" store pages
// uncompressed.
func parquetCodec(name string) (compress.Codec, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return &parquet.Snappy, true
	case "zstd":
		return &parquet.Zstd, true
	case "gzip":
		return &parquet.Gzip, true
	case "lz4":
		return &parquet.Lz4Raw, true
	case "brotli":
		return &parquet.Brotli, true
	case "none":
		return &parquet.Uncompressed, true
	default:
		return nil, false
	}
}

func indexOf(names []string, n string) int {
	for i, x := range names {
		if x == n {
			return i
		}
	}
	return -1
}
