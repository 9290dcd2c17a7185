package saver

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"binance-mirror/internal/model"
)

// CSVSaver writes a header row followed by one line per record. Nulls are empty
// cells and timestamps are RFC 3339 in UTC.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Encode(t *model.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Names()); err != nil {
		return nil, err
	}
	rec := make([]string, len(t.Columns))
	for i := 0; i < t.Rows; i++ {
		for j, c := range t.Columns {
			rec[j] = cellString(c.Values[i])
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return floatStr(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
