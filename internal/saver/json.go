package saver

import (
	"bytes"
	"encoding/json"
	"math"

	"binance-mirror/internal/model"
)

// JSONSaver writes an indented array of records, keys in column order.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Encode(t *model.Table) ([]byte, error) {
	keys := make([][]byte, len(t.Columns))
	for j, c := range t.Columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		keys[j] = k
	}

	var buf bytes.Buffer
	buf.WriteString("[")
	for i := 0; i < t.Rows; i++ {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			v, err := json.Marshal(jsonValue(c.Values[i]))
			if err != nil {
				return nil, err
			}
			buf.Write(keys[j])
			buf.WriteString(": ")
			buf.Write(v)
		}
		buf.WriteString("}")
	}
	if t.Rows > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

// jsonValue maps NaN and ±Inf, which JSON cannot carry, to null.
func jsonValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
