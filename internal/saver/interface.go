package saver

import (
	"strings"

	"binance-mirror/internal/model"
)

// TableSaver encodes a decoded archive into the bytes stored in the mirror.
// The pipeline only depends on this interface; the format is picked at wiring time.
type TableSaver interface {
	Encode(t *model.Table) ([]byte, error)
	Extension() string
}

// NewTableSaver creates an implementation by format (parquet, csv, json).
// compression applies to parquet only. Returns nil if format or compression is
// not supported.
func NewTableSaver(format, compression string) TableSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "parquet":
		codec, ok := parquetCodec(compression)
		if !ok {
			return nil
		}
		return ParquetSaver{Codec: codec}
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}
