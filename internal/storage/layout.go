package storage

import (
	"path"
	"strings"

	"binance-mirror/internal/market"
	"binance-mirror/internal/model"
)

// Layout maps (symbol, token) to a mirror key:
//
//	{root}/data/{market}/{data type}/{symbol}/[{interval}/]{token}.{ext}
//
// The same keys are used on disk and in the bucket, and the downstream reader relies
// on them.
type Layout struct {
	Root      string
	Selection market.Selection
	Ext       string
}

// SymbolDir is the directory (or key prefix, without trailing slash) of a symbol.
func (l Layout) SymbolDir(symbol string) string {
	parts := []string{l.Root, "data", string(l.Selection.Market), string(l.Selection.Category.DataType()), symbol}
	if iv, ok := l.Selection.Category.Interval(); ok {
		parts = append(parts, string(iv))
	}
	return path.Join(parts...)
}

// Key is the mirror key of one archive.
func (l Layout) Key(symbol string, token model.DateToken) string {
	return l.SymbolDir(symbol) + "/" + string(token) + "." + l.Ext
}

// ArchiveKey is Key for a remote archive key.
func (l Layout) ArchiveKey(k market.ArchiveKey) string {
	return l.Key(k.Symbol, k.Token)
}

// TokenFromName parses a file name produced by Key. Names with another extension
// or a malformed token are rejected.
func (l Layout) TokenFromName(name string) (model.DateToken, bool) {
	stem, ok := strings.CutSuffix(name, "."+l.Ext)
	if !ok {
		return "", false
	}
	tok, err := model.ParseDateToken(stem)
	if err != nil {
		return "", false
	}
	return tok, true
}
