package market

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"binance-mirror/internal/model"
)

// ArchiveKey names one remote dated archive.
type ArchiveKey struct {
	Selection Selection
	Symbol    string
	Token     model.DateToken
}

// Frequency is derived from the token length.
func (k ArchiveKey) Frequency() Frequency {
	if k.Token.IsMonth() {
		return Monthly
	}
	return Daily
}

// FileName is "{symbol}-{interval-or-type}-{token}.zip".
func (k ArchiveKey) FileName() string {
	return fmt.Sprintf("%s-%s-%s.zip", k.Symbol, k.Selection.Category.FileTag(), k.Token)
}

// RemotePath is the object key of the archive relative to the archive root.
func (k ArchiveKey) RemotePath() string {
	return FilesPrefix(k.Selection, k.Frequency(), k.Symbol) + k.FileName()
}

func (k ArchiveKey) String() string { return k.Symbol + "@" + string(k.Token) }

// SymbolsPrefix is the listing prefix whose common prefixes are the symbols. Symbols
// are discovered from the daily tree, which is a superset of the monthly one.
func SymbolsPrefix(sel Selection) string {
	return path.Join("data", string(sel.Market), string(Daily), string(sel.Category.DataType())) + "/"
}

// FilesPrefix is the listing prefix holding a symbol's archives at frequency f.
func FilesPrefix(sel Selection, f Frequency, symbol string) string {
	parts := []string{"data", string(sel.Market), string(f), string(sel.Category.DataType()), symbol}
	if iv, ok := sel.Category.Interval(); ok {
		parts = append(parts, string(iv))
	}
	return path.Join(parts...) + "/"
}

var tokenInName = regexp.MustCompile(`-(\d{4}-\d{2}(?:-\d{2})?)\.zip$`)

// TokenFromKey extracts the date token from an archive object key. Symbols may
// themselves contain dashes (option contracts), so the token is matched from the end.
func TokenFromKey(key string) (model.DateToken, error) {
	m := tokenInName.FindStringSubmatch(path.Base(key))
	if m == nil {
		return "", fmt.Errorf("no date token in %q", key)
	}
	return model.ParseDateToken(m[1])
}

// IsArchiveKey reports whether key names an archive rather than a checksum sidecar.
func IsArchiveKey(key string) bool {
	return strings.HasSuffix(key, ".zip")
}
