// Package symbols loads and normalizes symbol allow-lists.
package symbols

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a list of symbols from a file.
// Supported formats:
//   - .txt         : one symbol per line, '#' lines are treated as comments
//   - .json        : JSON array of strings
//   - .yaml / .yml : YAML sequence of strings, or a mapping with a "symbols" sequence
func LoadFile(fs afero.Fs, path string, logger *slog.Logger) ([]string, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read symbols file %s: %w", path, err)
	}

	var list []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &list); err != nil {
			return nil, fmt.Errorf("parse JSON %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if list, err = parseYAML(content); err != nil {
			return nil, fmt.Errorf("parse YAML %s: %w", path, err)
		}
	case ".txt", "":
		list = parseText(string(content))
	default:
		return nil, fmt.Errorf("unsupported symbols file extension %q (use .txt, .json or .yaml)", filepath.Ext(path))
	}

	list = Normalize(list, logger)
	if logger != nil {
		logger.Info("loaded symbols from file", "count", len(list), "path", path)
	}
	return list, nil
}

// ParseList splits a comma- or whitespace-separated flag value.
func ParseList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// Normalize trims, upper-cases and deduplicates symbols, keeping first-seen order.
// Symbols given in lower case are reported once with a warning.
func Normalize(list []string, logger *slog.Logger) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		up := strings.ToUpper(s)
		if up != s && logger != nil {
			logger.Warn("symbol upper-cased", "given", s, "symbol", up)
		}
		if !seen[up] {
			seen[up] = true
			out = append(out, up)
		}
	}
	return out
}

func parseText(s string) []string {
	var list []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			list = append(list, line)
		}
	}
	return list
}

func parseYAML(content []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(content, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Symbols []string `yaml:"symbols"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	return doc.Symbols, nil
}
