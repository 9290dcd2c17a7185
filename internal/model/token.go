package model

import (
	"fmt"
	"sort"
	"time"
)

// DateToken is a date key: "YYYY-MM" for monthly files, "YYYY-MM-DD" for daily files.
type DateToken string

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// ParseDateToken validates s and returns it as a DateToken.
func ParseDateToken(s string) (DateToken, error) {
	switch len(s) {
	case len(monthLayout):
		if _, err := time.Parse(monthLayout, s); err != nil {
			return "", fmt.Errorf("invalid month token %q: %w", s, err)
		}
	case len(dayLayout):
		if _, err := time.Parse(dayLayout, s); err != nil {
			return "", fmt.Errorf("invalid day token %q: %w", s, err)
		}
	default:
		return "", fmt.Errorf("invalid date token %q: want YYYY-MM or YYYY-MM-DD", s)
	}
	return DateToken(s), nil
}

func (t DateToken) IsMonth() bool { return len(t) == len(monthLayout) }

func (t DateToken) IsDay() bool { return len(t) == len(dayLayout) }

// Month returns the month a token falls in. A month token is returned unchanged.
func (t DateToken) Month() DateToken {
	if len(t) < len(monthLayout) {
		return t
	}
	return t[:len(monthLayout)]
}

func (t DateToken) String() string { return string(t) }

// SortTokens sorts tokens in place, oldest first.
func SortTokens(tokens []DateToken) {
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
}
