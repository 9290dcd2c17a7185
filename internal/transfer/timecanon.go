package transfer

import (
	"fmt"
	"time"

	"binance-mirror/internal/market"
	"binance-mirror/internal/model"
)

// minEpochYear is the earliest plausible year of an archived event.
const minEpochYear = 2001

type epochUnit struct {
	name string
	conv func(int64) time.Time
}

var epochUnits = []epochUnit{
	{"ms", func(v int64) time.Time { return time.UnixMilli(v).UTC() }},
	{"us", func(v int64) time.Time { return time.UnixMicro(v).UTC() }},
	{"ns", func(v int64) time.Time { return time.Unix(0, v).UTC() }},
}

var stringTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

// Canonicalize converts the time columns of t in place. Integer epoch columns get the
// first unit (ms, us, ns) that puts both their smallest and largest value within
// [2001, now.Year()+1]; if none does the table is rejected with ErrParse. String time
// and date columns are parsed when every cell matches one layout and are left as
// strings otherwise.
func Canonicalize(t *model.Table, now time.Time) error {
	maxYear := now.Year() + 1
	for i := range t.Columns {
		c := &t.Columns[i]
		switch market.RoleOf(c.Name) {
		case market.RoleEpoch:
			if c.Kind != model.KindInt64 {
				continue
			}
			if err := convertEpoch(c, maxYear); err != nil {
				return err
			}
		case market.RoleTimestamp, market.RoleDate:
			switch c.Kind {
			case model.KindString:
				parseStringTimes(c)
			case model.KindInt64:
				// some option archives store these as epochs; best effort
				_ = convertEpoch(c, maxYear)
			}
		}
	}
	return nil
}

func convertEpoch(c *model.Column, maxYear int) error {
	vals := c.Int64s()
	if len(vals) == 0 {
		return nil
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	for _, u := range epochUnits {
		if !inYears(u.conv(lo), maxYear) || !inYears(u.conv(hi), maxYear) {
			continue
		}
		for k, v := range c.Values {
			if n, ok := v.(int64); ok {
				c.Values[k] = u.conv(n)
			}
		}
		c.Kind = model.KindTimestamp
		return nil
	}
	return fmt.Errorf("%w: cannot detect time unit of column %s (sample %d)", ErrParse, c.Name, lo)
}

func inYears(ts time.Time, maxYear int) bool {
	y := ts.Year()
	return y >= minEpochYear && y <= maxYear
}

func parseStringTimes(c *model.Column) {
	var first string
	for _, v := range c.Values {
		if s, ok := v.(string); ok {
			first = s
			break
		}
	}
	if first == "" {
		return
	}
	for _, layout := range stringTimeLayouts {
		if _, err := time.Parse(layout, first); err != nil {
			continue
		}
		parsed := make([]any, len(c.Values))
		ok := true
		for k, v := range c.Values {
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			ts, err := time.Parse(layout, s)
			if err != nil {
				ok = false
				break
			}
			parsed[k] = ts.UTC()
		}
		if ok {
			c.Values = parsed
			c.Kind = model.KindTimestamp
		}
		return
	}
}
