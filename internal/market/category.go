package market

import "fmt"

// Category is a data type together with its kline interval. The interval is set
// exactly when the data type is in the kline family; the constructors enforce it.
type Category struct {
	dataType DataType
	interval Interval
}

// KlineCategory builds a kline-family category.
func KlineCategory(dt DataType, iv Interval) (Category, error) {
	if !dt.IsKlineFamily() {
		return Category{}, fmt.Errorf("data type %s does not take an interval", dt)
	}
	if iv == "" {
		return Category{}, fmt.Errorf("data type %s requires an interval", dt)
	}
	return Category{dataType: dt, interval: iv}, nil
}

// PlainCategory builds a category for a data type without sub-intervals.
func PlainCategory(dt DataType) (Category, error) {
	if dt.IsKlineFamily() {
		return Category{}, fmt.Errorf("data type %s requires an interval", dt)
	}
	return Category{dataType: dt}, nil
}

// NewCategory picks KlineCategory or PlainCategory from dt. An interval given for a
// plain data type is an error rather than silently dropped.
func NewCategory(dt DataType, iv Interval) (Category, error) {
	if dt.IsKlineFamily() {
		return KlineCategory(dt, iv)
	}
	if iv != "" {
		return Category{}, fmt.Errorf("data type %s does not take an interval", dt)
	}
	return PlainCategory(dt)
}

func (c Category) DataType() DataType { return c.dataType }

// Interval returns the kline interval and whether the category has one.
func (c Category) Interval() (Interval, bool) { return c.interval, c.interval != "" }

// FileTag is the middle segment of archive names: the interval for kline-family
// categories, the data type otherwise.
func (c Category) FileTag() string {
	if c.interval != "" {
		return string(c.interval)
	}
	return string(c.dataType)
}

func (c Category) String() string {
	if c.interval != "" {
		return string(c.dataType) + "/" + string(c.interval)
	}
	return string(c.dataType)
}

// Selection is the (market, category) pair one mirror instance syncs.
type Selection struct {
	Market   Market
	Category Category
}

func (s Selection) String() string { return string(s.Market) + "/" + s.Category.String() }
