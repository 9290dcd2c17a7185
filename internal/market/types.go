package market

import (
	"fmt"
	"strings"
)

// Market is an archive market segment. Values are the path segments used remotely.
type Market string

const (
	Spot      Market = "spot"
	FuturesCM Market = "futures/cm"
	FuturesUM Market = "futures/um"
	Option    Market = "option"
)

// Markets lists every supported market.
var Markets = []Market{Spot, FuturesCM, FuturesUM, Option}

// DataType is an archive data category.
type DataType string

const (
	AggTrades           DataType = "aggTrades"
	BookDepth           DataType = "bookDepth"
	BookTicker          DataType = "bookTicker"
	IndexPriceKlines    DataType = "indexPriceKlines"
	Klines              DataType = "klines"
	LiquidationSnapshot DataType = "liquidationSnapshot"
	MarkPriceKlines     DataType = "markPriceKlines"
	Metrics             DataType = "metrics"
	PremiumIndexKlines  DataType = "premiumIndexKlines"
	Trades              DataType = "trades"
	BVOLIndex           DataType = "BVOLIndex"
	EOHSummary          DataType = "EOHSummary"
)

// DataTypes lists every supported data type.
var DataTypes = []DataType{
	AggTrades, BookDepth, BookTicker, IndexPriceKlines, Klines, LiquidationSnapshot,
	MarkPriceKlines, Metrics, PremiumIndexKlines, Trades, BVOLIndex, EOHSummary,
}

// IsKlineFamily reports whether archives of this type are split by kline interval.
func (d DataType) IsKlineFamily() bool {
	switch d {
	case Klines, IndexPriceKlines, MarkPriceKlines, PremiumIndexKlines:
		return true
	}
	return false
}

// Interval is a kline interval.
type Interval string

const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// Intervals lists every supported kline interval.
var Intervals = []Interval{
	Interval1s, Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
	Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
	Interval1d, Interval1w,
}

// Frequency is the archive roll-up granularity.
type Frequency string

const (
	Daily   Frequency = "daily"
	Monthly Frequency = "monthly"
)

// ParseMarket matches s case-insensitively against Markets.
func ParseMarket(s string) (Market, error) {
	for _, m := range Markets {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid market %q (use: %s)", s, joinValues(Markets))
}

// ParseDataType matches s case-insensitively against DataTypes.
func ParseDataType(s string) (DataType, error) {
	for _, d := range DataTypes {
		if strings.EqualFold(string(d), s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid data type %q (use: %s)", s, joinValues(DataTypes))
}

// ParseInterval matches s exactly; "1m" and "1M" are different intervals upstream.
func ParseInterval(s string) (Interval, error) {
	for _, iv := range Intervals {
		if string(iv) == s {
			return iv, nil
		}
	}
	return "", fmt.Errorf("invalid interval %q (use: %s)", s, joinValues(Intervals))
}

func joinValues[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
