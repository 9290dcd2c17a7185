package market

var klineColumns = []string{
	"open_time", "open", "high", "low", "close", "volume", "close_time",
	"quote_volume", "count", "taker_buy_volume", "taker_buy_quote_volume", "ignore",
}

var futuresAggTradeColumns = []string{
	"agg_trade_id", "price", "quantity", "first_trade_id", "last_trade_id", "transact_time", "is_buyer_maker",
}

var futuresBookDepthColumns = []string{"timestamp", "percentage", "depth", "notional"}

var futuresBookTickerColumns = []string{
	"update_id", "best_bid_price", "best_bid_qty", "best_ask_price", "best_ask_qty", "transaction_time", "event_time",
}

var futuresMetricsColumns = []string{
	"create_time", "symbol", "sum_open_interest", "sum_open_interest_value",
	"count_toptrader_long_short_ratio", "sum_toptrader_long_short_ratio",
	"count_long_short_ratio", "sum_taker_long_short_vol_ratio",
}

// schemas holds the column layout of every header-less archive kind.
var schemas = map[Market]map[DataType][]string{
	Spot: {
		AggTrades: {"agg_trade_id", "price", "quantity", "first_trade_id", "last_trade_id", "transact_time", "is_buyer_maker", "is_best_match"},
		Klines:    klineColumns,
		Trades:    {"id", "price", "qty", "base_qty", "time", "is_buyer_maker", "is_best_match"},
	},
	Option: {
		BVOLIndex: {"calc_time", "symbol", "base_asset", "quote_asset", "index_value"},
		EOHSummary: {
			"date", "hour", "symbol", "underlying", "type", "strike", "open", "high", "low", "close",
			"volume_contracts", "volume_usdt", "best_bid_price", "best_ask_price", "best_bid_qty",
			"best_ask_qty", "best_buy_iv", "best_sell_iv", "mark_price", "mark_iv", "delta", "gamma",
			"vega", "theta", "openinterest_contracts", "openinterest_usdt",
		},
	},
	FuturesCM: {
		AggTrades:           futuresAggTradeColumns,
		BookDepth:           futuresBookDepthColumns,
		BookTicker:          futuresBookTickerColumns,
		IndexPriceKlines:    klineColumns,
		Klines:              klineColumns,
		LiquidationSnapshot: {"time", "side", "order_type", "time_in_force", "original_quantity", "price", "average_price", "order_status", "last_fill_quantity", "accumulated_fill_quantity"},
		MarkPriceKlines:     klineColumns,
		Metrics:             futuresMetricsColumns,
		PremiumIndexKlines:  klineColumns,
		Trades:              {"id", "price", "qty", "base_qty", "time", "is_buyer_maker"},
	},
	FuturesUM: {
		AggTrades:          futuresAggTradeColumns,
		BookDepth:          futuresBookDepthColumns,
		BookTicker:         futuresBookTickerColumns,
		IndexPriceKlines:   klineColumns,
		Klines:             klineColumns,
		MarkPriceKlines:    klineColumns,
		Metrics:            futuresMetricsColumns,
		PremiumIndexKlines: klineColumns,
		Trades:             {"id", "price", "qty", "quote_qty", "time", "is_buyer_maker"},
	},
}

// Columns returns the canonical column names for (m, dt) and whether the pair is
// known. Callers must not modify the returned slice.
func Columns(m Market, dt DataType) ([]string, bool) {
	cols, ok := schemas[m][dt]
	return cols, ok
}

// ColumnRole classifies how a column's values are canonicalized.
type ColumnRole int

const (
	RoleValue ColumnRole = iota
	// RoleEpoch columns hold integer epochs of unknown unit.
	RoleEpoch
	// RoleTimestamp columns hold "YYYY-MM-DD hh:mm:ss" strings.
	RoleTimestamp
	// RoleDate columns hold "YYYY-MM-DD" strings.
	RoleDate
)

var columnRoles = map[string]ColumnRole{
	"time":             RoleEpoch,
	"open_time":        RoleEpoch,
	"close_time":       RoleEpoch,
	"transact_time":    RoleEpoch,
	"event_time":       RoleEpoch,
	"transaction_time": RoleEpoch,
	"calc_time":        RoleEpoch,
	"timestamp":        RoleTimestamp,
	"create_time":      RoleTimestamp,
	"date":             RoleDate,
}

// RoleOf returns the canonicalization role of a column name.
func RoleOf(column string) ColumnRole {
	return columnRoles[column]
}
