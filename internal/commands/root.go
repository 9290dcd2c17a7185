package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"binance-mirror/internal/app"
	"binance-mirror/internal/market"
	"binance-mirror/internal/symbols"
)

var (
	flagMarket      string
	flagDataType    string
	flagInterval    string
	flagSymbols     string
	flagSymbolsFile string
	flagS3          bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "binance-mirror",
	Short: "Mirror the Binance public data archive",
	Long: `Keep a local directory or an S3 bucket in sync with data.binance.vision.

For one market, data type and interval the mirror fetches every monthly archive, and
every daily archive not yet rolled up into a month. Days superseded by a month are
removed. Archives are stored as parquet (default), csv or json.

Configuration comes from the environment (and an optional .env file), see README.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagMarket, "market", string(market.Spot), "market (spot, futures/cm, futures/um, option)")
	pf.StringVar(&flagDataType, "data-type", string(market.Klines), "data type (klines, trades, aggTrades, ...)")
	pf.StringVar(&flagInterval, "interval", string(market.Interval1d), "kline interval, only for kline data types")
	pf.StringVar(&flagSymbols, "symbols", "", "comma-separated symbols (default: every listed symbol)")
	pf.StringVar(&flagSymbolsFile, "symbols-file", "", "symbols file (.txt, .json, .yaml)")
	pf.BoolVar(&flagS3, "s3", false, "store in S3 (same as STORAGE=s3)")
}

// selectionFromFlags parses the market selection. The interval flag is ignored for
// plain data types unless it was set explicitly, in which case it is an error.
func selectionFromFlags(cmd *cobra.Command) (market.Selection, error) {
	m, err := market.ParseMarket(flagMarket)
	if err != nil {
		return market.Selection{}, err
	}
	dt, err := market.ParseDataType(flagDataType)
	if err != nil {
		return market.Selection{}, err
	}
	var iv market.Interval
	if dt.IsKlineFamily() || cmd.Flags().Changed("interval") {
		if iv, err = market.ParseInterval(flagInterval); err != nil {
			return market.Selection{}, err
		}
	}
	cat, err := market.NewCategory(dt, iv)
	if err != nil {
		return market.Selection{}, err
	}
	if _, ok := market.Columns(m, dt); !ok {
		slog.Warn("no column layout for this market and data type, the embedded header will be used",
			"market", m, "data_type", dt)
	}
	return market.Selection{Market: m, Category: cat}, nil
}

// loadApp reads config, applies flag overrides and wires the application.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := app.LoadConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	if flagS3 {
		cfg.Storage = "s3"
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	sel, err := selectionFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.InitializeApp(cfg, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	slog.SetDefault(a.Logger)
	return a, nil
}

// selectedSymbols merges --symbols and --symbols-file. Empty means all symbols.
func selectedSymbols(a *app.App) ([]string, error) {
	list := symbols.ParseList(flagSymbols)
	if flagSymbolsFile != "" {
		fromFile, err := symbols.LoadFile(a.Fs, flagSymbolsFile, a.Logger)
		if err != nil {
			return nil, err
		}
		list = append(list, fromFile...)
	}
	return symbols.Normalize(list, a.Logger), nil
}
