package commands

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"binance-mirror/internal/app"
	"binance-mirror/internal/mirror"
)

var (
	syncNoReport bool
	syncEvery    time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the mirror in line with the remote archive",
	Long: `Sync lists the remote archive, removes local days superseded by monthly
archives, then fetches every missing month and day.

Examples:
  # Daily BTCUSDT and ETHUSDT klines into ./data
  binance-mirror sync --symbols BTCUSDT,ETHUSDT --interval 1d

  # Every USD-M futures symbol's metrics into S3, re-run every 6 hours
  STORAGE=s3 S3_BUCKET=mirror binance-mirror sync --market futures/um --data-type metrics --every 6h`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncNoReport, "no-report", false, "do not write .lastrun.*.json reports")
	syncCmd.Flags().DurationVar(&syncEvery, "every", 0, "repeat the sync at this interval (0 runs once)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	syms, err := selectedSymbols(a)
	if err != nil {
		return err
	}

	return app.RunFlow(cmd.Context(), clockwork.NewRealClock(), syncEvery, a.Logger, func(ctx context.Context) error {
		rep, err := a.Syncer.Sync(ctx, syms)
		if err != nil {
			return err
		}
		if syncNoReport {
			return nil
		}
		if err := mirror.WriteRunReport(a.Fs, a.Config.ReportPath(), rep, a.Logger); err != nil {
			a.Logger.Warn("could not write run report", "error", err)
		}
		return nil
	})
}
