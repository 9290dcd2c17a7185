package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"binance-mirror/internal/catalog"
	"binance-mirror/internal/market"
	"binance-mirror/internal/mirror"
	"binance-mirror/internal/saver"
	"binance-mirror/internal/slogx"
	"binance-mirror/internal/storage"
	"binance-mirror/internal/transfer"
)

// App holds the dependencies of one command run, built by Wire.
type App struct {
	Config *Config
	Logger *slog.Logger
	Fs     afero.Fs
	Syncer *mirror.Syncer
}

// ProvideLogger creates the process logger from config (for Wire).
func ProvideLogger(cfg *Config) *slog.Logger {
	return slogx.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// ProvideFs is the OS filesystem, used for the local mirror and run reports.
func ProvideFs() afero.Fs {
	return afero.NewOsFs()
}

func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// ProvideTableSaver creates TableSaver from config (for Wire).
// Returns error if SaveFormat or ParquetCompression is not supported.
func ProvideTableSaver(cfg *Config) (saver.TableSaver, error) {
	ts := saver.NewTableSaver(cfg.SaveFormat, cfg.ParquetCompression)
	if ts == nil {
		return nil, fmt.Errorf("unsupported SAVE_FORMAT %q / PARQUET_COMPRESSION %q", cfg.SaveFormat, cfg.ParquetCompression)
	}
	return ts, nil
}

// ProvideLayout roots the mirror at DATA_DIR locally or at S3_PREFIX in the bucket.
func ProvideLayout(cfg *Config, sel market.Selection, ts saver.TableSaver) storage.Layout {
	root := cfg.DataDir
	if cfg.Storage == "s3" {
		root = cfg.S3.Prefix
	}
	return storage.Layout{Root: root, Selection: sel, Ext: ts.Extension()}
}

// ProvideStore creates the configured mirror backend (for Wire).
func ProvideStore(cfg *Config, fs afero.Fs, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case "s3":
		api, err := storage.NewS3API(storage.S3Options{
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(api, cfg.S3.Bucket, logger), nil
	case "local", "":
		return storage.NewFSStore(fs, cfg.Sync.DeleteConcurrency, logger), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE %q (use: local, s3)", cfg.Storage)
	}
}

// ProvideCatalog creates the remote archive client (for Wire).
func ProvideCatalog(cfg *Config, sel market.Selection, logger *slog.Logger) *catalog.Client {
	return catalog.New(cfg.BaseURL, sel,
		catalog.WithLogger(logger),
		catalog.WithTimeouts(cfg.HTTP.ListTimeout, cfg.HTTP.FetchTimeout),
	)
}

func ProvidePipeline(cat *catalog.Client, store storage.Store, layout storage.Layout, ts saver.TableSaver,
	cfg *Config, clock clockwork.Clock, logger *slog.Logger) *transfer.Pipeline {
	return transfer.NewPipeline(cat, store, layout, ts, transfer.Config{
		MaxRetries: cfg.Sync.MaxRetries,
		BatchSize:  cfg.Sync.BatchSize,
		Backoff:    transfer.ExponentialBackoff(cfg.Sync.BackoffUnit),
	}, clock, logger)
}

func ProvideSyncer(cat *catalog.Client, store storage.Store, layout storage.Layout, pipe *transfer.Pipeline,
	cfg *Config, clock clockwork.Clock, logger *slog.Logger) *mirror.Syncer {
	return mirror.NewSyncer(cat, store, layout, pipe, mirror.Config{
		FetchConcurrency:  cfg.Sync.FetchConcurrency,
		SymbolConcurrency: cfg.Sync.SymbolConcurrency,
		WaveSize:          cfg.Sync.WaveSize,
		HeartbeatInterval: cfg.Sync.HeartbeatInterval,
	}, clock, logger)
}
