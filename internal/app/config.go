package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds application configuration from env. DATA_DIR is the mirror root:
// archives land under DATA_DIR/data/{market}/..., mirroring the remote key layout.
type Config struct {
	LogLevel           string `env:"LOG_LEVEL, default=info" validate:"oneof=debug info warn warning error"`
	LogFormat          string `env:"LOG_FORMAT, default=text" validate:"oneof=text json"`
	BaseURL            string `env:"BINANCE_BASE_URL, default=https://s3-ap-northeast-1.amazonaws.com/data.binance.vision" validate:"url"`
	DataDir            string `env:"DATA_DIR, default=." validate:"required"`
	Storage            string `env:"STORAGE, default=local" validate:"oneof=local s3"`
	SaveFormat         string `env:"SAVE_FORMAT, default=parquet" validate:"oneof=parquet csv json"`
	ParquetCompression string `env:"PARQUET_COMPRESSION, default=snappy" validate:"oneof=snappy zstd gzip lz4 brotli none"`
	ReportDir          string `env:"REPORT_DIR"` // empty → DataDir

	S3   S3Config   `env:", prefix=S3_"`
	Sync SyncConfig `env:", prefix=SYNC_"`
	HTTP HTTPConfig `env:", prefix=HTTP_"`
}

// S3Config is used when Storage is "s3". Credentials come from the AWS default chain.
type S3Config struct {
	Bucket         string `env:"BUCKET"`
	Prefix         string `env:"PREFIX"`
	Region         string `env:"REGION, default=ap-northeast-1"`
	Endpoint       string `env:"ENDPOINT" validate:"omitempty,url"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE, default=false"`
}

// SyncConfig bounds the sweep.
type SyncConfig struct {
	FetchConcurrency  int           `env:"FETCH_CONCURRENCY, default=50" validate:"min=1"`
	DeleteConcurrency int           `env:"DELETE_CONCURRENCY, default=20" validate:"min=1"`
	BatchSize         int           `env:"BATCH_SIZE, default=20" validate:"min=1"`
	SymbolConcurrency int           `env:"SYMBOL_CONCURRENCY, default=10" validate:"min=1"`
	WaveSize          int           `env:"WAVE_SIZE, default=20" validate:"min=1"`
	MaxRetries        int           `env:"MAX_RETRIES, default=3" validate:"min=0"`
	BackoffUnit       time.Duration `env:"BACKOFF_UNIT, default=1s" validate:"min=0"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL, default=30s" validate:"min=0"`
}

type HTTPConfig struct {
	ListTimeout  time.Duration `env:"LIST_TIMEOUT, default=60s" validate:"gt=0"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=300s" validate:"gt=0"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}
	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the storage-dependent requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage == "s3" && c.S3.Bucket == "" {
		return errors.New("invalid config: S3_BUCKET is required when STORAGE=s3")
	}
	return nil
}

// ReportPath returns where run reports are written.
func (c *Config) ReportPath() string {
	if c.ReportDir != "" {
		return c.ReportDir
	}
	return filepath.Clean(c.DataDir)
}
