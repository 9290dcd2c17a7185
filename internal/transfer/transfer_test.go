package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-mirror/internal/market"
	"binance-mirror/internal/model"
	"binance-mirror/internal/saver"
	"binance-mirror/internal/storage"
)

const klinesCSV = "1707609600000,48000.1,48500,47900,48300.5,12.5,1707695999999,600000.1,1200,6.1,300000.2,0\n" +
	"1707696000000,48300.5,48700,48100,48650,10.0,1707782399999,480000.0,1100,5.0,240000.0,0\n"

func zipOf(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func klinesSel(t *testing.T) market.Selection {
	t.Helper()
	cat, err := market.KlineCategory(market.Klines, market.Interval1d)
	require.NoError(t, err)
	return market.Selection{Market: market.Spot, Category: cat}
}

func TestExtractSole(t *testing.T) {
	name, data, err := extractSole(zipOf(t, "BTCUSDT-1d-2024-02-11.csv", "a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT-1d-2024-02-11.csv", name)
	assert.Equal(t, "a,b\n", string(data))

	_, _, err = extractSole([]byte("not a zip"))
	assert.Error(t, err)
}

func TestDecodeKnownLayout(t *testing.T) {
	tbl, err := Decode([]byte(klinesCSV), market.Spot, market.Klines)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows)
	require.Len(t, tbl.Columns, 12)
	assert.Equal(t, "open_time", tbl.Columns[0].Name)
	assert.Equal(t, model.KindInt64, tbl.Column("open_time").Kind)
	assert.Equal(t, model.KindFloat64, tbl.Column("close").Kind)
	assert.Equal(t, 48650.0, tbl.Column("close").Values[1])
	assert.Equal(t, model.KindInt64, tbl.Column("count").Kind)
}

func TestDecodeStrayHeader(t *testing.T) {
	header := "open_time,open,high,low,close,volume,close_time,quote_volume,count,taker_buy_volume,taker_buy_quote_volume,ignore\n"
	tbl, err := Decode([]byte(header+klinesCSV), market.Spot, market.Klines)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows)
	assert.Equal(t, int64(1707609600000), tbl.Column("open_time").Values[0])
}

func TestDecodeKeepsDateLedRows(t *testing.T) {
	body := "2024-02-11 00:05:00,BTCUSDT,80000.5,4000000000.1,1.5,1.6,1.7,0.9\n"
	tbl, err := Decode([]byte(body), market.FuturesUM, market.Metrics)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Rows)
	assert.Equal(t, "2024-02-11 00:05:00", tbl.Column("create_time").Values[0])
	assert.Equal(t, model.KindString, tbl.Column("symbol").Kind)
}

func TestDecodeUnknownLayoutUsesHeader(t *testing.T) {
	body := "update_id,best_bid_price,is_snapshot\n1,100.5,True\n2,,false\n"
	tbl, err := Decode([]byte(body), market.Spot, market.BookTicker)
	require.NoError(t, err)
	assert.Equal(t, []string{"update_id", "best_bid_price", "is_snapshot"}, tbl.Names())
	assert.Equal(t, model.KindFloat64, tbl.Column("best_bid_price").Kind)
	assert.Nil(t, tbl.Column("best_bid_price").Values[1])
	assert.Equal(t, model.KindBool, tbl.Column("is_snapshot").Kind)
	assert.Equal(t, true, tbl.Column("is_snapshot").Values[0])
}

func TestDecodeFieldCountMismatch(t *testing.T) {
	_, err := Decode([]byte("1,2,3\n"), market.Spot, market.Klines)
	assert.ErrorIs(t, err, ErrParse)
}

func epochTable(vals ...int64) *model.Table {
	c := model.Column{Name: "open_time", Kind: model.KindInt64}
	for _, v := range vals {
		c.Values = append(c.Values, v)
	}
	c.Values = append(c.Values, nil)
	return &model.Table{Rows: len(c.Values), Columns: []model.Column{c}}
}

func TestCanonicalizeEpochUnits(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)

	for name, v := range map[string]int64{
		"ms": want.UnixMilli(),
		"us": want.UnixMicro(),
		"ns": want.UnixNano(),
	} {
		t.Run(name, func(t *testing.T) {
			tbl := epochTable(v, v+1)
			require.NoError(t, Canonicalize(tbl, now))
			c := tbl.Column("open_time")
			assert.Equal(t, model.KindTimestamp, c.Kind)
			assert.Equal(t, want, c.Values[0])
			assert.Nil(t, c.Values[2])
		})
	}
}

func TestCanonicalizeRejectsOutOfRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// 1990 in ms: no unit puts it inside the window
	err := Canonicalize(epochTable(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()), now)
	assert.ErrorIs(t, err, ErrParse)

	// the max must be in range too
	ok := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	far := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	err = Canonicalize(epochTable(ok, far), now)
	assert.ErrorIs(t, err, ErrParse)
}

func TestCanonicalizeStringTimes(t *testing.T) {
	tbl := &model.Table{Rows: 2, Columns: []model.Column{
		{Name: "create_time", Kind: model.KindString, Values: []any{"2024-02-11 00:05:00", nil}},
		{Name: "date", Kind: model.KindString, Values: []any{"2024-02-11", "2024-02-12"}},
		{Name: "timestamp", Kind: model.KindString, Values: []any{"2024-02-11 00:05:00", "garbage"}},
	}}
	require.NoError(t, Canonicalize(tbl, time.Now()))
	assert.Equal(t, model.KindTimestamp, tbl.Column("create_time").Kind)
	assert.Equal(t, time.Date(2024, 2, 11, 0, 5, 0, 0, time.UTC), tbl.Column("create_time").Values[0])
	assert.Equal(t, model.KindTimestamp, tbl.Column("date").Kind)
	assert.Equal(t, model.KindString, tbl.Column("timestamp").Kind)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		[]time.Duration{b(0), b(1), b(2)})
}

type fakeDownloader struct {
	mu      sync.Mutex
	calls   map[model.DateToken]int
	failN   map[model.DateToken]int
	payload map[model.DateToken][]byte
	body    []byte
}

func newFakeDownloader(body []byte) *fakeDownloader {
	return &fakeDownloader{
		calls:   map[model.DateToken]int{},
		failN:   map[model.DateToken]int{},
		payload: map[model.DateToken][]byte{},
		body:    body,
	}
}

func (f *fakeDownloader) Download(_ context.Context, key market.ArchiveKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key.Token]++
	if f.calls[key.Token] <= f.failN[key.Token] {
		return nil, errors.New("status 503")
	}
	if p, ok := f.payload[key.Token]; ok {
		return p, nil
	}
	return f.body, nil
}

func (f *fakeDownloader) callsOf(tok model.DateToken) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tok]
}

type fixture struct {
	fs     afero.Fs
	dl     *fakeDownloader
	layout storage.Layout
	clock  *clockwork.FakeClock
	sel    market.Selection
}

func newFixture(t *testing.T) *fixture {
	sel := klinesSel(t)
	return &fixture{
		fs:     afero.NewMemMapFs(),
		dl:     newFakeDownloader(zipOf(t, "x.csv", klinesCSV)),
		layout: storage.Layout{Root: "mirror", Selection: sel, Ext: "csv"},
		clock:  clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		sel:    sel,
	}
}

func (f *fixture) pipeline(cfg Config) *Pipeline {
	store := storage.NewFSStore(f.fs, 4, nil)
	return NewPipeline(f.dl, store, f.layout, saver.CSVSaver{}, cfg, f.clock, nil)
}

func (f *fixture) key(tok model.DateToken) market.ArchiveKey {
	return market.ArchiveKey{Selection: f.sel, Symbol: "BTCUSDT", Token: tok}
}

func TestFetchOneStores(t *testing.T) {
	f := newFixture(t)
	out := f.pipeline(Config{}).FetchOne(context.Background(), f.key("2024-02-11"), NewFetchLimiter(2))

	require.Equal(t, Stored, out.Status, out.Reason())
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, "mirror/data/spot/klines/BTCUSDT/1d/2024-02-11.csv", out.Dest)

	stored, err := afero.ReadFile(f.fs, out.Dest)
	require.NoError(t, err)
	assert.Contains(t, string(stored), "open_time,open,high")
	assert.Contains(t, string(stored), "2024-02-11T00:00:00Z")
}

func TestFetchOneSkipsExisting(t *testing.T) {
	f := newFixture(t)
	dest := f.layout.Key("BTCUSDT", "2024-02-11")
	require.NoError(t, afero.WriteFile(f.fs, dest, []byte("old"), 0o644))

	out := f.pipeline(Config{}).FetchOne(context.Background(), f.key("2024-02-11"), NewFetchLimiter(1))
	assert.Equal(t, SkippedExisting, out.Status)
	assert.Equal(t, 0, f.dl.callsOf("2024-02-11"))
}

func TestFetchOneRetryBudget(t *testing.T) {
	f := newFixture(t)
	f.dl.failN["2024-02-11"] = 100

	var mu sync.Mutex
	var delays []time.Duration
	exp := ExponentialBackoff(time.Second)
	p := f.pipeline(Config{MaxRetries: 3, Backoff: func(i int) time.Duration {
		d := exp(i)
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return d
	}})

	done := make(chan Outcome, 1)
	go func() { done <- p.FetchOne(context.Background(), f.key("2024-02-11"), NewFetchLimiter(1)) }()
	for i := 0; i < 3; i++ {
		f.clock.BlockUntil(1)
		f.clock.Advance(time.Second << i)
	}
	out := <-done

	assert.Equal(t, Failed, out.Status)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 4, f.dl.callsOf("2024-02-11"))
	assert.ErrorIs(t, out.Err, ErrFetch)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestFetchOneRecovers(t *testing.T) {
	f := newFixture(t)
	f.dl.failN["2024-02-11"] = 1
	p := f.pipeline(Config{MaxRetries: 3, Backoff: ExponentialBackoff(time.Second)})

	done := make(chan Outcome, 1)
	go func() { done <- p.FetchOne(context.Background(), f.key("2024-02-11"), NewFetchLimiter(1)) }()
	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)
	out := <-done

	assert.Equal(t, Stored, out.Status)
	assert.Equal(t, 2, out.Attempts)
}

func TestFetchOneParseFailureRetried(t *testing.T) {
	f := newFixture(t)
	f.dl.payload["2024-02-11"] = zipOf(t, "x.csv", "1,2,3\n")
	p := f.pipeline(Config{MaxRetries: 2, Backoff: ExponentialBackoff(time.Second)})

	done := make(chan Outcome, 1)
	go func() { done <- p.FetchOne(context.Background(), f.key("2024-02-11"), NewFetchLimiter(1)) }()
	for i := 0; i < 2; i++ {
		f.clock.BlockUntil(1)
		f.clock.Advance(time.Second << i)
	}
	out := <-done

	assert.Equal(t, Failed, out.Status)
	assert.ErrorIs(t, out.Err, ErrParse)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, f.dl.callsOf("2024-02-11"))
	exists, err := afero.Exists(f.fs, out.Dest)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFetchBatchPartialFailure(t *testing.T) {
	f := newFixture(t)
	var keys []market.ArchiveKey
	for d := 1; d <= 7; d++ {
		keys = append(keys, f.key(model.DateToken(fmt.Sprintf("2024-02-%02d", d))))
	}
	f.dl.payload["2024-02-04"] = zipOf(t, "x.csv", "1704067200000,1,2\n")

	outs := f.pipeline(Config{MaxRetries: 0, BatchSize: 3}).FetchBatch(context.Background(), keys, NewFetchLimiter(2))
	require.Len(t, outs, 7)
	c := CountOutcomes(outs)
	assert.Equal(t, Counts{Stored: 6, Failed: 1}, c)
	assert.Equal(t, model.DateToken("2024-02-04"), outs[3].Key.Token)
	assert.Equal(t, Failed, outs[3].Status)
	assert.ErrorIs(t, outs[3].Err, ErrParse)
	assert.NotEmpty(t, outs[3].Reason())

	for _, o := range outs {
		exists, err := afero.Exists(f.fs, o.Dest)
		require.NoError(t, err)
		assert.Equal(t, o.Status == Stored, exists, o.Key.Token)
	}
}

func TestFetchBatchCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outs := f.pipeline(Config{}).FetchBatch(ctx, []market.ArchiveKey{f.key("2024-02-01")}, NewFetchLimiter(1))
	assert.Empty(t, outs)
	assert.Equal(t, 0, f.dl.callsOf("2024-02-01"))
}
