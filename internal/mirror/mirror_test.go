package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binance-mirror/internal/catalog"
	"binance-mirror/internal/coverage"
	"binance-mirror/internal/market"
	"binance-mirror/internal/model"
	"binance-mirror/internal/saver"
	"binance-mirror/internal/storage"
	"binance-mirror/internal/transfer"
)

const klineRow = "1707609600000,48000.1,48500,47900,48300.5,12.5,1707695999999,600000.1,1200,6.1,300000.2,0\n"

// archiveServer serves a fake data.binance.vision bucket.
type archiveServer struct {
	t        *testing.T
	symbols  []string
	files    map[string][]string // listing prefix -> keys
	broken   map[string]bool     // listing prefix -> 500
	mu       sync.Mutex
	download []string
}

func (a *archiveServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "" {
		a.mu.Lock()
		a.download = append(a.download, strings.TrimPrefix(r.URL.Path, "/"))
		a.mu.Unlock()
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		f, _ := zw.Create("member.csv")
		f.Write([]byte(klineRow))
		zw.Close()
		w.Write(buf.Bytes())
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if a.broken[prefix] {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	var b strings.Builder
	b.WriteString(`<ListBucketResult><IsTruncated>false</IsTruncated>`)
	if prefix == "data/spot/daily/klines/" {
		for _, s := range a.symbols {
			fmt.Fprintf(&b, "<CommonPrefixes><Prefix>%s%s/</Prefix></CommonPrefixes>", prefix, s)
		}
	}
	for _, k := range a.files[prefix] {
		fmt.Fprintf(&b, "<Contents><Key>%s%s</Key></Contents>", prefix, k)
		fmt.Fprintf(&b, "<Contents><Key>%s%s.CHECKSUM</Key></Contents>", prefix, k)
	}
	b.WriteString(`</ListBucketResult>`)
	fmt.Fprint(w, b.String())
}

func (a *archiveServer) downloads() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]string(nil), a.download...)
	sort.Strings(out)
	return out
}

// recordingStore logs mutating calls in order.
type recordingStore struct {
	storage.Store
	mu  sync.Mutex
	ops []string
}

func (r *recordingStore) Put(ctx context.Context, key string, data []byte) error {
	r.mu.Lock()
	r.ops = append(r.ops, "put "+key)
	r.mu.Unlock()
	return r.Store.Put(ctx, key, data)
}

func (r *recordingStore) Delete(ctx context.Context, keys []string) storage.DeleteReport {
	r.mu.Lock()
	for _, k := range keys {
		r.ops = append(r.ops, "delete "+k)
	}
	r.mu.Unlock()
	return r.Store.Delete(ctx, keys)
}

type env struct {
	srv    *archiveServer
	fs     afero.Fs
	store  *recordingStore
	layout storage.Layout
	syncer *Syncer
	clock  *clockwork.FakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cat, err := market.KlineCategory(market.Klines, market.Interval1d)
	require.NoError(t, err)
	sel := market.Selection{Market: market.Spot, Category: cat}

	a := &archiveServer{
		t:       t,
		symbols: []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"},
		files: map[string][]string{
			"data/spot/monthly/klines/BTCUSDT/1d/": {"BTCUSDT-1d-2024-01.zip"},
			"data/spot/daily/klines/BTCUSDT/1d/":   {"BTCUSDT-1d-2024-02-10.zip", "BTCUSDT-1d-2024-02-11.zip"},
			"data/spot/daily/klines/ETHUSDT/1d/":   {"ETHUSDT-1d-2024-02-10.zip"},
		},
		broken: map[string]bool{"data/spot/daily/klines/XRPUSDT/1d/": true},
	}
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)

	fs := afero.NewMemMapFs()
	layout := storage.Layout{Root: "mirror", Selection: sel, Ext: "csv"}
	store := &recordingStore{Store: storage.NewFSStore(fs, 2, nil)}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	client := catalog.New(srv.URL, sel)
	pipe := transfer.NewPipeline(client, store, layout, saver.CSVSaver{}, transfer.Config{BatchSize: 2}, clock, nil)
	syncer := NewSyncer(client, store, layout, pipe, Config{FetchConcurrency: 4, SymbolConcurrency: 2, WaveSize: 2}, clock, nil)

	e := &env{srv: a, fs: fs, store: store, layout: layout, syncer: syncer, clock: clock}
	e.seed(t, "BTCUSDT", "2024-01-05", "2024-02-10")
	e.seed(t, "ETHUSDT", "2024-02-10")
	return e
}

func (e *env) seed(t *testing.T, symbol string, tokens ...model.DateToken) {
	for _, tok := range tokens {
		require.NoError(t, afero.WriteFile(e.fs, e.layout.Key(symbol, tok), []byte("seed"), 0o644))
	}
}

func (e *env) exists(t *testing.T, symbol string, tok model.DateToken) bool {
	ok, err := afero.Exists(e.fs, e.layout.Key(symbol, tok))
	require.NoError(t, err)
	return ok
}

func TestComputeCoverage(t *testing.T) {
	e := newEnv(t)
	res, err := e.syncer.ComputeCoverage(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, coverage.NewSet("2024-01"), res.MonthsToFetch)
	assert.Equal(t, coverage.NewSet("2024-02-11"), res.DaysToFetch)
	assert.Equal(t, coverage.NewSet("2024-01-05"), res.DaysToRemove)

	_, err = e.syncer.ComputeCoverage(context.Background(), "XRPUSDT")
	assert.ErrorIs(t, err, catalog.ErrListing)
}

func TestSyncAllSymbols(t *testing.T) {
	e := newEnv(t)
	rep, err := e.syncer.Sync(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rep.Symbols, 3)
	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.Cancelled)

	bySym := map[string]SymbolReport{}
	for _, s := range rep.Symbols {
		bySym[s.Symbol] = s
	}

	btc := bySym["BTCUSDT"]
	assert.Equal(t, StatusSynced, btc.Status)
	assert.Equal(t, PlanCounts{Months: 1, Days: 1, Removes: 1}, btc.Planned)
	assert.Equal(t, 2, btc.Fetched)
	assert.Equal(t, 1, btc.Removed)
	assert.Zero(t, btc.Failed)
	assert.True(t, e.exists(t, "BTCUSDT", "2024-01"))
	assert.True(t, e.exists(t, "BTCUSDT", "2024-02-11"))
	assert.True(t, e.exists(t, "BTCUSDT", "2024-02-10"))
	assert.False(t, e.exists(t, "BTCUSDT", "2024-01-05"))

	assert.Equal(t, StatusUpToDate, bySym["ETHUSDT"].Status)
	xrp := bySym["XRPUSDT"]
	assert.Equal(t, StatusFailed, xrp.Status)
	assert.Contains(t, xrp.Error, "XRPUSDT")

	// the superseded day goes before any fetch of that symbol
	e.store.mu.Lock()
	ops := append([]string(nil), e.store.ops...)
	e.store.mu.Unlock()
	require.NotEmpty(t, ops)
	assert.Equal(t, "delete "+e.layout.Key("BTCUSDT", "2024-01-05"), ops[0])

	assert.Equal(t, []string{
		"data/spot/daily/klines/BTCUSDT/1d/BTCUSDT-1d-2024-02-11.zip",
		"data/spot/monthly/klines/BTCUSDT/1d/BTCUSDT-1d-2024-01.zip",
	}, e.srv.downloads())

	tot := rep.Totals()
	assert.Equal(t, Totals{Symbols: 3, UpToDate: 1, Synced: 1, FailedSymbols: 1, Fetched: 2, Removed: 1}, tot)
	assert.True(t, rep.HasFailures())

	// a second run has nothing left to do for the healthy symbols
	again, err := e.syncer.Sync(context.Background(), []string{"btcusdt", "ETHUSDT"})
	require.NoError(t, err)
	for _, s := range again.Symbols {
		assert.Equal(t, StatusUpToDate, s.Status, s.Symbol)
	}
}

func TestSyncSymbolListingFailure(t *testing.T) {
	e := newEnv(t)
	e.srv.broken["data/spot/daily/klines/"] = true

	_, err := e.syncer.Sync(context.Background(), nil)
	assert.ErrorIs(t, err, catalog.ErrListing)
	assert.Empty(t, e.srv.downloads())
}

func TestSyncCancelledBeforeFirstWave(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := e.syncer.Sync(ctx, []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.Empty(t, rep.Symbols)
	assert.True(t, e.exists(t, "BTCUSDT", "2024-01-05"))
}

func TestPlan(t *testing.T) {
	e := newEnv(t)
	plans, err := e.syncer.Plan(context.Background(), []string{"BTCUSDT", "xrpusdt"})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "BTCUSDT", plans[0].Symbol)
	assert.NoError(t, plans[0].Err)
	assert.Len(t, plans[0].Result.MonthsToFetch, 1)
	assert.Equal(t, "XRPUSDT", plans[1].Symbol)
	assert.Error(t, plans[1].Err)
	assert.Empty(t, e.srv.downloads())
}

func TestPartition(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, partition([]string{"a", "b", "c"}, 2))
	assert.Nil(t, partition(nil, 2))
}

func TestWriteRunReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	rep := &Report{RunID: "r1", Symbols: []SymbolReport{
		{Symbol: "BTCUSDT", Status: StatusSynced, Fetched: 2},
		{Symbol: "ETHUSDT", Status: StatusUpToDate},
		{Symbol: "BNBUSDT", Status: StatusSynced, Failed: 1, Failures: []ItemFailure{{Op: OpFetch, Item: "2024-02-11", Reason: "status 503"}}},
		{Symbol: "XRPUSDT", Status: StatusFailed, Error: "listing failed"},
	}}
	require.NoError(t, WriteRunReport(fs, "reports", rep, nil))

	var success []string
	data, err := afero.ReadFile(fs, "reports/.lastrun.success.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &success))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, success)

	var failed []failedEntry
	data, err = afero.ReadFile(fs, "reports/.lastrun.failed.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &failed))
	assert.Equal(t, []failedEntry{
		{Symbol: "BNBUSDT", Op: OpFetch, Item: "2024-02-11", Reason: "status 503"},
		{Symbol: "XRPUSDT", Reason: "listing failed"},
	}, failed)

	ok, err := afero.Exists(fs, "reports/.lastrun.report.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestHeartbeat(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	clock := clockwork.NewFakeClock()
	p := &progress{total: 3}
	p.add(SymbolReport{Status: StatusSynced, Fetched: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runHeartbeat(ctx, clock, 30*time.Second, p, logger)

	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "msg=heartbeat done=1 total=3")
	}, time.Second, 5*time.Millisecond)
}
