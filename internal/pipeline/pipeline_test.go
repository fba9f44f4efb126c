package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AnmolBhardwaj/StockWatcher/internal/datasource"
	"github.com/AnmolBhardwaj/StockWatcher/internal/llm"
	"github.com/AnmolBhardwaj/StockWatcher/internal/notify"
	"github.com/AnmolBhardwaj/StockWatcher/internal/store"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

var testNow = time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC)

// ── fakes ──

type fakePrices struct {
	bars     map[string][]models.OHLCV
	fund     map[string]*models.Fundamentals
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakePrices) History(ctx context.Context, symbol string, from, to time.Time) ([]models.OHLCV, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	b, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", datasource.ErrTickerNotFound, symbol)
	}
	return b, nil
}

func (f *fakePrices) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if fd, ok := f.fund[symbol]; ok {
		return fd, nil
	}
	return nil, errors.New("quoteSummary unauthorized")
}

type fakeFeeds map[string][]models.RawNewsItem

func (f fakeFeeds) Fetch(ctx context.Context, feed datasource.Feed) ([]models.RawNewsItem, error) {
	items, ok := f[feed.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", datasource.ErrFeedUnavailable, feed.Name)
	}
	return items, nil
}

type fakeOracle struct {
	reply string
	err   error
	calls int
	msgs  []llm.Message
}

func (o *fakeOracle) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	o.calls++
	o.msgs = messages
	if o.err != nil {
		return nil, o.err
	}
	return &llm.Response{Content: o.reply, Provider: "fake"}, nil
}

// slowOracle blocks until its context expires.
type slowOracle struct{}

func (slowOracle) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeDispatcher struct {
	mu      sync.Mutex
	reports []string
	err     error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, report string) (notify.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = append(d.reports, report)
	if d.err != nil {
		return notify.Result{Failed: 1}, d.err
	}
	return notify.Result{Delivered: 1, Chunks: []notify.ChunkResult{{Index: 1, Total: 1, Mode: notify.ModeRich}}}, nil
}

type countingStore struct {
	store.Store
	persists int
}

func (s *countingStore) Persist(ctx context.Context, st store.State) error {
	s.persists++
	return s.Store.Persist(ctx, st)
}

func risingBars(n int, base float64) []models.OHLCV {
	bars := make([]models.OHLCV, n)
	start := testNow.AddDate(0, 0, -n)
	for i := range bars {
		c := base + float64(i)
		bars[i] = models.OHLCV{Timestamp: start.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

const goodReply = `BHEL.NS | SCORE=0.82 | ACTION=AGGRESSIVE | ALLOCATION=₹9,000
LT.NS | SCORE=0.55 | ACTION=NORMAL | ALLOCATION=₹6,000
NTPC.NS | SCORE=0.00 | ACTION=NO_SIP | ALLOCATION=₹0

Strategic Alpha: BHEL order book is the catalyst.`

func newTestPipeline(t *testing.T, oracle Oracle, disp Dispatcher) (*Pipeline, *countingStore, *fakePrices) {
	t.Helper()
	prices := &fakePrices{
		bars: map[string][]models.OHLCV{
			"BHEL.NS":     risingBars(200, 100),
			"LT.NS":       risingBars(150, 3000),
			"MTARTECH.NS": risingBars(40, 1500), // too short
		},
		fund: map[string]*models.Fundamentals{
			"BHEL.NS": {DebtToEquity: 30.1, ProfitMargins: 0.04},
		},
	}
	feeds := fakeFeeds{
		"ET_Energy": {
			{Source: "ET_Energy", Title: "BHEL WINS ORDER FROM NPCIL", Link: "https://example.com/1", Published: testNow},
			{Source: "ET_Energy", Title: "Monsoon arrives early in Kerala", Link: "https://example.com/2", Published: testNow},
		},
	}
	st := &countingStore{Store: store.NewJSONStore(t.TempDir()+"/state.json", nil)}
	p := New(Deps{Prices: prices, Feeds: feeds, Store: st, Oracle: oracle, Dispatcher: disp}, Settings{
		Tickers:       []string{"BHEL.NS", "LT.NS", "MTARTECH.NS", "NTPC.NS"},
		Feeds:         []datasource.Feed{{Name: "ET_Energy"}, {Name: "Down_Feed"}},
		Concurrency:   2,
		FetchTimeout:  time.Second,
		OracleTimeout: 50 * time.Millisecond,
		Budget:        decimal.NewFromInt(20000),
	}, nil, WithClock(func() time.Time { return testNow }), WithRunIDs(func() string { return "run-1" }))
	return p, st, prices
}

// ── stages ──

func TestScanPrices(t *testing.T) {
	p, _, prices := newTestPipeline(t, nil, nil)

	set, err := p.ScanPrices(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ScanPrices: %v", err)
	}
	if set.Len() != 4 || set.AvailableCount() != 2 {
		t.Fatalf("len=%d available=%d, want 4/2", set.Len(), set.AvailableCount())
	}
	if set.Date != "2026-10-14" || set.RunID != "run-1" {
		t.Errorf("metadata = %s/%s", set.Date, set.RunID)
	}

	bhel := set.Tickers["BHEL.NS"]
	if !bhel.IsAvailable() || !bhel.Snapshot.IsStructuralBull || bhel.Snapshot.DebtRatio != 30.1 {
		t.Errorf("BHEL = %+v", bhel.Snapshot)
	}
	// fundamentals failure degrades to zero ratios
	if lt := set.Tickers["LT.NS"]; !lt.IsAvailable() || lt.Snapshot.DebtRatio != 0 {
		t.Errorf("LT = %+v", lt)
	}
	if mt := set.Tickers["MTARTECH.NS"]; mt.IsAvailable() || !strings.Contains(mt.Reason, "insufficient") {
		t.Errorf("MTARTECH = %+v", mt)
	}
	if nt := set.Tickers["NTPC.NS"]; nt.Status != models.StatusUnavailable || nt.Reason == "" {
		t.Errorf("NTPC = %+v", nt)
	}
	if m := prices.maxSeen.Load(); m > 2 {
		t.Errorf("concurrency limit exceeded: %d in flight", m)
	}
}

func TestCollectNewsSkipsFailedFeed(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil, nil)

	merged, report, err := p.CollectNews(context.Background(), nil)
	if err != nil {
		t.Fatalf("CollectNews: %v", err)
	}
	if report.FeedsOK != 1 || len(report.FeedsFailed) != 1 || report.FeedsFailed[0] != "Down_Feed" {
		t.Errorf("report = %+v", report)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 accepted item, got %d", len(merged))
	}
	if !merged[0].IsCritical || merged[0].Category != models.CategoryOrderWin {
		t.Errorf("item = %+v", merged[0])
	}
}

func TestAuditDispatchesAnnotatedReport(t *testing.T) {
	oracle := &fakeOracle{reply: goodReply}
	disp := &fakeDispatcher{}
	p, _, _ := newTestPipeline(t, oracle, disp)

	set, _ := p.ScanPrices(context.Background(), "run-1")
	res, err := p.Audit(context.Background(), store.State{Snapshots: set}, "run-1", false)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if oracle.calls != 1 || len(oracle.msgs) != 2 || oracle.msgs[0].Role != llm.RoleSystem {
		t.Fatalf("oracle messages = %+v", oracle.msgs)
	}
	if !strings.Contains(oracle.msgs[0].Content, "CONTEXT:") {
		t.Error("system message should carry the context block")
	}
	if len(disp.reports) != 1 || !res.Dispatched {
		t.Fatalf("dispatch calls = %d", len(disp.reports))
	}
	// MTARTECH has no verdict line
	if !strings.Contains(disp.reports[0], "⚠️ Validation") || !strings.Contains(disp.reports[0], "MTARTECH") {
		t.Errorf("report not annotated:\n%s", disp.reports[0])
	}
	if !res.Validation.Total.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("total = %s", res.Validation.Total)
	}
}

func TestAuditOracleTimeoutNeverDispatches(t *testing.T) {
	disp := &fakeDispatcher{}
	p, _, _ := newTestPipeline(t, slowOracle{}, disp)

	res, err := p.Audit(context.Background(), store.Empty(), "run-1", false)
	if !errors.Is(err, ErrOracleFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected OracleFailure wrapping deadline, got %v", err)
	}
	if len(disp.reports) != 0 {
		t.Fatal("dispatcher must not be called after oracle failure")
	}
	if res.Reply != "" || res.Report != "" {
		t.Errorf("no partial output expected: %+v", res)
	}
}

func TestAuditEmptyReply(t *testing.T) {
	disp := &fakeDispatcher{}
	p, _, _ := newTestPipeline(t, &fakeOracle{reply: "  \n"}, disp)

	_, err := p.Audit(context.Background(), store.Empty(), "run-1", false)
	if !errors.Is(err, ErrOracleFailure) {
		t.Fatalf("expected ErrOracleFailure, got %v", err)
	}
	if len(disp.reports) != 0 {
		t.Fatal("dispatcher must not be called for an empty reply")
	}
}

func TestAuditDryRun(t *testing.T) {
	disp := &fakeDispatcher{}
	p, _, _ := newTestPipeline(t, &fakeOracle{reply: goodReply}, disp)

	res, err := p.Audit(context.Background(), store.Empty(), "run-1", true)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(disp.reports) != 0 || res.Dispatched {
		t.Error("dry run must not dispatch")
	}
	if res.Report == "" {
		t.Error("dry run should still produce the report")
	}
}

func TestAuditDispatchFailureSurfaces(t *testing.T) {
	disp := &fakeDispatcher{err: fmt.Errorf("%w: 1 of 1 chunks failed", notify.ErrDispatchFailure)}
	p, _, _ := newTestPipeline(t, &fakeOracle{reply: goodReply}, disp)

	_, err := p.Audit(context.Background(), store.Empty(), "run-1", false)
	if !errors.Is(err, notify.ErrDispatchFailure) {
		t.Fatalf("expected ErrDispatchFailure, got %v", err)
	}
}

// ── full cycle ──

func TestRunCyclePersistsOnce(t *testing.T) {
	disp := &fakeDispatcher{}
	p, st, _ := newTestPipeline(t, &fakeOracle{reply: goodReply}, disp)

	res, err := p.RunCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if st.persists != 1 {
		t.Errorf("Persist called %d times, want 1", st.persists)
	}
	if res.RunID != "run-1" || res.Audit == nil || !res.Audit.Dispatched {
		t.Errorf("result = %+v", res)
	}

	saved, _ := st.LoadLatest(context.Background())
	if saved.Snapshots.Len() != 4 || len(saved.News) != 1 {
		t.Errorf("saved state: %d snapshots, %d news", saved.Snapshots.Len(), len(saved.News))
	}
}

func TestRunCycleOracleFailureStillPersists(t *testing.T) {
	disp := &fakeDispatcher{}
	p, st, _ := newTestPipeline(t, &fakeOracle{err: llm.ErrProviderDown}, disp)

	_, err := p.RunCycle(context.Background(), false)
	if !errors.Is(err, ErrOracleFailure) {
		t.Fatalf("expected ErrOracleFailure, got %v", err)
	}
	if st.persists != 1 || len(disp.reports) != 0 {
		t.Errorf("persists=%d dispatches=%d", st.persists, len(disp.reports))
	}
}

func TestScanAndNewsKeepOtherCollection(t *testing.T) {
	p, st, _ := newTestPipeline(t, nil, nil)
	ctx := context.Background()

	if _, err := p.News(ctx); err != nil {
		t.Fatalf("News: %v", err)
	}
	if _, err := p.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	saved, _ := st.LoadLatest(ctx)
	if len(saved.News) != 1 || saved.Snapshots.Len() != 4 {
		t.Errorf("scan dropped news or vice versa: %d news, %d snapshots", len(saved.News), saved.Snapshots.Len())
	}
}
