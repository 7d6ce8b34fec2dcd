package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"kc-ladder-bot/internal/account"
	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/exec"
	"kc-ladder-bot/internal/market"
	"kc-ladder-bot/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const testConfig = `
base: KCS
quote: USDT
tick_len: 3600
retry_interval: 30
loglevel: debug
strategies:
  - name: careful
    strategy: bid-and-ask
    buy:  {order_count: 2, vol_percent: 50, pcnt_bump_a: 1, pcnt_bump_c: 1}
    sell: {order_count: 2, vol_percent: 50, pcnt_bump_a: 1, pcnt_bump_c: 1}
reconcile:
  enabled: true
  lookback: 600
`

func mustConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg
}

type fakeMarket struct {
	ticker market.Ticker
	err    error
}

func (f *fakeMarket) Snapshot(ctx context.Context, symbol string) (market.Ticker, error) {
	return f.ticker, f.err
}

type fakeAccount struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	history  map[string][]account.OrderRecord
	queries  []account.HistoryQuery
}

func (f *fakeAccount) Balances(ctx context.Context, base, quote string) (map[string]decimal.Decimal, error) {
	return f.balances, nil
}

func (f *fakeAccount) History(ctx context.Context, q account.HistoryQuery) ([]account.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.history[q.Side+"_"+q.Status], nil
}

type submission struct {
	label  string
	orders []exec.Order
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submission
	err   error
	hook  func()
}

func (f *fakeSubmitter) Submit(ctx context.Context, label, symbol string, orders []exec.Order) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submission{label: label, orders: orders})
	f.mu.Unlock()
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return 0, f.err
	}
	return len(orders), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Send(ctx context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

type countingCounter struct {
	mu sync.Mutex
	n  int
}

func (c *countingCounter) Inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type testMetrics struct {
	run, failed, config *countingCounter
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *fakeAccount, *fakeSubmitter, *recordingNotifier, testMetrics) {
	t.Helper()
	acct := &fakeAccount{
		balances: map[string]decimal.Decimal{
			"KCS":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(1000),
		},
		history: map[string][]account.OrderRecord{
			"buy_done": {{CreatedAt: 1, Side: "buy", Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(10), DealSize: decimal.NewFromInt(10)}},
		},
	}
	sub := &fakeSubmitter{}
	notifier := &recordingNotifier{}
	tm := testMetrics{run: &countingCounter{}, failed: &countingCounter{}, config: &countingCounter{}}
	m := metrics.NewNoop()
	m.CyclesRun = tm.run
	m.CyclesFailed = tm.failed
	m.ConfigErrors = tm.config
	a := &App{
		configPath: "config.yaml",
		loadConfig: func(string) (*config.Config, error) { return cfg, nil },
		now:        func() time.Time { return time.UnixMilli(1700000000000) },
		sleep:      sleep,
		cfg:        cfg,
		log:        zap.NewNop(),
		level:      zap.NewAtomicLevelAt(zapcore.InfoLevel),
		market: &fakeMarket{ticker: market.Ticker{
			Ask:  decimal.RequireFromString("1.02"),
			Bid:  decimal.RequireFromString("1.00"),
			High: decimal.RequireFromString("1.10"),
			Low:  decimal.RequireFromString("0.90"),
		}},
		account:   acct,
		submitter: sub,
		metrics:   m,
		alerts:    notifier,
		phase:     NewPhaseMachine(),
	}
	return a, acct, sub, notifier, tm
}

func TestCycleReconcilesThenRunsStrategies(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	a, acct, sub, _, _ := newTestApp(t, cfg)

	placements, err := a.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	// rebuy has nothing to close and the sell ladder is below minimum balance.
	if len(sub.calls) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(sub.calls))
	}
	if sub.calls[0].label != "RESELL" || len(sub.calls[0].orders) != 1 {
		t.Fatalf("expected 1 RESELL order first, got %s/%d", sub.calls[0].label, len(sub.calls[0].orders))
	}
	if !sub.calls[0].orders[0].Price.Equal(decimal.RequireFromString("1.05")) {
		t.Fatalf("expected resell at 1.05, got %s", sub.calls[0].orders[0].Price)
	}
	if sub.calls[1].label != "BUY" || len(sub.calls[1].orders) != 2 {
		t.Fatalf("expected 2 BUY orders, got %s/%d", sub.calls[1].label, len(sub.calls[1].orders))
	}
	labels := []string{}
	for _, p := range placements {
		labels = append(labels, p.Label)
	}
	if strings.Join(labels, ",") != "REBUY,RESELL,BUY,SELL" {
		t.Fatalf("unexpected placement order %v", labels)
	}

	if len(acct.queries) != 6 {
		t.Fatalf("expected 6 history queries, got %d", len(acct.queries))
	}
	wantStart := time.UnixMilli(1700000000000).Add(-600 * time.Second)
	rebuy := acct.queries[:3]
	if rebuy[0].Side != "sell" || rebuy[0].Status != "done" || rebuy[1].Side != "buy" || rebuy[1].Status != "active" || rebuy[2].Status != "done" {
		t.Fatalf("unexpected rebuy queries %+v", rebuy)
	}
	for _, q := range acct.queries {
		if !q.StartAt.Equal(wantStart) || q.Symbol != "KCS-USDT" {
			t.Fatalf("unexpected query window %+v", q)
		}
	}
	if a.phase.Current() != PhaseStrategies {
		t.Fatalf("expected strategies phase, got %s", a.phase.Current())
	}
	if a.level.Level() != zapcore.DebugLevel {
		t.Fatalf("expected reloaded debug level, got %s", a.level.Level())
	}
}

func TestCycleSkipsReconcileWhenDisabled(t *testing.T) {
	cfg := mustConfig(t, strings.Replace(testConfig, "enabled: true", "enabled: false", 1))
	a, acct, sub, _, _ := newTestApp(t, cfg)
	if _, err := a.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(acct.queries) != 0 {
		t.Fatalf("expected no history queries, got %d", len(acct.queries))
	}
	if len(sub.calls) != 1 || sub.calls[0].label != "BUY" {
		t.Fatalf("expected a single BUY submission, got %+v", sub.calls)
	}
}

func TestCycleTickerErrorIsTransient(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	a, _, _, _, _ := newTestApp(t, cfg)
	a.market = &fakeMarket{err: errors.New("timeout")}
	_, err := a.cycle(context.Background())
	if err == nil || errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRunContinuesAfterFailedCycles(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	a, _, sub, notifier, tm := newTestApp(t, cfg)

	loads := 0
	a.loadConfig = func(string) (*config.Config, error) {
		loads++
		switch loads {
		case 1:
			return nil, os.ErrNotExist
		case 2:
			return nil, config.ErrInvalid
		}
		return cfg, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var delays []time.Duration
	a.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	want := []time.Duration{30 * time.Second, time.Hour, time.Hour}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(delays))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("sleep %d: expected %s, got %s", i, want[i], delays[i])
		}
	}
	if tm.run.value() != 3 || tm.failed.value() != 1 || tm.config.value() != 1 {
		t.Fatalf("unexpected metrics run=%d failed=%d config=%d", tm.run.value(), tm.failed.value(), tm.config.value())
	}
	if len(sub.calls) != 2 {
		t.Fatalf("expected the third cycle to submit, got %d submissions", len(sub.calls))
	}
	if len(notifier.messages) != 3 {
		t.Fatalf("expected 2 failure alerts and 1 summary, got %v", notifier.messages)
	}
	if !strings.Contains(notifier.messages[2], "cycle done") {
		t.Fatalf("expected summary last, got %q", notifier.messages[2])
	}
}

func TestRunInterruptDuringSleep(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	a, _, _, _, _ := newTestApp(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on interrupt")
	}
}

func TestRunInterruptDuringCycleIsNotReported(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	a, _, sub, notifier, tm := newTestApp(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	sub.hook = cancel
	sub.err = context.Canceled
	a.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatalf("must not sleep after interrupt")
		return nil
	}
	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(notifier.messages) != 0 || tm.failed.value() != 0 {
		t.Fatalf("interrupt must not be reported as failure")
	}
}

func TestRetryDelay(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	if got := retryDelay(cfg, nil); got != time.Hour {
		t.Fatalf("expected tick after success, got %s", got)
	}
	if got := retryDelay(cfg, errors.New("timeout")); got != 30*time.Second {
		t.Fatalf("expected retry interval after transient error, got %s", got)
	}
	if got := retryDelay(cfg, config.ErrInvalid); got != time.Hour {
		t.Fatalf("expected tick after config error, got %s", got)
	}
}

func TestNewRequiresKeys(t *testing.T) {
	cfg := mustConfig(t, testConfig)
	if _, err := New(cfg, config.Keys{Key: "k"}, "config.yaml", zap.NewNop(), zap.NewAtomicLevel()); err == nil {
		t.Fatalf("expected error for incomplete keys")
	}
	a, err := New(cfg, config.Keys{Key: "k", Secret: "s", Passphrase: "p"}, "config.yaml", zap.NewNop(), zap.NewAtomicLevel())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.prom != nil {
		t.Fatalf("metrics are disabled by default")
	}
	if a.Config() != cfg {
		t.Fatalf("expected startup config")
	}
}
