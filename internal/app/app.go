package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kc-ladder-bot/internal/account"
	"kc-ladder-bot/internal/alerts"
	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/exec"
	"kc-ladder-bot/internal/kucoin"
	"kc-ladder-bot/internal/logging"
	"kc-ladder-bot/internal/market"
	"kc-ladder-bot/internal/metrics"
	"kc-ladder-bot/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MarketSource interface {
	Snapshot(ctx context.Context, symbol string) (market.Ticker, error)
}

type AccountSource interface {
	Balances(ctx context.Context, base, quote string) (map[string]decimal.Decimal, error)
	History(ctx context.Context, q account.HistoryQuery) ([]account.OrderRecord, error)
}

type OrderSubmitter interface {
	Submit(ctx context.Context, label, symbol string, orders []exec.Order) (int, error)
}

type App struct {
	configPath string
	loadConfig func(path string) (*config.Config, error)
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	mu  sync.RWMutex
	cfg *config.Config

	log       *zap.Logger
	level     zap.AtomicLevel
	market    MarketSource
	account   AccountSource
	submitter OrderSubmitter
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	alerts    alerts.Notifier
	phase     *PhaseMachine
}

// New wires the bot against the live exchange. cfg is the configuration read
// at startup; its rest, metrics and telegram sections are fixed for the life
// of the process while the rest is reloaded from configPath every cycle.
func New(cfg *config.Config, keys config.Keys, configPath string, log *zap.Logger, level zap.AtomicLevel) (*App, error) {
	signer, err := kucoin.NewSigner(kucoin.Credentials{
		Key:        keys.Key,
		Secret:     keys.Secret,
		Passphrase: keys.Passphrase,
	})
	if err != nil {
		return nil, err
	}
	client := kucoin.New(cfg.REST.BaseURL, cfg.REST.Timeout, signer, log)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	return &App{
		configPath: configPath,
		loadConfig: config.Load,
		now:        time.Now,
		sleep:      sleep,
		cfg:        cfg,
		log:        log,
		level:      level,
		market:     market.New(client, log),
		account:    account.New(client, log),
		submitter:  exec.NewSubmitter(client, m, log),
		metrics:    m,
		prom:       prom,
		alerts:     alerts.NewTelegram(cfg.Telegram, log),
		phase:      NewPhaseMachine(),
	}, nil
}

// Config returns the configuration the current or last cycle ran with.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Run drives cycles until ctx is cancelled. A failed cycle never ends the
// loop; it is logged and retried after a delay that depends on the error kind.
func (a *App) Run(ctx context.Context) error {
	if a.prom != nil {
		cfg := a.Config()
		a.prom.Serve(ctx, cfg.Metrics.Address, cfg.Metrics.Path, func(err error) {
			a.log.Warn("metrics listener failed", zap.Error(err))
		})
		a.log.Info("metrics enabled", zap.String("address", cfg.Metrics.Address), zap.String("path", cfg.Metrics.Path))
	}
	for {
		placements, err := a.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cfg := a.Config()
		if err != nil {
			a.reportFailure(ctx, cfg, err)
		} else if anyPlaced(placements) {
			alerts.Notify(ctx, a.alerts, a.log, alerts.CycleSummary(cfg.Symbol(), placements))
		}
		delay := retryDelay(cfg, err)
		a.phase.Advance(PhaseSleep)
		a.log.Info("sleeping", zap.Duration("duration", delay))
		if err := a.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (a *App) cycle(ctx context.Context) ([]alerts.Placement, error) {
	a.metrics.CyclesRun.Inc()

	a.phase.Advance(PhaseLoadConfig)
	cfg, err := a.loadConfig(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.applyConfig(cfg)

	a.phase.Advance(PhaseFetchBalances)
	balances, err := a.account.Balances(ctx, cfg.Base, cfg.Quote)
	if err != nil {
		return nil, err
	}

	a.phase.Advance(PhaseFetchTicker)
	ticker, err := a.market.Snapshot(ctx, cfg.Symbol())
	if err != nil {
		return nil, err
	}

	cycle := strategy.Cycle{
		Symbol:   cfg.Symbol(),
		Base:     cfg.Base,
		Quote:    cfg.Quote,
		Ticker:   ticker,
		Balances: balances,
		TickLen:  int64(cfg.TickLen),
		Log:      a.log,
	}

	var placements []alerts.Placement
	if cfg.Reconcile.Enabled {
		a.phase.Advance(PhaseReconcile)
		for _, direction := range cfg.Reconcile.Directions {
			orders, err := a.reconcile(ctx, cfg, cycle, direction)
			if err != nil {
				return placements, fmt.Errorf("reconcile %s: %w", direction, err)
			}
			placement, err := a.submit(ctx, strings.ToUpper(string(direction)), cycle.Symbol, orders)
			placements = append(placements, placement)
			if err != nil {
				return placements, err
			}
		}
	}

	a.phase.Advance(PhaseStrategies)
	for _, strat := range cfg.Strategies {
		a.log.Info("strategy", zap.String("name", strat.Name), zap.String("kind", string(strat.Kind)), zap.String("symbol", cycle.Symbol))
		for _, side := range []exec.Side{exec.SideBuy, exec.SideSell} {
			orders, err := cycle.Ladder(side, strat)
			if err != nil {
				return placements, fmt.Errorf("strategy %s %s: %w", strat.Name, side, err)
			}
			placement, err := a.submit(ctx, side.Label(), cycle.Symbol, orders)
			placements = append(placements, placement)
			if err != nil {
				return placements, err
			}
		}
	}
	return placements, nil
}

func (a *App) reconcile(ctx context.Context, cfg *config.Config, cycle strategy.Cycle, direction config.Direction) ([]exec.Order, error) {
	h, err := LoadHistory(ctx, a.account, cfg, direction, a.now())
	if err != nil {
		return nil, err
	}
	return cycle.Reconcile(direction, h)
}

// LoadHistory fetches the three order sets direction reconciles from, looking
// back cfg.LookbackWindow() from now.
func LoadHistory(ctx context.Context, src AccountSource, cfg *config.Config, direction config.Direction, now time.Time) (strategy.History, error) {
	var h strategy.History
	openSide, closeSide, err := strategy.Sides(direction)
	if err != nil {
		return h, err
	}
	base := account.HistoryQuery{
		Symbol:   cfg.Symbol(),
		StartAt:  now.Add(-cfg.LookbackWindow()),
		CacheDir: cfg.Reconcile.CacheDir,
		Cached:   cfg.Reconcile.Cached,
	}
	query := func(status string, side exec.Side) account.HistoryQuery {
		q := base
		q.Status = status
		q.Side = string(side)
		return q
	}
	if h.FilledOpen, err = src.History(ctx, query("done", openSide)); err != nil {
		return h, err
	}
	if h.ActiveClose, err = src.History(ctx, query("active", closeSide)); err != nil {
		return h, err
	}
	if h.FilledClose, err = src.History(ctx, query("done", closeSide)); err != nil {
		return h, err
	}
	return h, nil
}

func (a *App) submit(ctx context.Context, label, symbol string, orders []exec.Order) (alerts.Placement, error) {
	placement := alerts.Placement{Label: label, Total: len(orders)}
	if len(orders) == 0 {
		a.log.Info(fmt.Sprintf("placed 0/0 %s orders", label))
		return placement, nil
	}
	placed, err := a.submitter.Submit(ctx, label, symbol, orders)
	placement.Placed = placed
	return placement, err
}

func (a *App) applyConfig(cfg *config.Config) {
	level := logging.ParseLevel(cfg.LogLevel)
	if a.level.Level() != level {
		a.log.Info("log level changed", zap.Stringer("from", a.level.Level()), zap.Stringer("to", level))
		a.level.SetLevel(level)
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

func (a *App) reportFailure(ctx context.Context, cfg *config.Config, err error) {
	fields := []zap.Field{zap.String("phase", string(a.phase.Current())), zap.Error(err)}
	if errors.Is(err, config.ErrInvalid) {
		a.metrics.ConfigErrors.Inc()
		a.log.Error("cycle failed: configuration error", fields...)
	} else {
		a.metrics.CyclesFailed.Inc()
		a.log.Warn("cycle failed", fields...)
	}
	alerts.Notify(ctx, a.alerts, a.log, alerts.CycleFailed(cfg.Symbol(), err))
}

// retryDelay is the full tick after success or a configuration error, and the
// shorter retry interval after a transient failure.
func retryDelay(cfg *config.Config, err error) time.Duration {
	if err == nil || errors.Is(err, config.ErrInvalid) {
		return cfg.TickInterval()
	}
	return cfg.RetryDelay()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func anyPlaced(placements []alerts.Placement) bool {
	for _, p := range placements {
		if p.Placed > 0 {
			return true
		}
	}
	return false
}
