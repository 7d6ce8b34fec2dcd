package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kc-ladder-bot/internal/account"
	"kc-ladder-bot/internal/app"
	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/exec"
	"kc-ladder-bot/internal/kucoin"
	"kc-ladder-bot/internal/logging"
	"kc-ladder-bot/internal/market"
	"kc-ladder-bot/internal/strategy"
)

// verify exercises the exchange connection and prints what one cycle would
// place. It never submits orders.
func main() {
	configPath := flag.String("config", "", "path to config file (YAML or JSON)")
	keysPath := flag.String("keys", "", "path to API keys file; KC_API_* env vars override it")
	envPath := flag.String("env", ".env", "path to .env file")
	reconcile := flag.Bool("reconcile", false, "also print the opposite orders reconciliation would place")
	flag.Parse()

	if *configPath == "" {
		fatal(fmt.Errorf("-config is required"))
	}
	if err := config.LoadEnv(*envPath); err != nil {
		fatal(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	keys, err := config.LoadKeys(*keysPath)
	if err != nil {
		fatal(err)
	}
	log, _ := logging.New("warn")
	defer func() { _ = log.Sync() }()

	signer, err := kucoin.NewSigner(kucoin.Credentials{Key: keys.Key, Secret: keys.Secret, Passphrase: keys.Passphrase})
	if err != nil {
		fatal(err)
	}
	client := kucoin.New(cfg.REST.BaseURL, cfg.REST.Timeout, signer, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	acct := account.New(client, log)
	balances, err := acct.Balances(ctx, cfg.Base, cfg.Quote)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Balances: %s %s, %s %s\n", balances[cfg.Base], cfg.Base, balances[cfg.Quote], cfg.Quote)

	ticker, err := market.New(client, log).Snapshot(ctx, cfg.Symbol())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Ticker for %s (in %s):\n%s\n%s\n", cfg.Symbol(), cfg.Quote, ticker.Header(), ticker.Info())

	cycle := strategy.Cycle{
		Symbol:   cfg.Symbol(),
		Base:     cfg.Base,
		Quote:    cfg.Quote,
		Ticker:   ticker,
		Balances: balances,
		TickLen:  int64(cfg.TickLen),
		Log:      log,
	}

	if *reconcile {
		directions := cfg.Reconcile.Directions
		if len(directions) == 0 {
			directions = []config.Direction{config.DirectionRebuy, config.DirectionResell}
		}
		for _, direction := range directions {
			h, err := app.LoadHistory(ctx, acct, cfg, direction, time.Now())
			if err != nil {
				fatal(err)
			}
			orders, err := cycle.Reconcile(direction, h)
			if err != nil {
				fatal(err)
			}
			printOrders(strings.ToUpper(string(direction)), orders)
		}
	}

	for _, strat := range cfg.Strategies {
		fmt.Printf("--- %s (%s) ---\n", strat.Name, strat.Kind)
		for _, side := range []exec.Side{exec.SideBuy, exec.SideSell} {
			orders, err := cycle.Ladder(side, strat)
			if err != nil {
				fatal(err)
			}
			printOrders(side.Label(), orders)
		}
	}
}

func printOrders(label string, orders []exec.Order) {
	if len(orders) == 0 {
		fmt.Printf("%s: none\n", label)
		return
	}
	for _, order := range orders {
		fmt.Printf("%-6s %12s @ %10s = %10s %s %s\n",
			label,
			order.Size.StringFixed(4),
			order.Price.StringFixed(4),
			order.Notional().StringFixed(2),
			order.TimeInForce,
			order.ClientOid,
		)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "verify: %v\n", err)
	os.Exit(1)
}
