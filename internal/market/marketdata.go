package market

import (
	"context"
	"fmt"

	"kc-ladder-bot/internal/kucoin"

	"go.uber.org/zap"
)

type RestClient interface {
	Ticker(ctx context.Context, symbol string) (kucoin.Level1, error)
	Stats24h(ctx context.Context, symbol string) (kucoin.Stats, error)
}

type MarketData struct {
	rest RestClient
	log  *zap.Logger
}

func New(restClient RestClient, log *zap.Logger) *MarketData {
	if log == nil {
		log = zap.NewNop()
	}
	return &MarketData{rest: restClient, log: log}
}

// Snapshot fetches a fresh ticker for symbol. Both requests must succeed; a
// partial snapshot is never returned.
func (m *MarketData) Snapshot(ctx context.Context, symbol string) (Ticker, error) {
	level1, err := m.rest.Ticker(ctx, symbol)
	if err != nil {
		return Ticker{}, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}
	stats, err := m.rest.Stats24h(ctx, symbol)
	if err != nil {
		return Ticker{}, fmt.Errorf("fetch 24h stats %s: %w", symbol, err)
	}
	ticker, err := FromKuCoin(level1, stats)
	if err != nil {
		return Ticker{}, fmt.Errorf("%s: %w", symbol, err)
	}
	m.log.Info("ticker", zap.String("symbol", symbol), zap.String("header", ticker.Header()))
	m.log.Info("ticker", zap.String("symbol", symbol), zap.String("info", ticker.Info()))
	return ticker, nil
}
