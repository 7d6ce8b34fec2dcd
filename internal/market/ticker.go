package market

import (
	"fmt"

	"kc-ladder-bot/internal/kucoin"

	"github.com/shopspring/decimal"
)

// Ticker is a point-in-time view of one market: best ask/bid from the level-1
// orderbook and the 24h high/low.
type Ticker struct {
	Ask  decimal.Decimal
	Bid  decimal.Decimal
	High decimal.Decimal
	Low  decimal.Decimal
}

// FromKuCoin builds a Ticker from the level-1 orderbook and 24h stats responses.
func FromKuCoin(level1 kucoin.Level1, stats kucoin.Stats) (Ticker, error) {
	ask, err := parseField("bestAsk", level1.BestAsk)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parseField("bestBid", level1.BestBid)
	if err != nil {
		return Ticker{}, err
	}
	high, err := parseField("high", stats.High)
	if err != nil {
		return Ticker{}, err
	}
	low, err := parseField("low", stats.Low)
	if err != nil {
		return Ticker{}, err
	}
	return Ticker{Ask: ask, Bid: bid, High: high, Low: low}, nil
}

func parseField(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("ticker: missing %s", name)
	}
	val, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker: parse %s %q: %w", name, raw, err)
	}
	return val, nil
}

// Mid is the midpoint of the 24h range.
func (t Ticker) Mid() decimal.Decimal {
	return t.High.Add(t.Low).Div(decimal.NewFromInt(2))
}

func (t Ticker) Header() string {
	return fmt.Sprintf("%9s, %9s, %9s, %9s", "Ask", "Bid", "High", "Low")
}

// Info renders each field with four decimals, right-aligned under Header.
func (t Ticker) Info() string {
	return fmt.Sprintf("%9s, %9s, %9s, %9s",
		t.Ask.StringFixed(4), t.Bid.StringFixed(4), t.High.StringFixed(4), t.Low.StringFixed(4))
}
