package strategy

import (
	"kc-ladder-bot/internal/account"
	"kc-ladder-bot/internal/market"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MinSellBalance is the smallest base balance worth laddering out.
var MinSellBalance = decimal.NewFromInt(100)

// pricePlaces is the precision of every price and size sent to the exchange.
const pricePlaces = 4

// Balances holds available amounts keyed by asset symbol.
type Balances map[string]decimal.Decimal

// Cycle is the read-only view of one trading cycle. It is built by the driver
// after balances and ticker are fetched and discarded when the cycle ends.
type Cycle struct {
	Symbol   string
	Base     string
	Quote    string
	Ticker   market.Ticker
	Balances Balances
	// TickLen is the cycle interval in seconds; ladder orders expire after it.
	TickLen int64
	Log     *zap.Logger
}

func (c Cycle) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// History is the order history one reconciliation direction works from.
type History struct {
	// FilledOpen are done orders on the entry side.
	FilledOpen []account.OrderRecord
	// ActiveClose are resting orders on the closing side.
	ActiveClose []account.OrderRecord
	// FilledClose are done orders on the closing side.
	FilledClose []account.OrderRecord
}
