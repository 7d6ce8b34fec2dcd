package exec

import (
	"strings"

	"kc-ladder-bot/internal/kucoin"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Label() string {
	return strings.ToUpper(string(s))
}

type TimeInForce string

const (
	GoodTillCancelled TimeInForce = "GTC"
	GoodTillTime      TimeInForce = "GTT"
)

const (
	orderTypeLimit = "limit"
	// stpDecreaseCancel cancels the smaller of two self-matching orders.
	stpDecreaseCancel = "DC"
)

// Order is a limit order ready for bulk submission. Price and Size are
// already rounded to the exchange precision.
type Order struct {
	ClientOid   string
	Side        Side
	Symbol      string
	Type        string
	STP         string
	Price       decimal.Decimal
	Size        decimal.Decimal
	TimeInForce TimeInForce
	// CancelAfter is the GTT lifetime in seconds.
	CancelAfter int64
}

// NewLimit returns a self-trade-protected limit order with a fresh client id.
func NewLimit(side Side, symbol string, price, size decimal.Decimal) Order {
	return Order{
		ClientOid:   uuid.NewString(),
		Side:        side,
		Symbol:      symbol,
		Type:        orderTypeLimit,
		STP:         stpDecreaseCancel,
		Price:       price,
		Size:        size,
		TimeInForce: GoodTillCancelled,
	}
}

// WithCancelAfter turns the order into a GTT order expiring after seconds.
func (o Order) WithCancelAfter(seconds int64) Order {
	o.TimeInForce = GoodTillTime
	o.CancelAfter = seconds
	return o
}

// Notional is price times size in quote currency.
func (o Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

func (o Order) Request() kucoin.OrderRequest {
	req := kucoin.OrderRequest{
		ClientOid:   o.ClientOid,
		Side:        string(o.Side),
		Symbol:      o.Symbol,
		Type:        o.Type,
		STP:         o.STP,
		Price:       o.Price.String(),
		Size:        o.Size.String(),
		TimeInForce: string(o.TimeInForce),
	}
	if o.TimeInForce == GoodTillTime {
		req.CancelAfter = o.CancelAfter
	}
	return req
}
