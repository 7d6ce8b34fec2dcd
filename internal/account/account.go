package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/kucoin"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const tradeAccount = "trade"

type RestClient interface {
	Accounts(ctx context.Context, accountType string) ([]kucoin.Account, error)
	OrderList(ctx context.Context, q kucoin.OrderListQuery) (kucoin.OrderPage, error)
}

type Account struct {
	rest RestClient
	log  *zap.Logger
}

func New(restClient RestClient, log *zap.Logger) *Account {
	if log == nil {
		log = zap.NewNop()
	}
	return &Account{rest: restClient, log: log}
}

// Balances returns the available amounts of base and quote in the trade
// account. A currency with no trade account is a configuration error.
func (a *Account) Balances(ctx context.Context, base, quote string) (map[string]decimal.Decimal, error) {
	if a.rest == nil {
		return nil, errors.New("rest client is required")
	}
	accounts, err := a.rest.Accounts(ctx, tradeAccount)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	balances := make(map[string]decimal.Decimal, 2)
	for _, currency := range []string{base, quote} {
		available, err := availableFor(accounts, currency)
		if err != nil {
			return nil, err
		}
		balances[currency] = available
	}
	a.log.Info("balances",
		zap.Stringer(base, balances[base]),
		zap.Stringer(quote, balances[quote]),
	)
	return balances, nil
}

func availableFor(accounts []kucoin.Account, currency string) (decimal.Decimal, error) {
	for _, acc := range accounts {
		if !strings.EqualFold(acc.Currency, currency) {
			continue
		}
		if acc.Type != "" && acc.Type != tradeAccount {
			continue
		}
		available, err := parseDecimal(acc.Available)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s available: %w", currency, err)
		}
		return available, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no %s trade account", config.ErrInvalid, currency)
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
