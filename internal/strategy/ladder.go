package strategy

import (
	"fmt"
	"math"

	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/exec"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Ladder builds the orders one strategy places on one side this cycle.
//
// Order n of N gets a size proportional to sqrt(n), the sizes together using
// vol_percent of the available balance, and a price bumped away from the
// reference by a*n^2+c percent. An empty result is not an error.
func (c Cycle) Ladder(side exec.Side, cfg config.StrategyConfig) ([]exec.Order, error) {
	sideCfg := cfg.Buy
	if side == exec.SideSell {
		sideCfg = cfg.Sell
	}
	if sideCfg.OrderCount == 0 {
		return nil, nil
	}
	log := c.logger().With(zap.String("strategy", cfg.Name), zap.String("side", string(side)))

	var available decimal.Decimal
	switch side {
	case exec.SideBuy:
		if !c.Ticker.Bid.IsPositive() {
			return nil, fmt.Errorf("%s: bid %s is not positive", c.Symbol, c.Ticker.Bid)
		}
		quote := c.Balances[c.Quote]
		available = quote.Div(c.Ticker.Bid)
		log.Info("buy balance",
			zap.Stringer(c.Quote, quote),
			zap.String("approx", available.StringFixed(3)+" "+c.Base),
		)
	case exec.SideSell:
		base := c.Balances[c.Base]
		if base.LessThan(MinSellBalance) {
			log.Info("not enough tokens to sell", zap.Stringer(c.Base, base))
			return nil, nil
		}
		available = base
		log.Info("sell balance", zap.Stringer(c.Base, base))
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	ref, ok, err := c.referencePrice(side, cfg.Kind, log)
	if err != nil || !ok {
		return nil, err
	}

	count := sideCfg.OrderCount
	weights := make([]decimal.Decimal, count)
	total := decimal.Zero
	for i := range weights {
		weights[i] = decimal.NewFromFloat(math.Sqrt(float64(i + 1)))
		total = total.Add(weights[i])
	}
	volMul := available.Mul(decimal.NewFromFloat(sideCfg.VolPercent)).Div(hundred).Div(total)
	bumpA := decimal.NewFromFloat(sideCfg.PcntBumpA)
	bumpC := decimal.NewFromFloat(sideCfg.PcntBumpC)

	orders := make([]exec.Order, 0, count)
	for i, weight := range weights {
		n := decimal.NewFromInt(int64(i + 1))
		bump := bumpA.Mul(n).Mul(n).Add(bumpC).Div(hundred)
		var price decimal.Decimal
		if side == exec.SideBuy {
			price = ref.Mul(decimal.NewFromInt(1).Sub(bump)).Round(pricePlaces)
		} else {
			price = ref.Mul(decimal.NewFromInt(1).Add(bump)).Round(pricePlaces)
		}
		if !price.IsPositive() {
			log.Warn("skipping order with non-positive price", zap.Int("n", i+1), zap.Stringer("price", price))
			continue
		}
		// Truncate so the ladder never spends more than its share.
		size := volMul.Mul(weight).Truncate(pricePlaces)
		if !size.IsPositive() {
			log.Warn("skipping order with zero size", zap.Int("n", i+1), zap.Stringer("price", price))
			continue
		}
		order := exec.NewLimit(side, c.Symbol, price, size).WithCancelAfter(c.TickLen)
		orders = append(orders, order)
		log.Info("order",
			zap.String("size", size.StringFixed(pricePlaces)+" "+c.Base),
			zap.String("price", price.StringFixed(pricePlaces)+" "+c.Quote+"/"+c.Base),
			zap.String("notional", order.Notional().StringFixed(2)+" "+c.Quote),
		)
	}
	return orders, nil
}

// referencePrice picks the price the ladder is built from. ok is false when
// the strategy sits this side out.
func (c Cycle) referencePrice(side exec.Side, kind config.Kind, log *zap.Logger) (decimal.Decimal, bool, error) {
	t := c.Ticker
	switch kind {
	case config.KindDayHighLow:
		if side == exec.SideBuy {
			return t.Low, true, nil
		}
		return t.High, true, nil
	case config.KindBidAndAsk:
		if side == exec.SideBuy {
			return t.Bid, true, nil
		}
		return t.Ask, true, nil
	case config.KindBidOrAsk:
		avg := t.Mid()
		if side == exec.SideBuy {
			if t.Bid.LessThan(avg) {
				log.Info("bid below 24h midpoint, not buying", zap.Stringer("bid", t.Bid), zap.Stringer("avg", avg))
				return decimal.Zero, false, nil
			}
			return t.Bid, true, nil
		}
		if t.Ask.GreaterThan(avg) {
			log.Info("ask above 24h midpoint, not selling", zap.Stringer("ask", t.Ask), zap.Stringer("avg", avg))
			return decimal.Zero, false, nil
		}
		return t.Ask, true, nil
	}
	return decimal.Zero, false, fmt.Errorf("%w: unknown strategy %q", config.ErrInvalid, kind)
}
