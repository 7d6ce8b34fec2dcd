package strategy

import (
	"fmt"
	"sort"
	"time"

	"kc-ladder-bot/internal/account"
	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/exec"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	sizeTolerance = decimal.RequireFromString("0.0001")

	resellTarget = decimal.RequireFromString("1.05")
	resellLow    = decimal.RequireFromString("1.045")
	resellHigh   = decimal.RequireFromString("1.055")
	rebuyTarget  = decimal.RequireFromString("0.95")
	rebuyLow     = decimal.RequireFromString("0.945")
	rebuyHigh    = decimal.RequireFromString("0.955")
)

// Sides returns the entry side and the closing side of a direction. Resell
// closes filled buys with sells; rebuy closes filled sells with buys.
func Sides(direction config.Direction) (openSide, closeSide exec.Side, err error) {
	switch direction {
	case config.DirectionResell:
		return exec.SideBuy, exec.SideSell, nil
	case config.DirectionRebuy:
		return exec.SideSell, exec.SideBuy, nil
	}
	return "", "", fmt.Errorf("%w: unknown reconcile direction %q", config.ErrInvalid, direction)
}

// Reconcile returns a closing order for every filled entry order that has no
// closing order near its 5% target, neither resting nor filled.
func (c Cycle) Reconcile(direction config.Direction, h History) ([]exec.Order, error) {
	openSide, closeSide, err := Sides(direction)
	if err != nil {
		return nil, err
	}
	target, low, high := resellTarget, resellLow, resellHigh
	if direction == config.DirectionRebuy {
		target, low, high = rebuyTarget, rebuyLow, rebuyHigh
	}
	log := c.logger().With(zap.String("direction", string(direction)))

	filled := make([]account.OrderRecord, 0, len(h.FilledOpen))
	for _, rec := range h.FilledOpen {
		if !rec.DealSize.IsZero() {
			filled = append(filled, rec)
		}
	}
	newestFirst(filled)
	active := newestFirst(append([]account.OrderRecord(nil), h.ActiveClose...))
	done := newestFirst(append([]account.OrderRecord(nil), h.FilledClose...))

	var orders []exec.Order
	for _, open := range filled {
		price, size := open.Price, open.DealSize
		minPrice, maxPrice := price.Mul(low), price.Mul(high)
		inBand := func(p decimal.Decimal) bool {
			return p.GreaterThan(minPrice) && p.LessThan(maxPrice)
		}
		log.Debug("filled",
			zap.String("at", open.Created().UTC().Format(time.RFC3339)),
			zap.String("side", string(openSide)),
			zap.Stringer("size", size),
			zap.Stringer("price", price),
		)
		matched := false
		for _, rec := range active {
			if closeEnough(rec.Size, size) && inBand(rec.Price) {
				matched = true
				log.Debug("--> resting",
					zap.String("at", rec.Created().UTC().Format(time.RFC3339)),
					zap.String("side", string(closeSide)),
					zap.Stringer("size", rec.Size),
					zap.Stringer("price", rec.Price),
				)
			}
		}
		for _, rec := range done {
			if closeEnough(rec.DealSize, size) && inBand(rec.Price) {
				matched = true
				log.Debug("--> done",
					zap.String("at", rec.Created().UTC().Format(time.RFC3339)),
					zap.String("side", string(closeSide)),
					zap.Stringer("size", rec.DealSize),
					zap.Stringer("price", rec.Price),
				)
			}
		}
		if matched {
			continue
		}
		closePrice := price.Mul(target).Round(pricePlaces)
		log.Debug("--> missing",
			zap.String("side", string(closeSide)),
			zap.Stringer("size", size),
			zap.Stringer("price", closePrice),
		)
		orders = append(orders, exec.NewLimit(closeSide, c.Symbol, closePrice, size))
	}
	return orders, nil
}

func closeEnough(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(sizeTolerance)
}

func newestFirst(recs []account.OrderRecord) []account.OrderRecord {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt > recs[j].CreatedAt
	})
	return recs
}
