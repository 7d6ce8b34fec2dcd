package strategy

import (
	"errors"
	"testing"

	"kc-ladder-bot/internal/account"
	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/exec"
)

func filledBuy(price, size string, createdAt int64) account.OrderRecord {
	return account.OrderRecord{CreatedAt: createdAt, Side: "buy", Price: d(price), Size: d(size), DealSize: d(size)}
}

func TestReconcileSynthesizesMissingSell(t *testing.T) {
	cycle := testCycle("0", "0")
	orders, err := cycle.Reconcile(config.DirectionResell, History{
		FilledOpen: []account.OrderRecord{filledBuy("1.0000", "10", 1)},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	req := orders[0].Request()
	if req.Price != "1.05" || req.Size != "10" || req.Side != "sell" {
		t.Fatalf("unexpected order %+v", req)
	}
	if orders[0].TimeInForce != exec.GoodTillCancelled || req.CancelAfter != 0 {
		t.Fatalf("expected GTC order, got %+v", req)
	}
}

func TestReconcileActiveSellMatches(t *testing.T) {
	orders, err := testCycle("0", "0").Reconcile(config.DirectionResell, History{
		FilledOpen: []account.OrderRecord{filledBuy("1.0000", "10", 1)},
		ActiveClose: []account.OrderRecord{
			{CreatedAt: 2, Side: "sell", Price: d("1.0500"), Size: d("10"), DealSize: d("0"), IsActive: true},
		},
	})
	if err != nil || len(orders) != 0 {
		t.Fatalf("expected no orders, got %d, err %v", len(orders), err)
	}
}

func TestReconcileFilledSellMatches(t *testing.T) {
	orders, err := testCycle("0", "0").Reconcile(config.DirectionResell, History{
		FilledOpen: []account.OrderRecord{filledBuy("1.0000", "10", 1)},
		FilledClose: []account.OrderRecord{
			{CreatedAt: 2, Side: "sell", Price: d("1.0500"), Size: d("10"), DealSize: d("10")},
		},
	})
	if err != nil || len(orders) != 0 {
		t.Fatalf("expected no orders, got %d, err %v", len(orders), err)
	}
}

func TestReconcileBandIsExclusive(t *testing.T) {
	// 1.045 sits on the band edge and 1.06 is outside it.
	orders, err := testCycle("0", "0").Reconcile(config.DirectionResell, History{
		FilledOpen: []account.OrderRecord{filledBuy("1.0000", "10", 1)},
		ActiveClose: []account.OrderRecord{
			{Side: "sell", Price: d("1.045"), Size: d("10")},
			{Side: "sell", Price: d("1.06"), Size: d("10")},
		},
	})
	if err != nil || len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d, err %v", len(orders), err)
	}
}

func TestReconcileSizeTolerance(t *testing.T) {
	history := History{
		FilledOpen: []account.OrderRecord{filledBuy("2.0000", "10", 1)},
		ActiveClose: []account.OrderRecord{
			{Side: "sell", Price: d("2.1"), Size: d("10.00009")},
		},
	}
	orders, err := testCycle("0", "0").Reconcile(config.DirectionResell, history)
	if err != nil || len(orders) != 0 {
		t.Fatalf("expected size within tolerance to match, got %d orders, err %v", len(orders), err)
	}
	history.ActiveClose[0].Size = d("10.0001")
	orders, err = testCycle("0", "0").Reconcile(config.DirectionResell, history)
	if err != nil || len(orders) != 1 {
		t.Fatalf("expected size at tolerance not to match, got %d orders, err %v", len(orders), err)
	}
}

func TestReconcileRebuy(t *testing.T) {
	filledSell := account.OrderRecord{CreatedAt: 5, Side: "sell", Price: d("2.0000"), Size: d("7.5"), DealSize: d("7.5")}
	orders, err := testCycle("0", "0").Reconcile(config.DirectionRebuy, History{
		FilledOpen: []account.OrderRecord{filledSell},
		// A resell-band order must not satisfy a rebuy.
		ActiveClose: []account.OrderRecord{{Side: "buy", Price: d("2.1"), Size: d("7.5")}},
	})
	if err != nil || len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d, err %v", len(orders), err)
	}
	req := orders[0].Request()
	if req.Side != "buy" || req.Price != "1.9" || req.Size != "7.5" {
		t.Fatalf("unexpected order %+v", req)
	}
}

func TestReconcileSkipsUnfilledAndOrdersNewestFirst(t *testing.T) {
	unfilled := account.OrderRecord{CreatedAt: 3, Side: "buy", Price: d("5"), Size: d("1"), DealSize: d("0")}
	orders, err := testCycle("0", "0").Reconcile(config.DirectionResell, History{
		FilledOpen: []account.OrderRecord{
			filledBuy("1.0000", "10", 1),
			unfilled,
			filledBuy("1.2345", "3", 2),
		},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	// 1.2345 * 1.05 = 1.296225
	if !orders[0].Price.Equal(d("1.2962")) || !orders[1].Price.Equal(d("1.05")) {
		t.Fatalf("unexpected prices %s, %s", orders[0].Price, orders[1].Price)
	}
}

func TestReconcileUnknownDirection(t *testing.T) {
	_, err := testCycle("0", "0").Reconcile("sideways", History{})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config error, got %v", err)
	}
}
