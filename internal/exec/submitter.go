package exec

import (
	"context"
	"fmt"

	"kc-ladder-bot/internal/kucoin"
	"kc-ladder-bot/internal/metrics"

	"go.uber.org/zap"
)

// MaxBatchSize is the exchange limit on orders per bulk request.
const MaxBatchSize = 5

type BulkPlacer interface {
	BulkOrders(ctx context.Context, symbol string, orders []kucoin.OrderRequest) ([]kucoin.BulkResult, error)
}

type Submitter struct {
	placer  BulkPlacer
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewSubmitter(placer BulkPlacer, m *metrics.Metrics, log *zap.Logger) *Submitter {
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{placer: placer, metrics: m, log: log}
}

// Submit places orders in batches of MaxBatchSize and returns how many the
// exchange accepted. Rejected entries are logged and counted, not returned as
// errors. A failed request aborts the remaining batches.
func (s *Submitter) Submit(ctx context.Context, label, symbol string, orders []Order) (int, error) {
	placed := 0
	for start := 0; start < len(orders); start += MaxBatchSize {
		if err := ctx.Err(); err != nil {
			return placed, err
		}
		end := min(start+MaxBatchSize, len(orders))
		batch := orders[start:end]
		reqs := make([]kucoin.OrderRequest, len(batch))
		for i, order := range batch {
			reqs[i] = order.Request()
		}
		results, err := s.placer.BulkOrders(ctx, symbol, reqs)
		if err != nil {
			s.logPlaced(label, placed, len(orders))
			return placed, fmt.Errorf("submit %s batch at %d: %w", label, start, err)
		}
		for i, res := range results {
			if !res.Failed() {
				placed++
				s.metrics.OrdersPlaced.Inc()
				continue
			}
			s.metrics.OrdersFailed.Inc()
			fields := []zap.Field{
				zap.String("label", label),
				zap.String("failMsg", *res.FailMsg),
			}
			if i < len(batch) {
				fields = append(fields,
					zap.String("clientOid", batch[i].ClientOid),
					zap.Stringer("price", batch[i].Price),
					zap.Stringer("size", batch[i].Size),
				)
			}
			s.log.Warn("order rejected", fields...)
		}
	}
	s.logPlaced(label, placed, len(orders))
	return placed, nil
}

func (s *Submitter) logPlaced(label string, placed, total int) {
	s.log.Info(fmt.Sprintf("placed %d/%d %s orders", placed, total, label),
		zap.String("label", label),
		zap.Int("placed", placed),
		zap.Int("total", total),
	)
}
