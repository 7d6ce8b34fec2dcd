package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kc-ladder-bot/internal/kucoin"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const historyPageSize = 500

// OrderRecord is one historical order as the reconciler sees it.
type OrderRecord struct {
	CreatedAt int64
	Side      string
	Price     decimal.Decimal
	Size      decimal.Decimal
	DealSize  decimal.Decimal
	IsActive  bool
}

func (r OrderRecord) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

type HistoryQuery struct {
	Status  string
	Side    string
	Symbol  string
	StartAt time.Time
	// CacheDir receives the raw pages as {side}_{status}.json when set.
	CacheDir string
	// Cached reads the pages from CacheDir instead of the exchange.
	Cached bool
}

func (q HistoryQuery) cachePath() string {
	return filepath.Join(q.CacheDir, q.Side+"_"+q.Status+".json")
}

// History returns every limit spot order matching q, across all pages.
func (a *Account) History(ctx context.Context, q HistoryQuery) ([]OrderRecord, error) {
	if q.Status == "" || q.Side == "" {
		return nil, errors.New("history: status and side are required")
	}
	var (
		pages []kucoin.OrderPage
		err   error
	)
	if q.Cached {
		if q.CacheDir == "" {
			return nil, errors.New("history: cached read requires a cache dir")
		}
		a.log.Debug("loading cached orders", zap.String("status", q.Status), zap.String("side", q.Side))
		pages, err = readPages(q.cachePath())
	} else {
		pages, err = a.fetchPages(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	if !q.Cached && q.CacheDir != "" {
		if err := writePages(q.cachePath(), pages); err != nil {
			a.log.Warn("history cache write failed", zap.String("path", q.cachePath()), zap.Error(err))
		}
	}
	return flatten(pages)
}

func (a *Account) fetchPages(ctx context.Context, q HistoryQuery) ([]kucoin.OrderPage, error) {
	if a.rest == nil {
		return nil, errors.New("rest client is required")
	}
	query := kucoin.OrderListQuery{
		Status:      q.Status,
		Symbol:      q.Symbol,
		Side:        q.Side,
		TradeType:   "TRADE",
		Type:        "limit",
		CurrentPage: 1,
		PageSize:    historyPageSize,
	}
	if !q.StartAt.IsZero() {
		query.StartAt = q.StartAt.UnixMilli()
	}
	first, err := a.rest.OrderList(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s orders: %w", q.Status, q.Side, err)
	}
	pages := []kucoin.OrderPage{first}
	for page := 2; page <= first.TotalPage; page++ {
		a.log.Debug("fetching orders",
			zap.String("status", q.Status),
			zap.String("side", q.Side),
			zap.Int("page", page),
			zap.Int("pages", first.TotalPage),
		)
		query.CurrentPage = page
		next, err := a.rest.OrderList(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s orders page %d: %w", q.Status, q.Side, page, err)
		}
		pages = append(pages, next)
	}
	a.log.Debug("fetched orders",
		zap.String("status", q.Status),
		zap.String("side", q.Side),
		zap.Int("total", first.TotalNum),
	)
	return pages, nil
}

func flatten(pages []kucoin.OrderPage) ([]OrderRecord, error) {
	var out []OrderRecord
	for _, page := range pages {
		for _, item := range page.Items {
			rec, err := recordFromItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func recordFromItem(item kucoin.OrderItem) (OrderRecord, error) {
	price, err := parseDecimal(item.Price)
	if err != nil {
		return OrderRecord{}, fmt.Errorf("order %s price: %w", item.ID, err)
	}
	size, err := parseDecimal(item.Size)
	if err != nil {
		return OrderRecord{}, fmt.Errorf("order %s size: %w", item.ID, err)
	}
	dealSize, err := parseDecimal(item.DealSize)
	if err != nil {
		return OrderRecord{}, fmt.Errorf("order %s dealSize: %w", item.ID, err)
	}
	return OrderRecord{
		CreatedAt: item.CreatedAt,
		Side:      item.Side,
		Price:     price,
		Size:      size,
		DealSize:  dealSize,
		IsActive:  item.IsActive,
	}, nil
}

func readPages(path string) ([]kucoin.OrderPage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history cache: %w", err)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(raw, &raws); err != nil {
		return nil, fmt.Errorf("decode history cache %s: %w", path, err)
	}
	pages := make([]kucoin.OrderPage, 0, len(raws))
	for i, r := range raws {
		page, err := kucoin.DecodeOrderPage(r)
		if err != nil {
			return nil, fmt.Errorf("history cache %s page %d: %w", path, i+1, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func writePages(path string, pages []kucoin.OrderPage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raws := make([]json.RawMessage, 0, len(pages))
	for _, page := range pages {
		if len(page.Raw) > 0 {
			raws = append(raws, page.Raw)
			continue
		}
		encoded, err := json.Marshal(page)
		if err != nil {
			return err
		}
		raws = append(raws, encoded)
	}
	raw, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
