package kucoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

type Client struct {
	baseURL  string
	http     *http.Client
	signer   *Signer
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

// New builds a REST client. A nil signer restricts it to public endpoints.
func New(baseURL string, timeout time.Duration, signer *Signer, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		signer:   signer,
		log:      log,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

func (c *Client) Ticker(ctx context.Context, symbol string) (Level1, error) {
	var out Level1
	err := c.get(ctx, "/api/v1/market/orderbook/level1", url.Values{"symbol": {symbol}}, &out)
	return out, err
}

func (c *Client) Stats24h(ctx context.Context, symbol string) (Stats, error) {
	var out Stats
	err := c.get(ctx, "/api/v1/market/stats", url.Values{"symbol": {symbol}}, &out)
	return out, err
}

func (c *Client) Accounts(ctx context.Context, accountType string) ([]Account, error) {
	query := url.Values{}
	if accountType != "" {
		query.Set("type", accountType)
	}
	var out []Account
	err := c.get(ctx, "/api/v1/accounts", query, &out)
	return out, err
}

func (c *Client) OrderList(ctx context.Context, q OrderListQuery) (OrderPage, error) {
	query := url.Values{}
	setIfNotEmpty(query, "status", q.Status)
	setIfNotEmpty(query, "symbol", q.Symbol)
	setIfNotEmpty(query, "side", q.Side)
	setIfNotEmpty(query, "tradeType", q.TradeType)
	setIfNotEmpty(query, "type", q.Type)
	if q.StartAt > 0 {
		query.Set("startAt", strconv.FormatInt(q.StartAt, 10))
	}
	if q.CurrentPage > 0 {
		query.Set("currentPage", strconv.Itoa(q.CurrentPage))
	}
	if q.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	var raw json.RawMessage
	if err := c.get(ctx, "/api/v1/orders", query, &raw); err != nil {
		return OrderPage{}, err
	}
	if len(raw) == 0 {
		return OrderPage{}, nil
	}
	return DecodeOrderPage(raw)
}

// DecodeOrderPage parses one page of order history, keeping the raw bytes.
func DecodeOrderPage(raw []byte) (OrderPage, error) {
	var page OrderPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return OrderPage{}, fmt.Errorf("kucoin: decode order page: %w", err)
	}
	page.Raw = append(json.RawMessage(nil), raw...)
	return page, nil
}

// BulkOrders submits one batch. It is never retried: a lost response could
// otherwise place the batch twice.
func (c *Client) BulkOrders(ctx context.Context, symbol string, orders []OrderRequest) ([]BulkResult, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	var out bulkResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders/multi", nil, bulkRequest{Symbol: symbol, OrderList: orders}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(orders) {
		return out.Data, fmt.Errorf("kucoin: bulk response has %d entries for %d orders", len(out.Data), len(orders))
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.retry(ctx, func() error {
		return c.do(ctx, http.MethodGet, path, query, nil, out)
	})
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	backoff := c.backoff
	attempts := c.attempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		// Exchange error codes are final.
		if IsAPIError(err) || attempt >= attempts || ctx.Err() != nil {
			return err
		}
		c.log.Debug("kucoin request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		c.signer.Sign(httpReq, endpoint, payload)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(msg))
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("kucoin: decode %s: %w", path, err)
	}
	if env.Code != codeOK {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("kucoin: decode %s data: %w", path, err)
	}
	return nil
}

func setIfNotEmpty(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

// IsAPIError reports whether err carries a KuCoin error code.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
