package kucoin

import (
	"encoding/json"
	"fmt"
)

const codeOK = "200000"

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError is a well-formed response carrying a non-success code.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kucoin: code %s: %s", e.Code, e.Msg)
}

type Level1 struct {
	Sequence string `json:"sequence"`
	Price    string `json:"price"`
	BestAsk  string `json:"bestAsk"`
	BestBid  string `json:"bestBid"`
	Time     int64  `json:"time"`
}

type Stats struct {
	Symbol string `json:"symbol"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Last   string `json:"last"`
	Vol    string `json:"vol"`
	Time   int64  `json:"time"`
}

type Account struct {
	ID        string `json:"id"`
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Holds     string `json:"holds"`
}

type OrderListQuery struct {
	Status      string
	Symbol      string
	Side        string
	TradeType   string
	Type        string
	StartAt     int64
	CurrentPage int
	PageSize    int
}

type OrderPage struct {
	CurrentPage int         `json:"currentPage"`
	PageSize    int         `json:"pageSize"`
	TotalNum    int         `json:"totalNum"`
	TotalPage   int         `json:"totalPage"`
	Items       []OrderItem `json:"items"`

	// Raw is the page exactly as the exchange returned it.
	Raw json.RawMessage `json:"-"`
}

type OrderItem struct {
	ID          string `json:"id,omitempty"`
	ClientOid   string `json:"clientOid,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Type        string `json:"type,omitempty"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size,omitempty"`
	DealSize    string `json:"dealSize,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   int64  `json:"createdAt"`
}

// OrderRequest is one entry of a bulk order submission.
type OrderRequest struct {
	ClientOid   string `json:"clientOid"`
	Side        string `json:"side"`
	Symbol      string `json:"symbol"`
	Type        string `json:"type"`
	STP         string `json:"stp,omitempty"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	TimeInForce string `json:"timeInForce,omitempty"`
	CancelAfter int64  `json:"cancelAfter,omitempty"`
}

type bulkRequest struct {
	Symbol    string         `json:"symbol"`
	OrderList []OrderRequest `json:"orderList"`
}

type bulkResponse struct {
	Data []BulkResult `json:"data"`
}

// BulkResult is positionally aligned with the submitted batch. A non-nil
// FailMsg marks a rejected entry.
type BulkResult struct {
	ID        string  `json:"id"`
	ClientOid string  `json:"clientOid"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     string  `json:"price"`
	Size      string  `json:"size"`
	Status    string  `json:"status"`
	FailMsg   *string `json:"failMsg"`
}

func (r BulkResult) Failed() bool {
	return r.FailMsg != nil
}
