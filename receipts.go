package mataresit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mataresit/mataresit-go/internal/api"
)

// DefaultCurrency is used when a receipt or claim has no currency set.
const DefaultCurrency = "USD"

// ProcessingStatus is the state of server-side receipt processing.
type ProcessingStatus string

const (
	// StatusPending means the receipt is still being processed.
	StatusPending ProcessingStatus = "pending"
	// StatusComplete means processing finished successfully.
	StatusComplete ProcessingStatus = "complete"
	// StatusFailed means processing failed and will not be retried by the server.
	StatusFailed ProcessingStatus = "failed"
)

// Receipt is a Mataresit receipt.
type Receipt struct {
	ID               string           `json:"id,omitempty"`
	Merchant         string           `json:"merchant"`
	Date             string           `json:"date"` // YYYY-MM-DD
	Total            Amount           `json:"total"`
	Currency         string           `json:"currency,omitempty"`
	PaymentMethod    string           `json:"paymentMethod,omitempty"`
	Category         string           `json:"category,omitempty"`
	FullText         string           `json:"fullText,omitempty"`
	TeamID           string           `json:"teamId,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processingStatus,omitempty"`
	CreatedAt        *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time       `json:"updatedAt,omitempty"`
}

// Status returns the processing status, treating a missing value as pending.
func (r *Receipt) Status() ProcessingStatus {
	if r.ProcessingStatus == "" {
		return StatusPending
	}
	return r.ProcessingStatus
}

// receiptInput is the create payload: only caller-settable fields are sent.
type receiptInput struct {
	Merchant      string `json:"merchant"`
	Date          string `json:"date"`
	Total         Amount `json:"total"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Category      string `json:"category,omitempty"`
	FullText      string `json:"fullText,omitempty"`
	TeamID        string `json:"teamId,omitempty"`
}

func newReceiptInput(r *Receipt) receiptInput {
	currency := r.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return receiptInput{
		Merchant:      r.Merchant,
		Date:          r.Date,
		Total:         r.Total,
		Currency:      currency,
		PaymentMethod: r.PaymentMethod,
		Category:      r.Category,
		FullText:      r.FullText,
		TeamID:        r.TeamID,
	}
}

// ReceiptUpdate holds the fields to change on a receipt. Nil fields are left
// untouched.
type ReceiptUpdate struct {
	Merchant      *string `json:"merchant,omitempty"`
	Date          *string `json:"date,omitempty"`
	Total         *Amount `json:"total,omitempty"`
	Currency      *string `json:"currency,omitempty"`
	PaymentMethod *string `json:"paymentMethod,omitempty"`
	Category      *string `json:"category,omitempty"`
	FullText      *string `json:"fullText,omitempty"`
}

// ListReceiptsParams filters and pages ListReceipts.
type ListReceiptsParams struct {
	StartDate     string
	EndDate       string
	Merchant      string
	Category      string
	PaymentMethod string
	Currency      string
	TeamID        string
	MinAmount     *Amount
	MaxAmount     *Amount
	Limit         int
	Offset        int
	SortBy        string // date, total, merchant, created_at
	SortOrder     string // asc, desc
}

func (p *ListReceiptsParams) values() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	setString(v, "start_date", p.StartDate)
	setString(v, "end_date", p.EndDate)
	setString(v, "merchant", p.Merchant)
	setString(v, "category", p.Category)
	setString(v, "payment_method", p.PaymentMethod)
	setString(v, "currency", p.Currency)
	setString(v, "team_id", p.TeamID)
	if p.MinAmount != nil {
		v.Set("min_amount", p.MinAmount.Decimal.String())
	}
	if p.MaxAmount != nil {
		v.Set("max_amount", p.MaxAmount.Decimal.String())
	}
	setInt(v, "limit", p.Limit)
	setInt(v, "offset", p.Offset)
	setString(v, "sort_by", p.SortBy)
	setString(v, "sort_order", p.SortOrder)
	return v
}

// Pagination describes a page of list results.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// ReceiptList is a page of receipts.
type ReceiptList struct {
	Receipts   []Receipt  `json:"receipts"`
	Pagination Pagination `json:"pagination"`
}

// BatchItemError reports one receipt the server rejected in a batch create.
// Index is the position within the submitted batch; it is -1 when the whole
// batch request failed.
type BatchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	Batch int    `json:"batch,omitempty"`
}

// BatchResult is the outcome of CreateReceiptsBatch.
type BatchResult struct {
	Created []Receipt        `json:"created"`
	Errors  []BatchItemError `json:"errors"`
}

func receiptPath(id string) string {
	return "/receipts/" + url.PathEscape(id)
}

// ListReceipts returns receipts matching params. params may be nil.
func (c *Client) ListReceipts(ctx context.Context, params *ListReceiptsParams) (*ReceiptList, error) {
	var result ReceiptList
	req := &api.Request{Method: http.MethodGet, Path: "/receipts", Query: params.values()}
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetReceipt retrieves a receipt by ID.
func (c *Client) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	if id == "" {
		return nil, invalidArgument("receipt ID is required")
	}
	var result Receipt
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: receiptPath(id)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateReceipt creates a receipt and returns it as stored by the server.
// It does not wait for processing; see CreateReceiptAndWait.
func (c *Client) CreateReceipt(ctx context.Context, receipt *Receipt) (*Receipt, error) {
	if receipt == nil {
		return nil, invalidArgument("receipt cannot be nil")
	}
	var result Receipt
	req := &api.Request{Method: http.MethodPost, Path: "/receipts", Body: newReceiptInput(receipt)}
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateReceipt applies update to the receipt with the given ID.
func (c *Client) UpdateReceipt(ctx context.Context, id string, update *ReceiptUpdate) (*Receipt, error) {
	if id == "" {
		return nil, invalidArgument("receipt ID is required")
	}
	if update == nil {
		update = &ReceiptUpdate{}
	}
	var result Receipt
	if err := c.do(ctx, &api.Request{Method: http.MethodPut, Path: receiptPath(id), Body: update}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteReceipt deletes a receipt.
func (c *Client) DeleteReceipt(ctx context.Context, id string) error {
	if id == "" {
		return invalidArgument("receipt ID is required")
	}
	return c.do(ctx, &api.Request{Method: http.MethodDelete, Path: receiptPath(id)}, nil)
}

// CreateReceiptsBatch creates several receipts in one request. Receipts the
// server rejects are reported in BatchResult.Errors rather than as an error.
func (c *Client) CreateReceiptsBatch(ctx context.Context, receipts []Receipt) (*BatchResult, error) {
	inputs := make([]receiptInput, len(receipts))
	for i := range receipts {
		inputs[i] = newReceiptInput(&receipts[i])
	}

	body := struct {
		Receipts []receiptInput `json:"receipts"`
	}{Receipts: inputs}

	var result BatchResult
	if err := c.do(ctx, &api.Request{Method: http.MethodPost, Path: "/receipts/batch", Body: body}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setInt(v url.Values, key string, value int) {
	if value > 0 {
		v.Set(key, strconv.Itoa(value))
	}
}
