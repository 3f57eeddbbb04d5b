package fakeserver

import (
	"time"

	"github.com/shopspring/decimal"
)

// money is a decimal that marshals as a bare JSON number, as the real API does.
type money struct {
	decimal.Decimal
}

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

type receipt struct {
	ID               string    `json:"id"`
	Merchant         string    `json:"merchant"`
	Date             string    `json:"date"`
	Total            money     `json:"total"`
	Currency         string    `json:"currency"`
	PaymentMethod    string    `json:"paymentMethod,omitempty"`
	Category         string    `json:"category,omitempty"`
	FullText         string    `json:"fullText,omitempty"`
	TeamID           string    `json:"teamId,omitempty"`
	ProcessingStatus string    `json:"processingStatus"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	polls int
}

type receiptInput struct {
	Merchant      string `json:"merchant" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Total         money  `json:"total"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	PaymentMethod string `json:"paymentMethod"`
	Category      string `json:"category"`
	FullText      string `json:"fullText"`
	TeamID        string `json:"teamId"`
}

type receiptUpdate struct {
	Merchant      *string `json:"merchant" validate:"omitempty,min=1"`
	Date          *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Total         *money  `json:"total"`
	Currency      *string `json:"currency" validate:"omitempty,len=3"`
	PaymentMethod *string `json:"paymentMethod"`
	Category      *string `json:"category"`
	FullText      *string `json:"fullText"`
}

type batchInput struct {
	Receipts []receiptInput `json:"receipts"`
}

type batchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type claim struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	Title       string    `json:"title"`
	Amount      money     `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type claimInput struct {
	TeamID      string `json:"teamId" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Amount      money  `json:"amount"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

type team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role"`
	MemberCount int    `json:"memberCount"`
}

type searchInput struct {
	Query               string   `json:"query" validate:"required"`
	Sources             []string `json:"sources" validate:"dive,oneof=receipts claims"`
	Limit               int      `json:"limit" validate:"gte=0,lte=100"`
	Offset              int      `json:"offset" validate:"gte=0"`
	SimilarityThreshold float64  `json:"similarityThreshold" validate:"gte=0,lte=1"`
}

type searchResult struct {
	ID         string         `json:"id"`
	SourceType string         `json:"sourceType"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type summary struct {
	TotalAmount   money  `json:"totalAmount"`
	TotalReceipts int    `json:"totalReceipts"`
	AverageAmount money  `json:"averageAmount"`
	Currency      string `json:"currency"`
}

type categoryBreakdown struct {
	Category   string  `json:"category"`
	Amount     money   `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type monthlyTrend struct {
	Month  string `json:"month"`
	Amount money  `json:"amount"`
	Count  int    `json:"count"`
}

type teamStats struct {
	TeamID        string              `json:"teamId"`
	MemberCount   int                 `json:"memberCount"`
	TotalReceipts int                 `json:"totalReceipts"`
	TotalAmount   money               `json:"totalAmount"`
	TotalClaims   int                 `json:"totalClaims"`
	PendingClaims int                 `json:"pendingClaims"`
	Currency      string              `json:"currency"`
	TopCategories []categoryBreakdown `json:"topCategories"`
}
