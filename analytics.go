package mataresit

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mataresit/mataresit-go/internal/api"
)

// AnalyticsParams narrows analytics to a date range, team or currency.
type AnalyticsParams struct {
	StartDate string
	EndDate   string
	TeamID    string
	Currency  string
}

func (p *AnalyticsParams) values() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	setString(v, "start_date", p.StartDate)
	setString(v, "end_date", p.EndDate)
	setString(v, "team_id", p.TeamID)
	setString(v, "currency", p.Currency)
	return v
}

// SpendingSummary aggregates spending over a period.
type SpendingSummary struct {
	TotalAmount   Amount `json:"totalAmount"`
	TotalReceipts int    `json:"totalReceipts"`
	AverageAmount Amount `json:"averageAmount"`
	Currency      string `json:"currency,omitempty"`
}

// CategoryBreakdown is the spending attributed to one category.
type CategoryBreakdown struct {
	Category   string  `json:"category"`
	Amount     Amount  `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthlyTrend is the spending for one calendar month.
type MonthlyTrend struct {
	Month  string `json:"month"` // YYYY-MM
	Amount Amount `json:"amount"`
	Count  int    `json:"count"`
}

// Analytics is the full analytics report.
type Analytics struct {
	Summary           SpendingSummary     `json:"summary"`
	CategoryBreakdown []CategoryBreakdown `json:"categoryBreakdown"`
	MonthlyTrends     []MonthlyTrend      `json:"monthlyTrends,omitempty"`
}

// TopCategories returns up to n categories in server order.
func (a *Analytics) TopCategories(n int) []CategoryBreakdown {
	if n >= len(a.CategoryBreakdown) {
		return a.CategoryBreakdown
	}
	return a.CategoryBreakdown[:n]
}

// Analytics returns the comprehensive analytics report.
func (c *Client) Analytics(ctx context.Context, params *AnalyticsParams) (*Analytics, error) {
	var result Analytics
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: "/analytics", Query: params.values()}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SpendingSummary returns totals and averages for the period.
func (c *Client) SpendingSummary(ctx context.Context, params *AnalyticsParams) (*SpendingSummary, error) {
	var result SpendingSummary
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: "/analytics/summary", Query: params.values()}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CategoryAnalytics returns the per-category spending breakdown.
func (c *Client) CategoryAnalytics(ctx context.Context, params *AnalyticsParams) ([]CategoryBreakdown, error) {
	var result struct {
		Categories []CategoryBreakdown `json:"categories"`
	}
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: "/analytics/categories", Query: params.values()}, &result); err != nil {
		return nil, err
	}
	return result.Categories, nil
}
