package mataresit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mataresit/mataresit-go/internal/api"
)

// Team is a team the API key's user belongs to.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role,omitempty"`
	MemberCount int    `json:"memberCount"`
}

// TeamStats summarises a team's receipts and claims.
type TeamStats struct {
	TeamID        string              `json:"teamId"`
	MemberCount   int                 `json:"memberCount"`
	TotalReceipts int                 `json:"totalReceipts"`
	TotalAmount   Amount              `json:"totalAmount"`
	TotalClaims   int                 `json:"totalClaims"`
	PendingClaims int                 `json:"pendingClaims"`
	Currency      string              `json:"currency,omitempty"`
	TopCategories []CategoryBreakdown `json:"topCategories,omitempty"`
}

// Health is the /health response.
type Health struct {
	Status    string     `json:"status"`
	Version   string     `json:"version,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
	User      HealthUser `json:"user"`
}

// HealthUser identifies the owner of the API key.
type HealthUser struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes"`
}

// Teams lists the teams of the API key's user.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var result struct {
		Teams []Team `json:"teams"`
	}
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: "/teams"}, &result); err != nil {
		return nil, err
	}
	return result.Teams, nil
}

// TeamStats returns statistics for a team.
func (c *Client) TeamStats(ctx context.Context, teamID string) (*TeamStats, error) {
	if teamID == "" {
		return nil, invalidArgument("team ID is required")
	}
	var result TeamStats
	path := fmt.Sprintf("/teams/%s/stats", url.PathEscape(teamID))
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: path}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
