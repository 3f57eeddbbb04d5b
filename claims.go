package mataresit

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mataresit/mataresit-go/internal/api"
)

// ClaimPriority is the urgency of a claim.
type ClaimPriority string

// Claim priorities.
const (
	PriorityLow    ClaimPriority = "low"
	PriorityMedium ClaimPriority = "medium"
	PriorityHigh   ClaimPriority = "high"
	PriorityUrgent ClaimPriority = "urgent"
)

// Claim is an expense claim raised within a team.
type Claim struct {
	ID          string        `json:"id,omitempty"`
	TeamID      string        `json:"teamId"`
	Title       string        `json:"title"`
	Amount      Amount        `json:"amount"`
	Currency    string        `json:"currency,omitempty"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category,omitempty"`
	Priority    ClaimPriority `json:"priority,omitempty"`
	Status      string        `json:"status,omitempty"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
}

type claimInput struct {
	TeamID      string        `json:"teamId"`
	Title       string        `json:"title"`
	Amount      Amount        `json:"amount"`
	Currency    string        `json:"currency"`
	Priority    ClaimPriority `json:"priority"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category,omitempty"`
}

// ListClaimsParams filters and pages ListClaims.
type ListClaimsParams struct {
	TeamID   string
	Status   string
	Priority ClaimPriority
	Limit    int
	Offset   int
}

func (p *ListClaimsParams) values() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	setString(v, "team_id", p.TeamID)
	setString(v, "status", p.Status)
	setString(v, "priority", string(p.Priority))
	setInt(v, "limit", p.Limit)
	setInt(v, "offset", p.Offset)
	return v
}

// ClaimList is a page of claims.
type ClaimList struct {
	Claims     []Claim    `json:"claims"`
	Pagination Pagination `json:"pagination"`
}

// ListClaims returns claims matching params. params may be nil.
func (c *Client) ListClaims(ctx context.Context, params *ListClaimsParams) (*ClaimList, error) {
	var result ClaimList
	if err := c.do(ctx, &api.Request{Method: http.MethodGet, Path: "/claims", Query: params.values()}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateClaim creates a claim. Currency defaults to USD and priority to medium.
func (c *Client) CreateClaim(ctx context.Context, claim *Claim) (*Claim, error) {
	if claim == nil {
		return nil, invalidArgument("claim cannot be nil")
	}
	if claim.TeamID == "" {
		return nil, invalidArgument("claim team ID is required")
	}

	input := claimInput{
		TeamID:      claim.TeamID,
		Title:       claim.Title,
		Amount:      claim.Amount,
		Currency:    claim.Currency,
		Priority:    claim.Priority,
		Description: claim.Description,
		Category:    claim.Category,
	}
	if input.Currency == "" {
		input.Currency = DefaultCurrency
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}

	var result Claim
	if err := c.do(ctx, &api.Request{Method: http.MethodPost, Path: "/claims", Body: input}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
