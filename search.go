package mataresit

import (
	"context"
	"net/http"

	"github.com/mataresit/mataresit-go/internal/api"
)

// SearchRequest is a semantic search query.
type SearchRequest struct {
	Query               string         `json:"query"`
	Sources             []string       `json:"sources,omitempty"` // e.g. "receipts", "claims"
	Limit               int            `json:"limit,omitempty"`
	Offset              int            `json:"offset,omitempty"`
	SimilarityThreshold float64        `json:"similarityThreshold,omitempty"`
	Filters             map[string]any `json:"filters,omitempty"`
}

// SearchResult is one match.
type SearchResult struct {
	ID         string         `json:"id"`
	SourceType string         `json:"sourceType"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchResponse holds the matches for a query.
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"totalResults"`
}

// Search runs a semantic search across receipts and other sources.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req == nil || req.Query == "" {
		return nil, invalidArgument("search query is required")
	}
	var result SearchResponse
	if err := c.do(ctx, &api.Request{Method: http.MethodPost, Path: "/search", Body: req}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
