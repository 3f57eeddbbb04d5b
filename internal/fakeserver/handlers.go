package fakeserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxBatchSize    = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"user": map[string]any{
			"id":     s.userID,
			"scopes": s.scopes,
		},
	})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	limit, offset, err := parsePage(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	all := s.store.listReceipts(filter, q.Get("sort_by"), q.Get("sort_order"))
	writeData(w, http.StatusOK, map[string]any{
		"receipts":   page(all, limit, offset),
		"pagination": pagination(len(all), limit, offset),
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.getReceipt(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Receipt not found")
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var in receiptInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.checkReceipt(in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	writeData(w, http.StatusCreated, s.store.createReceipt(in))
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var in receiptUpdate
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", describe(err))
		return
	}
	rec, err := s.store.updateReceipt(mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Receipt not found")
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.store.deleteReceipt(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Receipt not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.batchCalls++
	fail := s.failBatches[s.batchCalls]
	s.mu.Unlock()
	if fail {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Batch processing failed")
		return
	}

	var in batchInput
	if !s.decode(w, r, &in) {
		return
	}
	if len(in.Receipts) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "receipts must not be empty")
		return
	}
	if len(in.Receipts) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("at most %d receipts per batch", maxBatchSize))
		return
	}

	created := []receipt{}
	failed := []batchItemError{}
	for i, item := range in.Receipts {
		if err := s.checkReceipt(item); err != nil {
			failed = append(failed, batchItemError{Index: i, Error: err.Error()})
			continue
		}
		created = append(created, s.store.createReceipt(item))
	}

	status := http.StatusCreated
	if len(created) == 0 {
		status = http.StatusOK
	}
	writeData(w, status, map[string]any{"created": created, "errors": failed})
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := parsePage(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	all := s.store.listClaims(q.Get("team_id"), q.Get("status"), q.Get("priority"))
	writeData(w, http.StatusOK, map[string]any{
		"claims":     page(all, limit, offset),
		"pagination": pagination(len(all), limit, offset),
	})
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var in claimInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", describe(err))
		return
	}
	if !in.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "amount must be positive")
		return
	}
	c, err := s.store.createClaim(in)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Team not found")
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var in searchInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", describe(err))
		return
	}

	results := s.store.search(in.Query, in.Sources)
	filtered := results[:0]
	for _, res := range results {
		if res.Similarity >= in.SimilarityThreshold {
			filtered = append(filtered, res)
		}
	}
	limit := in.Limit
	if limit == 0 {
		limit = 10
	}
	writeData(w, http.StatusOK, map[string]any{
		"query":        in.Query,
		"results":      page(filtered, limit, in.Offset),
		"totalResults": len(filtered),
	})
}

func (s *Server) analyticsReceipts(w http.ResponseWriter, r *http.Request) ([]receipt, string, bool) {
	q := r.URL.Query()
	filter := receiptFilter{
		startDate: q.Get("start_date"),
		endDate:   q.Get("end_date"),
		teamID:    q.Get("team_id"),
		currency:  q.Get("currency"),
	}
	if filter.teamID != "" && !s.teamExists(filter.teamID) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Team not found")
		return nil, "", false
	}
	return s.store.listReceipts(filter, "date", "asc"), filter.currency, true
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	receipts, currency, ok := s.analyticsReceipts(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"summary":           summarize(receipts, currency),
		"categoryBreakdown": breakdown(receipts),
		"monthlyTrends":     trends(receipts),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	receipts, currency, ok := s.analyticsReceipts(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, summarize(receipts, currency))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	receipts, _, ok := s.analyticsReceipts(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, map[string]any{"categories": breakdown(receipts)})
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"teams": s.store.listTeams()})
}

func (s *Server) handleTeamStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.teamStats(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Team not found")
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) teamExists(id string) bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.store.hasTeam(id)
}

// decode reads a JSON body, answering 400 itself when it cannot.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON payload")
		return false
	}
	return true
}

func (s *Server) checkReceipt(in receiptInput) error {
	if err := s.validate.Struct(in); err != nil {
		return errors.New(describe(err))
	}
	if !in.Total.IsPositive() {
		return errors.New("total must be positive")
	}
	return nil
}

// describe turns validator errors into a short client-facing message.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "datetime":
			msgs = append(msgs, field+" must be a YYYY-MM-DD date")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func parseFilter(q url.Values) (receiptFilter, error) {
	f := receiptFilter{
		startDate:     q.Get("start_date"),
		endDate:       q.Get("end_date"),
		merchant:      q.Get("merchant"),
		category:      q.Get("category"),
		paymentMethod: q.Get("payment_method"),
		currency:      q.Get("currency"),
		teamID:        q.Get("team_id"),
	}
	for key, dst := range map[string]**decimal.Decimal{"min_amount": &f.minAmount, "max_amount": &f.maxAmount} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("%s must be a number", key)
		}
		*dst = &d
	}
	return f, nil
}

func parsePage(q url.Values) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageSize {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxPageSize)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be non-negative")
		}
	}
	return limit, offset, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func pagination(total, limit, offset int) map[string]any {
	return map[string]any{
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"hasMore": offset+limit < total,
	}
}
