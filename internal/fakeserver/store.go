package fakeserver

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errReceiptNotFound = errors.New("receipt not found")
	errTeamNotFound    = errors.New("team not found")
)

// store is the in-memory state of the fake API. It is safe for concurrent use.
type store struct {
	mu       sync.Mutex
	receipts map[string]*receipt
	order    []string
	claims   []*claim
	teams    []team
	statuses []string
	now      func() time.Time
}

func newStore(teams []team, statuses []string) *store {
	return &store{
		receipts: make(map[string]*receipt),
		teams:    teams,
		statuses: statuses,
		now:      time.Now,
	}
}

func (s *store) createReceipt(in receiptInput) receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	r := &receipt{
		ID:               uuid.NewString(),
		Merchant:         in.Merchant,
		Date:             in.Date,
		Total:            in.Total,
		Currency:         strings.ToUpper(cmp.Or(in.Currency, "USD")),
		PaymentMethod:    in.PaymentMethod,
		Category:         in.Category,
		FullText:         in.FullText,
		TeamID:           in.TeamID,
		ProcessingStatus: "pending",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.receipts[r.ID] = r
	s.order = append(s.order, r.ID)
	return *r
}

// getReceipt returns the receipt and advances its processing status through
// the configured sequence, one step per read.
func (s *store) getReceipt(id string) (receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[id]
	if !ok {
		return receipt{}, errReceiptNotFound
	}
	if len(s.statuses) == 0 {
		r.ProcessingStatus = "complete"
	} else {
		r.ProcessingStatus = s.statuses[min(r.polls, len(s.statuses)-1)]
	}
	r.polls++
	return *r, nil
}

func (s *store) updateReceipt(id string, u receiptUpdate) (receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[id]
	if !ok {
		return receipt{}, errReceiptNotFound
	}
	if u.Merchant != nil {
		r.Merchant = *u.Merchant
	}
	if u.Date != nil {
		r.Date = *u.Date
	}
	if u.Total != nil {
		r.Total = *u.Total
	}
	if u.Currency != nil {
		r.Currency = strings.ToUpper(*u.Currency)
	}
	if u.PaymentMethod != nil {
		r.PaymentMethod = *u.PaymentMethod
	}
	if u.Category != nil {
		r.Category = *u.Category
	}
	if u.FullText != nil {
		r.FullText = *u.FullText
	}
	r.UpdatedAt = s.now().UTC()
	return *r, nil
}

func (s *store) deleteReceipt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.receipts[id]; !ok {
		return errReceiptNotFound
	}
	delete(s.receipts, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// receiptFilter selects receipts for listing and analytics.
type receiptFilter struct {
	startDate, endDate string
	merchant           string
	category           string
	paymentMethod      string
	currency           string
	teamID             string
	minAmount          *decimal.Decimal
	maxAmount          *decimal.Decimal
}

func (f receiptFilter) match(r *receipt) bool {
	switch {
	case f.startDate != "" && r.Date < f.startDate:
		return false
	case f.endDate != "" && r.Date > f.endDate:
		return false
	case f.merchant != "" && !strings.Contains(strings.ToLower(r.Merchant), strings.ToLower(f.merchant)):
		return false
	case f.category != "" && !strings.EqualFold(r.Category, f.category):
		return false
	case f.paymentMethod != "" && !strings.EqualFold(r.PaymentMethod, f.paymentMethod):
		return false
	case f.currency != "" && !strings.EqualFold(r.Currency, f.currency):
		return false
	case f.teamID != "" && r.TeamID != f.teamID:
		return false
	case f.minAmount != nil && r.Total.LessThan(*f.minAmount):
		return false
	case f.maxAmount != nil && r.Total.GreaterThan(*f.maxAmount):
		return false
	}
	return true
}

func (s *store) listReceipts(f receiptFilter, sortBy, sortOrder string) []receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]receipt, 0, len(s.order))
	for _, id := range s.order {
		if r := s.receipts[id]; f.match(r) {
			out = append(out, *r)
		}
	}

	compare := func(a, b receipt) int {
		switch sortBy {
		case "total":
			return a.Total.Cmp(b.Total.Decimal)
		case "merchant":
			return strings.Compare(a.Merchant, b.Merchant)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		default:
			return strings.Compare(a.Date, b.Date)
		}
	}
	slices.SortStableFunc(out, func(a, b receipt) int {
		if sortOrder == "asc" {
			return compare(a, b)
		}
		return compare(b, a)
	})
	return out
}

func (s *store) createClaim(in claimInput) (claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTeam(in.TeamID) {
		return claim{}, errTeamNotFound
	}
	c := &claim{
		ID:          uuid.NewString(),
		TeamID:      in.TeamID,
		Title:       in.Title,
		Amount:      in.Amount,
		Currency:    strings.ToUpper(cmp.Or(in.Currency, "USD")),
		Description: in.Description,
		Category:    in.Category,
		Priority:    cmp.Or(in.Priority, "medium"),
		Status:      "draft",
		CreatedAt:   s.now().UTC(),
	}
	s.claims = append(s.claims, c)
	return *c, nil
}

func (s *store) listClaims(teamID, status, priority string) []claim {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []claim{}
	for _, c := range s.claims {
		if teamID != "" && c.TeamID != teamID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		if priority != "" && c.Priority != priority {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func (s *store) listTeams() []team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.teams)
}

func (s *store) hasTeam(id string) bool {
	return slices.ContainsFunc(s.teams, func(t team) bool { return t.ID == id })
}

func (s *store) teamStats(id string) (teamStats, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.teams, func(t team) bool { return t.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return teamStats{}, errTeamNotFound
	}
	stats := teamStats{TeamID: id, MemberCount: s.teams[i].MemberCount}
	for _, c := range s.claims {
		if c.TeamID != id {
			continue
		}
		stats.TotalClaims++
		if c.Status == "draft" || c.Status == "submitted" {
			stats.PendingClaims++
		}
	}
	s.mu.Unlock()

	receipts := s.listReceipts(receiptFilter{teamID: id}, "", "")
	sum := summarize(receipts, "")
	stats.TotalReceipts = sum.TotalReceipts
	stats.TotalAmount = sum.TotalAmount
	stats.Currency = sum.Currency
	stats.TopCategories = breakdown(receipts)
	if len(stats.TopCategories) > 5 {
		stats.TopCategories = stats.TopCategories[:5]
	}
	return stats, nil
}

func (s *store) search(query string, sources []string) []searchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	terms := strings.Fields(strings.ToLower(query))
	wants := func(src string) bool { return len(sources) == 0 || slices.Contains(sources, src) }

	var out []searchResult
	if wants("receipts") {
		for _, id := range s.order {
			r := s.receipts[id]
			text := strings.ToLower(strings.Join([]string{r.Merchant, r.Category, r.FullText}, " "))
			if score := similarity(terms, text); score > 0 {
				out = append(out, searchResult{
					ID:         r.ID,
					SourceType: "receipt",
					Title:      r.Merchant,
					Content:    cmp.Or(r.FullText, r.Merchant+" "+r.Total.String()+" "+r.Currency),
					Similarity: score,
					Metadata:   map[string]any{"date": r.Date, "category": r.Category},
				})
			}
		}
	}
	if wants("claims") {
		for _, c := range s.claims {
			text := strings.ToLower(c.Title + " " + c.Description + " " + c.Category)
			if score := similarity(terms, text); score > 0 {
				out = append(out, searchResult{
					ID:         c.ID,
					SourceType: "claim",
					Title:      c.Title,
					Content:    c.Description,
					Similarity: score,
					Metadata:   map[string]any{"teamId": c.TeamID, "status": c.Status},
				})
			}
		}
	}
	slices.SortStableFunc(out, func(a, b searchResult) int { return cmp.Compare(b.Similarity, a.Similarity) })
	return out
}

// similarity is the share of query terms found in text.
func similarity(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func summarize(receipts []receipt, currency string) summary {
	total := decimal.Zero
	for _, r := range receipts {
		total = total.Add(r.Total.Decimal)
	}
	avg := decimal.Zero
	if len(receipts) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(receipts)))).Round(2)
	}
	if currency == "" {
		currency = "USD"
		if len(receipts) > 0 {
			currency = receipts[0].Currency
		}
	}
	return summary{
		TotalAmount:   money{total},
		TotalReceipts: len(receipts),
		AverageAmount: money{avg},
		Currency:      strings.ToUpper(currency),
	}
}

// breakdown groups receipts by category, largest amount first.
func breakdown(receipts []receipt) []categoryBreakdown {
	total := decimal.Zero
	byCategory := map[string]*categoryBreakdown{}
	var names []string
	for _, r := range receipts {
		name := cmp.Or(r.Category, "Uncategorized")
		b, ok := byCategory[name]
		if !ok {
			b = &categoryBreakdown{Category: name, Amount: money{decimal.Zero}}
			byCategory[name] = b
			names = append(names, name)
		}
		b.Amount = money{b.Amount.Add(r.Total.Decimal)}
		b.Count++
		total = total.Add(r.Total.Decimal)
	}

	out := make([]categoryBreakdown, 0, len(names))
	for _, name := range names {
		b := byCategory[name]
		if total.IsPositive() {
			b.Percentage = b.Amount.Div(total).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		out = append(out, *b)
	}
	slices.SortStableFunc(out, func(a, b categoryBreakdown) int { return b.Amount.Cmp(a.Amount.Decimal) })
	return out
}

// trends groups receipts by calendar month, oldest first.
func trends(receipts []receipt) []monthlyTrend {
	byMonth := map[string]*monthlyTrend{}
	for _, r := range receipts {
		if len(r.Date) < 7 {
			continue
		}
		month := r.Date[:7]
		t, ok := byMonth[month]
		if !ok {
			t = &monthlyTrend{Month: month, Amount: money{decimal.Zero}}
			byMonth[month] = t
		}
		t.Amount = money{t.Amount.Add(r.Total.Decimal)}
		t.Count++
	}
	out := make([]monthlyTrend, 0, len(byMonth))
	for _, t := range byMonth {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b monthlyTrend) int { return strings.Compare(a.Month, b.Month) })
	return out
}
