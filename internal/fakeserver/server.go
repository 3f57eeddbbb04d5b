// Package fakeserver implements an in-memory Mataresit API for tests, examples
// and local development. It speaks the same envelope format as the hosted API.
package fakeserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// DefaultAPIKey is accepted when no key is configured.
const DefaultAPIKey = "mk_test_fakeserver"

// Server is a fake Mataresit API. Create one with New and serve it with
// Handler, or with httptest.NewServer(s).
type Server struct {
	router   *mux.Router
	store    *store
	validate *validator.Validate
	logger   *zap.Logger
	apiKey   string
	userID   string
	scopes   []string
	limiter  *rate.Limiter

	mu          sync.Mutex
	throttle    int
	batchCalls  int
	failBatches map[int]bool
	requests    []string
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey sets the only API key the server accepts.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimit answers 429 once more than burst requests arrive faster than r per second.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(r, burst)
	}
}

// WithProcessingSequence sets the processing status returned by successive
// reads of a receipt. The last status repeats once the sequence is used up.
// By default every read reports "complete".
func WithProcessingSequence(statuses ...string) Option {
	return func(s *Server) {
		s.store.statuses = statuses
	}
}

// WithFailingBatches makes the given batch create calls (1-based, counted
// across the server's lifetime) fail with a 500.
func WithFailingBatches(calls ...int) Option {
	return func(s *Server) {
		for _, c := range calls {
			s.failBatches[c] = true
		}
	}
}

// WithTeams replaces the seeded teams.
func WithTeams(teams ...Team) Option {
	return func(s *Server) {
		s.store.teams = s.store.teams[:0]
		for _, t := range teams {
			s.store.teams = append(s.store.teams, team(t))
		}
	}
}

// Team seeds a team the API key's user belongs to.
type Team struct {
	ID          string
	Name        string
	Description string
	Role        string
	MemberCount int
}

// New creates a fake server seeded with one team.
func New(opts ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   zap.NewNop(),
		apiKey:   DefaultAPIKey,
		userID:   uuid.NewString(),
		scopes: []string{
			"receipts:read", "receipts:write", "receipts:delete",
			"claims:read", "claims:write",
			"search:read", "analytics:read", "teams:read",
		},
		store: newStore([]team{{
			ID:          "team-default",
			Name:        "Default Team",
			Role:        "owner",
			MemberCount: 1,
		}}, nil),
		failBatches: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware, s.recordMiddleware, s.authMiddleware, s.throttleMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/receipts", s.handleListReceipts).Methods(http.MethodGet)
	s.router.HandleFunc("/receipts", s.handleCreateReceipt).Methods(http.MethodPost)
	s.router.HandleFunc("/receipts/batch", s.handleCreateBatch).Methods(http.MethodPost)
	s.router.HandleFunc("/receipts/{id}", s.handleGetReceipt).Methods(http.MethodGet)
	s.router.HandleFunc("/receipts/{id}", s.handleUpdateReceipt).Methods(http.MethodPut)
	s.router.HandleFunc("/receipts/{id}", s.handleDeleteReceipt).Methods(http.MethodDelete)

	s.router.HandleFunc("/claims", s.handleListClaims).Methods(http.MethodGet)
	s.router.HandleFunc("/claims", s.handleCreateClaim).Methods(http.MethodPost)

	s.router.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)

	s.router.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/summary", s.handleSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/categories", s.handleCategories).Methods(http.MethodGet)

	s.router.HandleFunc("/teams", s.handleTeams).Methods(http.MethodGet)
	s.router.HandleFunc("/teams/{id}/stats", s.handleTeamStats).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ThrottleNext makes the next n requests fail with 429.
func (s *Server) ThrottleNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle = n
}

// Requests returns every request seen so far as "METHOD /path".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many requests matched method and path.
func (s *Server) CountRequests(method, path string) int {
	want := method + " " + path
	n := 0
	for _, r := range s.Requests() {
		if r == want {
			n++
		}
	}
	return n
}

// NewHTTPServer wraps the fake API in an http.Server with sane timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		switch {
		case key == "":
			writeError(w, http.StatusUnauthorized, "MISSING_API_KEY", "API key is required")
		case key != s.apiKey:
			writeError(w, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid or expired API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) throttleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		throttled := s.throttle > 0
		if throttled {
			s.throttle--
		}
		s.mu.Unlock()

		if throttled || (s.limiter != nil && !s.limiter.Allow()) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type successEnvelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Success: false, Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
