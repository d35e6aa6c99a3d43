package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/match"
)

const dateLayout = "2006-01-02"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *match.Engine
	rates   domain.RateLookup
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *match.Engine, rates domain.RateLookup, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		rates:   rates,
		version: version,
	}
}

// SourceInfo is the wire form of a source transaction.
type SourceInfo struct {
	Vendor      string  `json:"vendor"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description,omitempty"`
}

// TargetInfo is the wire form of an inline candidate transaction.
type TargetInfo struct {
	ID          string  `json:"id"`
	Vendor      string  `json:"vendor"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description,omitempty"`
}

// MatchRequest is the request body for POST /match. When Targets is empty,
// candidates are retrieved from the ledger around the source date.
type MatchRequest struct {
	Source     SourceInfo           `json:"source"`
	Targets    []TargetInfo         `json:"targets,omitempty"`
	Options    *domain.MatchOptions `json:"options,omitempty"`
	Filter     string               `json:"filter,omitempty"`
	WindowDays int                  `json:"windowDays,omitempty"`
	Ranker     match.RankerConfig   `json:"ranker,omitempty"`
}

// MatchResponse is the response for POST /match.
type MatchResponse struct {
	MatchID        string                 `json:"matchId,omitempty"`
	Status         match.MatchStatus      `json:"status"`
	BestMatch      *domain.MatchResult    `json:"bestMatch,omitempty"`
	Suggestions    []*domain.MatchResult  `json:"suggestions"`
	Statistics     domain.MatchStatistics `json:"statistics"`
	Reason         string                 `json:"reason"`
	RequiresReview bool                   `json:"requiresReview"`
	Metadata       struct {
		TraceID    string `json:"traceId"`
		Candidates int    `json:"candidates"`
		TotalMs    int64  `json:"totalMs"`
		Version    string `json:"version"`
	} `json:"metadata"`
}

// Match handles POST /match requests.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	source, errMsg := req.Source.toDomain()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	// Resolve candidates: inline targets when supplied, otherwise the
	// ledger window around the source date.
	var targets []*domain.TargetTransaction
	if len(req.Targets) > 0 {
		for i := range req.Targets {
			target, errMsg := req.Targets[i].toDomain()
			if errMsg != "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
				return
			}
			targets = append(targets, target)
		}
	} else {
		if h.repo == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "repository not available",
			})
			return
		}
		windowDays := req.WindowDays
		if windowDays <= 0 {
			windowDays = domain.DefaultMaxDaysDiff
		}
		from, to := match.DateSearchWindow(source.Date, windowDays)
		var err error
		targets, err = h.repo.GetTransactionsByDateRange(ctx, tenantID, from, to)
		if err != nil {
			slog.Error("failed to retrieve candidates", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to retrieve candidates",
			})
			return
		}
	}

	// Apply the optional candidate filter
	if req.Filter != "" {
		filter, err := match.NewCandidateFilter(req.Filter)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid filter expression: " + err.Error(),
			})
			return
		}
		targets = filter.Apply(targets)
	}

	// Score and rank
	suggestion, err := h.engine.RankMatches(ctx, source, targets, req.Options, req.Ranker)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Persist the best outcome for audit
	var matchID string
	if h.repo != nil && suggestion.BestMatch != nil {
		rec := &domain.MatchRecord{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Source:    *source,
			Result:    *suggestion.BestMatch,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.repo.SaveMatchResult(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save match result", "error", err)
		} else {
			matchID = rec.ID
		}
	}

	// Announce confident matches for downstream automation
	if h.bus != nil && suggestion.Status == match.StatusMatched {
		payload, _ := json.Marshal(suggestion.BestMatch)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicMatchFound, payload); err != nil {
			slog.Error("failed to publish match found event", "error", err)
		}
	}

	resp := MatchResponse{
		MatchID:        matchID,
		Status:         suggestion.Status,
		BestMatch:      suggestion.BestMatch,
		Suggestions:    suggestion.Suggestions,
		Statistics:     suggestion.Statistics,
		Reason:         suggestion.Reason,
		RequiresReview: suggestion.RequiresReview,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.Candidates = len(targets)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// MatchPairRequest is the request body for POST /match/pair.
type MatchPairRequest struct {
	Source  SourceInfo           `json:"source"`
	Target  TargetInfo           `json:"target"`
	Options *domain.MatchOptions `json:"options,omitempty"`
}

// MatchPairResponse is the response for POST /match/pair.
type MatchPairResponse struct {
	Result  *domain.MatchResult `json:"result"`
	Summary string              `json:"summary"`
}

// MatchPair handles POST /match/pair requests, scoring exactly one
// (source, target) pair.
func (h *Handler) MatchPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req MatchPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	source, errMsg := req.Source.toDomain()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}
	target, errMsg := req.Target.toDomain()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	result, err := h.engine.CalculateMatchScore(ctx, source, target, req.Options)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, MatchPairResponse{
		Result:  result,
		Summary: match.FormatMatchResult(result),
	})
}

// GetMatch retrieves a saved match record by ID.
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	matchID := chi.URLParam(r, "id")

	if matchID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "match id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetMatchResult(ctx, tenantID, matchID)
	if err != nil {
		slog.Error("failed to get match result", "id", matchID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "match not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListMatches returns match records created since the given time
// (?since=YYYY-MM-DD, default last 30 days).
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be YYYY-MM-DD",
			})
			return
		}
		since = parsed
	}

	records, err := h.repo.ListMatchResults(ctx, tenantID, since)
	if err != nil {
		slog.Error("failed to list match results", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list match results",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": records,
		"count":   len(records),
	})
}

// CreateTransaction handles POST /transactions, ingesting a ledger row.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Vendor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "vendor is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "date must be YYYY-MM-DD",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx := req.ToTarget(uuid.New().String(), date)
	tx.TenantID = tenantID
	if err := h.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
		slog.Error("failed to save transaction", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transaction",
		})
		return
	}

	slog.Info("transaction ingested", "id", tx.ID, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, tx)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions returns ledger rows in a date range
// (?from=YYYY-MM-DD&to=YYYY-MM-DD, both required).
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "from must be YYYY-MM-DD",
		})
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "to must be YYYY-MM-DD",
		})
		return
	}

	txs, err := h.repo.GetTransactionsByDateRange(ctx, tenantID, from, to)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// CreateRateRequest is the request body for POST /rates.
type CreateRateRequest struct {
	FromCurrency string  `json:"fromCurrency"`
	ToCurrency   string  `json:"toCurrency"`
	Date         string  `json:"date"` // YYYY-MM-DD
	Rate         float64 `json:"rate"`
}

// CreateRate stores a historical exchange rate observation. Rates are
// market data and not tenant-scoped.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.FromCurrency == "" || req.ToCurrency == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "fromCurrency and toCurrency are required",
		})
		return
	}
	if req.Rate <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rate must be positive",
		})
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "date must be YYYY-MM-DD",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	quote := &domain.RateQuote{
		Rate:         req.Rate,
		Date:         date,
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
	}
	if err := h.repo.SaveRate(ctx, quote); err != nil {
		slog.Error("failed to save rate", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rate",
		})
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(quote)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicRateUpdated, payload); err != nil {
			slog.Error("failed to publish rate update", "error", err)
		}
	}

	slog.Info("rate saved",
		"from", quote.FromCurrency,
		"to", quote.ToCurrency,
		"date", req.Date,
	)
	writeJSON(w, http.StatusCreated, quote)
}

// GetRate resolves a rate for a currency pair on a date
// (?from=EUR&to=USD&date=YYYY-MM-DD, date defaults to today).
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rate lookup not available",
		})
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "from and to query parameters are required",
		})
		return
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "date must be YYYY-MM-DD",
			})
			return
		}
		asOf = parsed
	}

	quote, err := h.rates.LookupRate(ctx, asOf, from, to)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if quote == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no rate available for this pair and date",
		})
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func (s *SourceInfo) toDomain() (*domain.SourceTransaction, string) {
	if s.Vendor == "" {
		return nil, "source.vendor is required"
	}
	if s.Amount <= 0 {
		return nil, "source.amount must be positive"
	}
	date, err := time.Parse(dateLayout, s.Date)
	if err != nil {
		return nil, "source.date must be YYYY-MM-DD"
	}
	return &domain.SourceTransaction{
		Amount:      s.Amount,
		Currency:    s.Currency,
		Date:        date,
		Vendor:      s.Vendor,
		Description: s.Description,
	}, ""
}

func (t *TargetInfo) toDomain() (*domain.TargetTransaction, string) {
	if t.ID == "" {
		return nil, "target.id is required"
	}
	date, err := time.Parse(dateLayout, t.Date)
	if err != nil {
		return nil, "target.date must be YYYY-MM-DD"
	}
	return &domain.TargetTransaction{
		ID:          t.ID,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Date:        date,
		Vendor:      t.Vendor,
		Description: t.Description,
	}, ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
