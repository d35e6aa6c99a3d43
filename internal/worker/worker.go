// Package worker provides async match processing over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/match"
)

// Worker consumes match requests from the EventBus, scores them against
// ledger candidates, persists outcomes, and publishes results.
type Worker struct {
	bus        domain.EventBus
	repo       domain.Repository
	engine     *match.Engine
	windowDays int

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string

	// CandidateWindowDays expands the source date in each direction when
	// retrieving ledger candidates.
	CandidateWindowDays int
}

// NewWorker creates a new async match worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *match.Engine, windowDays int) *Worker {
	if windowDays <= 0 {
		windowDays = domain.DefaultMaxDaysDiff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		engine:     engine,
		windowDays: windowDays,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing match requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.CandidateWindowDays > 0 {
		w.windowDays = cfg.CandidateWindowDays
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("match workers started",
		"tenant_count", len(cfg.TenantIDs),
	)
	return nil
}

func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicMatchRequest, func(ctx context.Context, msg *domain.Message) error {
		return w.processRequest(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicMatchRequest,
	)
	return nil
}

// MatchRequestMessage is the message payload for async match processing.
type MatchRequestMessage struct {
	RequestID  string                   `json:"requestId"`
	TenantID   string                   `json:"tenantId"`
	TraceID    string                   `json:"traceId,omitempty"`
	Source     domain.SourceTransaction `json:"source"`
	Options    *domain.MatchOptions     `json:"options,omitempty"`
	Filter     string                   `json:"filter,omitempty"`
	WindowDays int                      `json:"windowDays,omitempty"`
}

// MatchResultMessage is published to the result topic for every processed
// request.
type MatchResultMessage struct {
	RequestID  string                  `json:"requestId"`
	TenantID   string                  `json:"tenantId"`
	TraceID    string                  `json:"traceId,omitempty"`
	Suggestion *match.RankedSuggestion `json:"suggestion"`
	DurationMs int64                   `json:"durationMs"`
}

// processRequest scores one match request end to end.
func (w *Worker) processRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req MatchRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse match request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if req.TenantID != "" {
		tenantID = req.TenantID
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing match request",
		"request_id", req.RequestID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	windowDays := req.WindowDays
	if windowDays <= 0 {
		windowDays = w.windowDays
	}

	// 1. Retrieve ledger candidates around the source date.
	from, to := match.DateSearchWindow(req.Source.Date, windowDays)
	targets, err := w.repo.GetTransactionsByDateRange(ctx, tenantID, from, to)
	if err != nil {
		slog.Error("failed to retrieve candidates",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}

	// 2. Apply the optional candidate filter.
	if req.Filter != "" {
		filter, err := match.NewCandidateFilter(req.Filter)
		if err != nil {
			slog.Error("invalid candidate filter",
				"request_id", req.RequestID,
				"filter", req.Filter,
				"error", err,
			)
			return err
		}
		targets = filter.Apply(targets)
	}

	// 3. Score and rank.
	suggestion, err := w.engine.RankMatches(ctx, &req.Source, targets, req.Options, match.RankerConfig{})
	if err != nil {
		slog.Error("match scoring failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}

	// 4. Persist the best outcome for audit.
	if w.repo != nil && suggestion.BestMatch != nil {
		rec := &domain.MatchRecord{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Source:    req.Source,
			Result:    *suggestion.BestMatch,
			CreatedAt: time.Now().UTC(),
		}
		if err := w.repo.SaveMatchResult(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save match result",
				"request_id", req.RequestID,
				"error", err,
			)
		}
	}

	// 5. Publish the outcome.
	resultPayload, _ := json.Marshal(&MatchResultMessage{
		RequestID:  req.RequestID,
		TenantID:   tenantID,
		TraceID:    traceID,
		Suggestion: suggestion,
		DurationMs: time.Since(start).Milliseconds(),
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicMatchResult, resultPayload); err != nil {
		slog.Error("failed to publish match result",
			"request_id", req.RequestID,
			"error", err,
		)
	}

	// 6. Announce confident matches separately for downstream automation.
	if suggestion.Status == match.StatusMatched {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicMatchFound, resultPayload); err != nil {
			slog.Error("failed to publish match found event",
				"request_id", req.RequestID,
				"error", err,
			)
		}
	}

	slog.Info("match request processed",
		"request_id", req.RequestID,
		"tenant_id", tenantID,
		"status", suggestion.Status,
		"candidates", len(targets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("match workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
