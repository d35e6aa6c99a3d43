//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel transaction
// matching engine.
//
// These tests verify the COMPLETE matching pipeline:
//
//	Ledger Ingest → Candidate Retrieval → Scoring → Ranking → Verdict
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. SOURCE: The transaction being reconciled (a receipt or statement line)
//
// 2. TARGET: A ledger row that may correspond to the source
//
// 3. SCORE: Weighted composite across three dimensions (default 40/30/30):
//   - Amount: exact → full points, tiered partial credit up to 10% diff
//   - Date: full points on the same day, decaying within the tolerance window
//   - Vendor: exact / alias / fuzzy matching over normalized names
//
// 4. VERDICT: One of "matched", "multiple_matches", "low_confidence",
//    "no_match". A score >= 55 is a valid match; >= 90 is HIGH confidence.
//
// The server under test must be running with an empty or disposable
// database; these tests ingest their own ledger rows and rates.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: fmt.Sprintf("test-tenant-%d", time.Now().UnixNano()),
	}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// TransactionInfo carries one transaction over the wire
type TransactionInfo struct {
	ID       string  `json:"id,omitempty"`
	Vendor   string  `json:"vendor"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
}

// MatchRequest is the body sent to POST /match
type MatchRequest struct {
	Source     TransactionInfo   `json:"source"`
	Targets    []TransactionInfo `json:"targets,omitempty"`
	Filter     string            `json:"filter,omitempty"`
	WindowDays int               `json:"windowDays,omitempty"`
}

// MatchResult is one scored candidate
type MatchResult struct {
	TargetID   string   `json:"targetId"`
	Score      float64  `json:"score"`
	Confidence string   `json:"confidence"`
	IsMatch    bool     `json:"isMatch"`
	Reasons    []string `json:"reasons"`
}

// MatchResponse is what POST /match returns
type MatchResponse struct {
	MatchID        string        `json:"matchId"`
	Status         string        `json:"status"`
	BestMatch      *MatchResult  `json:"bestMatch"`
	Suggestions    []MatchResult `json:"suggestions"`
	Reason         string        `json:"reason"`
	RequiresReview bool          `json:"requiresReview"`
	Metadata       struct {
		TraceID    string `json:"traceId"`
		Candidates int    `json:"candidates"`
		TotalMs    int64  `json:"totalMs"`
		Version    string `json:"version"`
	} `json:"metadata"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func doJSON(t *testing.T, config TestConfig, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
	return resp.StatusCode
}

func ingest(t *testing.T, config TestConfig, tx TransactionInfo) string {
	t.Helper()

	var created struct {
		ID string `json:"id"`
	}
	status := doJSON(t, config, http.MethodPost, "/transactions", tx, &created)
	if status != http.StatusCreated {
		t.Fatalf("Expected 201 ingesting transaction, got %d", status)
	}
	if created.ID == "" {
		t.Fatal("Expected generated transaction ID")
	}
	return created.ID
}

func match(t *testing.T, config TestConfig, req MatchRequest) MatchResponse {
	t.Helper()

	var resp MatchResponse
	status := doJSON(t, config, http.MethodPost, "/match", req, &resp)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from /match, got %d", status)
	}
	return resp
}

// ============================================================================
// SCENARIO 1: Exact Match Against the Ledger
// ============================================================================

func TestExactMatch_AgainstLedger(t *testing.T) {
	/*
	   SCENARIO: A receipt that matches a ledger row on every dimension

	   EXPECTED BEHAVIOR:
	   - Amount exact → 40 points
	   - Same day → 30 points
	   - Vendor normalizes equal ("STARBUCKS #1234" → "STARBUCKS") → 30 points
	   - Total 100 → HIGH confidence, status "matched"
	*/
	config := getTestConfig()

	wantID := ingest(t, config, TransactionInfo{
		Vendor:   "STARBUCKS #1234",
		Amount:   42.50,
		Currency: "USD",
		Date:     "2024-03-15",
	})
	ingest(t, config, TransactionInfo{
		Vendor:   "Netflix",
		Amount:   15.99,
		Currency: "USD",
		Date:     "2024-03-14",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Starbucks",
			Amount:   42.50,
			Currency: "USD",
			Date:     "2024-03-15",
		},
	})

	if result.Status != "matched" {
		t.Errorf("Expected status matched, got %s (%s)", result.Status, result.Reason)
	}
	if result.BestMatch == nil {
		t.Fatal("Expected a best match")
	}
	if result.BestMatch.TargetID != wantID {
		t.Errorf("Expected best match %s, got %s", wantID, result.BestMatch.TargetID)
	}
	if result.BestMatch.Score != 100 {
		t.Errorf("Expected score 100, got %.1f", result.BestMatch.Score)
	}
	if result.BestMatch.Confidence != "HIGH" {
		t.Errorf("Expected HIGH confidence, got %s", result.BestMatch.Confidence)
	}
	if result.MatchID == "" {
		t.Error("Expected persisted match ID")
	}

	t.Logf("✓ Exact match: score=%.0f, matchId=%s", result.BestMatch.Score, result.MatchID)
}

// ============================================================================
// SCENARIO 2: Persisted Match Retrieval
// ============================================================================

func TestMatchRecord_Retrievable(t *testing.T) {
	config := getTestConfig()

	ingest(t, config, TransactionInfo{
		Vendor:   "Spotify",
		Amount:   9.99,
		Currency: "USD",
		Date:     "2024-04-01",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Spotify",
			Amount:   9.99,
			Currency: "USD",
			Date:     "2024-04-01",
		},
	})
	if result.MatchID == "" {
		t.Fatal("Expected persisted match ID")
	}

	var rec map[string]any
	status := doJSON(t, config, http.MethodGet, "/matches/"+result.MatchID, nil, &rec)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 retrieving match record, got %d", status)
	}

	t.Logf("✓ Match record retrievable: %s", result.MatchID)
}

// ============================================================================
// SCENARIO 3: Date Window Excludes Stale Candidates
// ============================================================================

func TestDateWindow_ExcludesDistantRows(t *testing.T) {
	/*
	   SCENARIO: The only ledger row with this vendor is 10 days away

	   EXPECTED BEHAVIOR:
	   - Default candidate window is ±3 days, so the row is never retrieved
	   - Status "no_match"
	*/
	config := getTestConfig()

	ingest(t, config, TransactionInfo{
		Vendor:   "Walmart",
		Amount:   120.00,
		Currency: "USD",
		Date:     "2024-05-25",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Walmart",
			Amount:   120.00,
			Currency: "USD",
			Date:     "2024-05-15",
		},
	})

	if result.Status != "no_match" {
		t.Errorf("Expected no_match outside the date window, got %s", result.Status)
	}
	if result.Metadata.Candidates != 0 {
		t.Errorf("Expected 0 candidates, got %d", result.Metadata.Candidates)
	}

	// Widening the window brings the row back, but 10 days still scores
	// zero on the date dimension.
	widened := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Walmart",
			Amount:   120.00,
			Currency: "USD",
			Date:     "2024-05-15",
		},
		WindowDays: 14,
	})
	if widened.Metadata.Candidates != 1 {
		t.Errorf("Expected 1 candidate with widened window, got %d", widened.Metadata.Candidates)
	}

	t.Logf("✓ Date window: default=%s, widened=%s", result.Status, widened.Status)
}

// ============================================================================
// SCENARIO 4: Ambiguous Candidates Require Review
// ============================================================================

func TestAmbiguousCandidates_MultipleMatches(t *testing.T) {
	/*
	   SCENARIO: Two ledger rows both score above the threshold with
	   nearly identical scores (same vendor and amount, one day apart)

	   EXPECTED BEHAVIOR:
	   - Both valid, gap < 10 points → "multiple_matches", requiresReview
	*/
	config := getTestConfig()

	ingest(t, config, TransactionInfo{
		Vendor:   "Uber",
		Amount:   23.40,
		Currency: "USD",
		Date:     "2024-06-10",
	})
	ingest(t, config, TransactionInfo{
		Vendor:   "Uber",
		Amount:   23.40,
		Currency: "USD",
		Date:     "2024-06-11",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Uber",
			Amount:   23.40,
			Currency: "USD",
			Date:     "2024-06-10",
		},
	})

	if result.Status != "multiple_matches" {
		t.Errorf("Expected multiple_matches, got %s (%s)", result.Status, result.Reason)
	}
	if !result.RequiresReview {
		t.Error("Expected requiresReview for ambiguous candidates")
	}
	if len(result.Suggestions) < 2 {
		t.Errorf("Expected at least 2 suggestions, got %d", len(result.Suggestions))
	}

	t.Logf("✓ Ambiguity detected: %s", result.Reason)
}

// ============================================================================
// SCENARIO 5: Cross-Currency Matching With a Stored Rate
// ============================================================================

func TestCrossCurrency_WithStoredRate(t *testing.T) {
	/*
	   SCENARIO: EUR receipt against a USD ledger row, with a same-day
	   exchange rate stored via POST /rates

	   EXPECTED BEHAVIOR:
	   - 100 EUR × 1.10 = 110 USD, within the 2% converted tolerance
	   - Full amount points, no confidence cap → score 100
	*/
	config := getTestConfig()

	rate := map[string]any{
		"fromCurrency": "EUR",
		"toCurrency":   "USD",
		"date":         "2024-07-01",
		"rate":         1.10,
	}
	if status := doJSON(t, config, http.MethodPost, "/rates", rate, nil); status != http.StatusCreated {
		t.Fatalf("Expected 201 storing rate, got %d", status)
	}

	ingest(t, config, TransactionInfo{
		Vendor:   "Lufthansa",
		Amount:   110.00,
		Currency: "USD",
		Date:     "2024-07-01",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Lufthansa",
			Amount:   100.00,
			Currency: "EUR",
			Date:     "2024-07-01",
		},
	})

	if result.Status != "matched" {
		t.Errorf("Expected matched for converted amounts, got %s (%s)", result.Status, result.Reason)
	}
	if result.BestMatch != nil && result.BestMatch.Score != 100 {
		t.Errorf("Expected score 100 with exact rate, got %.1f", result.BestMatch.Score)
	}

	t.Logf("✓ Cross-currency match: status=%s", result.Status)
}

func TestCrossCurrency_NoRateCapsConfidence(t *testing.T) {
	/*
	   SCENARIO: Cross-currency pair with no stored rate for the pair

	   EXPECTED BEHAVIOR:
	   - Amount dimension scores 0 and caps the composite at 50
	   - 50 < 55 threshold → never a valid match on its own
	*/
	config := getTestConfig()

	ingest(t, config, TransactionInfo{
		Vendor:   "Shopee",
		Amount:   3400.00,
		Currency: "PHP",
		Date:     "2024-07-15",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Shopee",
			Amount:   61.00,
			Currency: "SGD",
			Date:     "2024-07-15",
		},
	})

	if result.Status == "matched" {
		t.Errorf("Expected non-match without a rate, got %s", result.Status)
	}
	if len(result.Suggestions) > 0 && result.Suggestions[0].Score > 50 {
		t.Errorf("Expected score capped at 50, got %.1f", result.Suggestions[0].Score)
	}

	t.Logf("✓ Missing rate capped: status=%s", result.Status)
}

// ============================================================================
// SCENARIO 6: Candidate Filter
// ============================================================================

func TestCandidateFilter_NarrowsSearch(t *testing.T) {
	config := getTestConfig()

	ingest(t, config, TransactionInfo{
		Vendor:   "Grab",
		Amount:   18.00,
		Currency: "SGD",
		Date:     "2024-08-01",
	})
	ingest(t, config, TransactionInfo{
		Vendor:   "Grab",
		Amount:   18.00,
		Currency: "USD",
		Date:     "2024-08-01",
	})

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "GrabFood",
			Amount:   18.00,
			Currency: "SGD",
			Date:     "2024-08-01",
		},
		Filter: `currency == "SGD"`,
	})

	if result.Metadata.Candidates != 1 {
		t.Errorf("Expected filter to leave 1 candidate, got %d", result.Metadata.Candidates)
	}
	if result.Status != "matched" {
		t.Errorf("Expected matched after filtering, got %s", result.Status)
	}

	t.Logf("✓ Filter narrowed candidates to %d", result.Metadata.Candidates)
}

// ============================================================================
// SCENARIO 7: Input Validation
// ============================================================================

func TestMissingVendor_Error(t *testing.T) {
	config := getTestConfig()

	status := doJSON(t, config, http.MethodPost, "/match", MatchRequest{
		Source: TransactionInfo{Amount: 100, Currency: "USD", Date: "2024-03-15"},
	}, nil)

	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing vendor, got %d", status)
	}
}

func TestInvalidDate_Error(t *testing.T) {
	config := getTestConfig()

	status := doJSON(t, config, http.MethodPost, "/match", MatchRequest{
		Source: TransactionInfo{Vendor: "Starbucks", Amount: 100, Currency: "USD", Date: "03/15/2024"},
	}, nil)

	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid date, got %d", status)
	}
}

func TestMissingTenantHeader_Error(t *testing.T) {
	config := getTestConfig()

	body, _ := json.Marshal(MatchRequest{
		Source: TransactionInfo{Vendor: "Starbucks", Amount: 100, Currency: "USD", Date: "2024-03-15"},
	})
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/match", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	// NO X-Tenant-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing tenant, got %d", resp.StatusCode)
	}
}

// ============================================================================
// SCENARIO 8: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	config := getTestConfig()

	result := match(t, config, MatchRequest{
		Source: TransactionInfo{
			Vendor:   "Apple",
			Amount:   0.99,
			Currency: "USD",
			Date:     "2024-09-01",
		},
		Targets: []TransactionInfo{
			{ID: "inline-1", Vendor: "APPLE.COM/BILL", Amount: 0.99, Currency: "USD", Date: "2024-09-01"},
		},
	})

	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}
	if result.Metadata.Version == "" {
		t.Error("Missing metadata.version")
	}
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}
	if result.Metadata.Candidates != 1 {
		t.Errorf("Expected 1 candidate, got %d", result.Metadata.Candidates)
	}

	t.Logf("✓ Metadata complete: traceId=%s, totalMs=%d, version=%s",
		result.Metadata.TraceID[:8], result.Metadata.TotalMs, result.Metadata.Version)
}
