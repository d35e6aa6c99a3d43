// Benchmark tool for testing Kestrel against labeled reconciliation data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/pairs.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled (source, target) transaction pairs from CSV
//   2. Sends each pair to Kestrel for match scoring
//   3. Compares Kestrel's verdict (matched / not matched) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns:
//   vendor,amount,currency,date,target_vendor,target_amount,target_currency,target_date,is_match
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledPair represents a row from the benchmark dataset
type LabeledPair struct {
	Row            int
	Vendor         string
	Amount         float64
	Currency       string
	Date           string
	TargetVendor   string
	TargetAmount   float64
	TargetCurrency string
	TargetDate     string
	IsMatch        bool
}

// MatchRequest is the Kestrel API request format
type MatchRequest struct {
	Source  TransactionInfo   `json:"source"`
	Targets []TransactionInfo `json:"targets"`
}

// TransactionInfo carries one transaction over the wire
type TransactionInfo struct {
	ID       string  `json:"id,omitempty"`
	Vendor   string  `json:"vendor"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
}

// MatchResponse is the Kestrel API response format
type MatchResponse struct {
	Status    string `json:"status"` // "matched", "multiple_matches", ...
	BestMatch *struct {
		TargetID string  `json:"targetId"`
		Score    float64 `json:"score"`
	} `json:"bestMatch"`
	Reason string `json:"reason"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Labeled match, Kestrel matched
	FalsePositives int64 // Labeled non-match, Kestrel matched
	TrueNegatives  int64 // Labeled non-match, Kestrel passed
	FalseNegatives int64 // Labeled match, Kestrel missed

	TotalProcessed int64
	TotalMatches   int64
	TotalNonMatch  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled pairs CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum pairs to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each pair result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/pairs.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL BENCHMARK - Labeled Match Scoring             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read labeled pairs
	fmt.Printf("\nReading labeled pairs from %s...\n", *csvPath)
	pairs, err := readPairsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d pairs\n", len(pairs))

	// Count labels
	matchCount := 0
	for _, p := range pairs {
		if p.IsMatch {
			matchCount++
		}
	}
	fmt.Printf("  - Matches:     %d (%.2f%%)\n", matchCount, 100*float64(matchCount)/float64(len(pairs)))
	fmt.Printf("  - Non-matches: %d (%.2f%%)\n", len(pairs)-matchCount, 100*float64(len(pairs)-matchCount)/float64(len(pairs)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(pairs, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readPairsCSV(path string, limit int) ([]LabeledPair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var pairs []LabeledPair
	row := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		row++

		amount, _ := strconv.ParseFloat(record[colIndex["amount"]], 64)
		targetAmount, _ := strconv.ParseFloat(record[colIndex["target_amount"]], 64)

		pairs = append(pairs, LabeledPair{
			Row:            row,
			Vendor:         record[colIndex["vendor"]],
			Amount:         amount,
			Currency:       record[colIndex["currency"]],
			Date:           record[colIndex["date"]],
			TargetVendor:   record[colIndex["target_vendor"]],
			TargetAmount:   targetAmount,
			TargetCurrency: record[colIndex["target_currency"]],
			TargetDate:     record[colIndex["target_date"]],
			IsMatch:        record[colIndex["is_match"]] == "1",
		})

		if limit > 0 && len(pairs) >= limit {
			break
		}
	}

	return pairs, nil
}

func runBenchmark(pairs []LabeledPair, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledPair, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for pair := range work {
				start := time.Now()
				result, err := scorePair(client, baseURL, tenantID, pair)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: row %d -> %v\n", pair.Row, err)
					}
					continue
				}

				// Track actual labels
				if pair.IsMatch {
					atomic.AddInt64(&metrics.TotalMatches, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonMatch, 1)
				}

				// Calculate confusion matrix
				predicted := result.Status == "matched"
				actual := pair.IsMatch

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					score := float64(0)
					if result.BestMatch != nil {
						score = result.BestMatch.Score
					}
					vendor := pair.Vendor
					if len(vendor) > 16 {
						vendor = vendor[:16]
					}
					fmt.Printf("%s row %-5d | %-16s | %10.2f %s | Label: %-5v | Kestrel: %-16s (%.0f)\n",
						status,
						pair.Row,
						vendor,
						pair.Amount,
						pair.Currency,
						pair.IsMatch,
						result.Status,
						score,
					)
				}
			}
		}()
	}

	// Send work
	for _, pair := range pairs {
		work <- pair
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func scorePair(client *http.Client, baseURL, tenantID string, pair LabeledPair) (*MatchResponse, error) {
	req := MatchRequest{
		Source: TransactionInfo{
			Vendor:   pair.Vendor,
			Amount:   pair.Amount,
			Currency: pair.Currency,
			Date:     pair.Date,
		},
		Targets: []TransactionInfo{
			{
				ID:       fmt.Sprintf("row-%d", pair.Row),
				Vendor:   pair.TargetVendor,
				Amount:   pair.TargetAmount,
				Currency: pair.TargetCurrency,
				Date:     pair.TargetDate,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Matches:    %d\n", m.TotalMatches)
	fmt.Printf("   Total Non-Match:  %d\n", m.TotalNonMatch)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   MATCH       PASS")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  M  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NM  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 MATCHING METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of auto-matches, how many were right)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of true matches, how many did we find)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 RECONCILIATION ANALYSIS\n")
	if m.TotalMatches > 0 {
		foundRate := float64(m.TruePositives) / float64(m.TotalMatches) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalMatches) * 100
		fmt.Printf("   Matches Found:     %d / %d (%.2f%%)\n", m.TruePositives, m.TotalMatches, foundRate)
		fmt.Printf("   Matches Missed:    %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalMatches, missRate)
	}
	if m.TotalNonMatch > 0 {
		falseMatchRate := float64(m.FalsePositives) / float64(m.TotalNonMatch) * 100
		fmt.Printf("   False Matches:     %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonMatch, falseMatchRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f pairs/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - finding most true matches")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some matches")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - many matches left for manual review")
	} else {
		fmt.Println("   ❌ Poor recall - most matches are being missed!")
	}

	if precision >= 0.9 {
		fmt.Println("   ✅ Excellent precision - auto-matches are trustworthy")
	} else if precision >= 0.7 {
		fmt.Println("   ⚠️  Moderate precision - some wrong auto-matches")
	} else {
		fmt.Println("   ❌ Low precision - auto-matching is unsafe at this threshold")
	}

	fmt.Println()
}
