// Benchmark tool for testing Kestrel against synthetic ledgers.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -projects 50
//
// This tool:
//   1. Generates ledgers with a known number of planted irregularities
//      (round amounts, keyword narrations, weekend postings, invoice gaps)
//   2. Uploads each ledger as its own project and runs an analysis
//   3. Compares the engine's findings against the planted ground truth
//   4. Reports detection counts, throughput, and average analysis latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// UploadRequest is the Kestrel API upload format
type UploadRequest struct {
	ProjectID string           `json:"projectId"`
	Template  string           `json:"template"`
	Name      string           `json:"name,omitempty"`
	Rows      []map[string]any `json:"rows"`
}

// AnalysisRequest is the Kestrel API analysis format
type AnalysisRequest struct {
	ProjectID string `json:"projectId"`
}

// AnalysisResponse is the slice of the response the benchmark reads
type AnalysisResponse struct {
	AnalysisID string `json:"analysisId"`
	Status     string `json:"status"` // "PASS" or "REVIEW"
	Findings   int    `json:"findings"`
	CheckRuns  []struct {
		CheckID      string `json:"checkId"`
		FindingCount int    `json:"findingCount"`
		ErrorCount   int    `json:"errorCount"`
	} `json:"checkRuns"`
	Metadata struct {
		TotalMs int64 `json:"totalMs"`
	} `json:"metadata"`
}

// Planted is the ground truth seeded into one project's ledgers
type Planted struct {
	Round   int // amounts ending in five zeros
	Keyword int // narrations carrying a sensitive phrase
	Weekend int // postings dated on a Saturday or Sunday
	Gaps    int // holes in the invoice sequence
}

// Metrics tracks benchmark results
type Metrics struct {
	TotalProjects int64
	TotalRows     int64
	TotalErrors   int64
	ExactProjects int64 // projects where every check matched its planted count

	PlantedRound   int64
	FoundRound     int64
	PlantedKeyword int64
	FoundKeyword   int64
	PlantedWeekend int64
	FoundWeekend   int64
	PlantedGaps    int64
	FoundGaps      int64
	FoundOutliers  int64 // expense-outliers should stay at zero on one month of data

	MissedFindings int64
	ExtraFindings  int64

	AnalysisTimeMs int64
	AnalysisCount  int64
}

// Weekday and weekend dates of January 2024. Keeping every posting in a
// single month holds expense-outliers below its period minimum, so the
// only findings are the planted ones.
var (
	workingDays = []int{1, 2, 3, 4, 5, 8, 9, 10, 11, 12, 15, 16, 17, 18, 19, 22, 23, 24, 25, 26, 29, 30, 31}
	weekendDays = []int{6, 7, 13, 14, 20, 21, 27, 28}
)

var cleanNarrations = []string{
	"Rent for January",
	"Office supplies",
	"Courier charges",
	"Electricity bill",
	"Staff welfare expenses",
	"Printing and stationery",
	"Vendor payment released",
	"Telephone charges",
	"Conveyance reimbursement",
	"Annual maintenance contract",
}

// Each narration carries exactly one catalog keyword.
var keywordNarrations = []string{
	"Penalty levied by customs",
	"Transferred to suspense account",
	"Write off of old balance",
	"Adjustment entry passed at year end",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	projects := flag.Int("projects", 50, "Number of synthetic projects to analyze")
	rows := flag.Int("rows", 200, "General ledger rows per project")
	plantRate := flag.Float64("plant", 0.06, "Fraction of ledger rows seeded with an irregularity")
	gaps := flag.Int("gaps", 3, "Invoice sequence holes per project")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Generator seed (same seed, same ledgers)")
	verbose := flag.Bool("verbose", false, "Print each project result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Planted Irregularity Recall        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Projects:    %d\n", *projects)
	fmt.Printf("Ledger Rows: %d\n", *rows)
	fmt.Printf("Plant Rate:  %.2f\n", *plantRate)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(*baseURL, *tenantID, *projects, *rows, *plantRate, *gaps, *seed, *workers, *verbose)
	duration := time.Since(startTime)

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

// generateLedger builds one synthetic general ledger. Planted rows cycle
// through the three irregularity types so each row carries exactly one.
func generateLedger(r *rand.Rand, rows int, plantRate float64) ([]map[string]any, Planted) {
	planted := Planted{}
	nPlant := int(float64(rows) * plantRate)

	out := make([]map[string]any, 0, rows)
	for i := 0; i < rows; i++ {
		row := map[string]any{
			"Journal Entry Number": fmt.Sprintf("JE-%05d", i+1),
			"Posting Date":         fmt.Sprintf("2024-01-%02d", workingDays[r.Intn(len(workingDays))]),
			"Amount":               float64(r.Intn(89000)+1000) + float64(r.Intn(98)+1)/100,
			"Narration":            cleanNarrations[r.Intn(len(cleanNarrations))],
			"Account Code":         fmt.Sprintf("50%02d", r.Intn(9)+1),
		}

		if i < nPlant {
			switch i % 3 {
			case 0:
				row["Amount"] = float64(r.Intn(9)+1) * 100000
				planted.Round++
			case 1:
				row["Narration"] = keywordNarrations[r.Intn(len(keywordNarrations))]
				planted.Keyword++
			case 2:
				row["Posting Date"] = fmt.Sprintf("2024-01-%02d", weekendDays[r.Intn(len(weekendDays))])
				planted.Weekend++
			}
		}

		out = append(out, row)
	}
	return out, planted
}

// generateSales builds a sequential invoice register with single-width
// holes spaced so that no two merge into one gap.
func generateSales(r *rand.Rand, count, gaps int) ([]map[string]any, int) {
	if count < 20 {
		count = 20
	}
	if most := (count - 2) / 5; gaps > most {
		gaps = most
	}

	skip := make(map[int]bool, gaps)
	for j := 0; j < gaps; j++ {
		skip[5*(j+1)] = true
	}

	out := make([]map[string]any, 0, count)
	for id := 1; id <= count; id++ {
		if skip[id] {
			continue
		}
		out = append(out, map[string]any{
			"Invoice Number": fmt.Sprintf("INV%04d", id),
			"Invoice Date":   fmt.Sprintf("2024-01-%02d", workingDays[r.Intn(len(workingDays))]),
			"Invoice Value":  float64(r.Intn(9000)+500) + float64(r.Intn(98)+1)/100,
		})
	}
	return out, gaps
}

func runBenchmark(baseURL, tenantID string, projects, rows int, plantRate float64, gaps int, seed int64, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	runID := time.Now().Unix()

	work := make(chan int, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for idx := range work {
				// Same seed, same ledgers: each project derives its
				// generator from the base seed and its own index.
				r := rand.New(rand.NewSource(seed + int64(idx)))
				projectID := fmt.Sprintf("bench-%d-%04d", runID, idx)

				ledger, planted := generateLedger(r, rows, plantRate)
				sales, plantedGaps := generateSales(r, rows/2, gaps)
				planted.Gaps = plantedGaps

				atomic.AddInt64(&metrics.TotalProjects, 1)
				atomic.AddInt64(&metrics.TotalRows, int64(len(ledger)+len(sales)))
				atomic.AddInt64(&metrics.PlantedRound, int64(planted.Round))
				atomic.AddInt64(&metrics.PlantedKeyword, int64(planted.Keyword))
				atomic.AddInt64(&metrics.PlantedWeekend, int64(planted.Weekend))
				atomic.AddInt64(&metrics.PlantedGaps, int64(planted.Gaps))

				if err := upload(client, baseURL, tenantID, projectID, "general_ledger", ledger); err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s ledger upload -> %v\n", projectID, err)
					}
					continue
				}
				if err := upload(client, baseURL, tenantID, projectID, "sales_register", sales); err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s sales upload -> %v\n", projectID, err)
					}
					continue
				}

				start := time.Now()
				result, err := analyze(client, baseURL, tenantID, projectID)
				elapsed := time.Since(start).Milliseconds()

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s analysis -> %v\n", projectID, err)
					}
					continue
				}

				atomic.AddInt64(&metrics.AnalysisTimeMs, elapsed)
				atomic.AddInt64(&metrics.AnalysisCount, 1)

				found := make(map[string]int, len(result.CheckRuns))
				for _, run := range result.CheckRuns {
					found[run.CheckID] = run.FindingCount
				}

				atomic.AddInt64(&metrics.FoundRound, int64(found["round-amounts"]))
				atomic.AddInt64(&metrics.FoundKeyword, int64(found["narration-keywords"]))
				atomic.AddInt64(&metrics.FoundWeekend, int64(found["off-calendar-postings"]))
				atomic.AddInt64(&metrics.FoundGaps, int64(found["invoice-gaps"]))
				atomic.AddInt64(&metrics.FoundOutliers, int64(found["expense-outliers"]))

				exact := tally(metrics, planted.Round, found["round-amounts"]) &&
					tally(metrics, planted.Keyword, found["narration-keywords"]) &&
					tally(metrics, planted.Weekend, found["off-calendar-postings"]) &&
					tally(metrics, planted.Gaps, found["invoice-gaps"]) &&
					tally(metrics, 0, found["expense-outliers"])
				if exact {
					atomic.AddInt64(&metrics.ExactProjects, 1)
				}

				if verbose {
					mark := "✓"
					if !exact {
						mark = "✗"
					}
					fmt.Printf("%s %s | planted r/k/w/g %d/%d/%d/%d | found %d/%d/%d/%d | %s | %dms\n",
						mark, projectID,
						planted.Round, planted.Keyword, planted.Weekend, planted.Gaps,
						found["round-amounts"], found["narration-keywords"], found["off-calendar-postings"], found["invoice-gaps"],
						result.Status, elapsed)
				}
			}
		}()
	}

	for idx := 0; idx < projects; idx++ {
		work <- idx
	}
	close(work)

	wg.Wait()

	return metrics
}

// tally compares one check's planted and found counts, accumulating the
// shortfall or excess. Returns true on an exact match.
func tally(m *Metrics, planted, found int) bool {
	switch {
	case found < planted:
		atomic.AddInt64(&m.MissedFindings, int64(planted-found))
		return false
	case found > planted:
		atomic.AddInt64(&m.ExtraFindings, int64(found-planted))
		return false
	}
	return true
}

func upload(client *http.Client, baseURL, tenantID, projectID, template string, rows []map[string]any) error {
	body, err := json.Marshal(UploadRequest{
		ProjectID: projectID,
		Template:  template,
		Rows:      rows,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/uploads", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func analyze(client *http.Client, baseURL, tenantID, projectID string) (*AnalysisResponse, error) {
	body, err := json.Marshal(AnalysisRequest{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyses", bytes.NewReader(body))
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

	var result AnalysisResponse
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
	fmt.Printf("   Projects Analyzed:  %d\n", m.TotalProjects)
	fmt.Printf("   Rows Uploaded:      %d\n", m.TotalRows)
	fmt.Printf("   Errors:             %d\n", m.TotalErrors)

	fmt.Printf("\n📈 DETECTION MATRIX (planted vs found)\n")
	fmt.Printf("   %-24s %8s  %8s\n", "CHECK", "PLANTED", "FOUND")
	printDetectionRow("round-amounts", m.PlantedRound, m.FoundRound)
	printDetectionRow("narration-keywords", m.PlantedKeyword, m.FoundKeyword)
	printDetectionRow("off-calendar-postings", m.PlantedWeekend, m.FoundWeekend)
	printDetectionRow("invoice-gaps", m.PlantedGaps, m.FoundGaps)
	printDetectionRow("expense-outliers", 0, m.FoundOutliers)

	fmt.Printf("\n🎯 RECALL\n")
	if m.TotalProjects > 0 {
		exactRate := float64(m.ExactProjects) / float64(m.TotalProjects) * 100
		fmt.Printf("   Exact Projects:  %d / %d (%.2f%%)\n", m.ExactProjects, m.TotalProjects, exactRate)
	}
	fmt.Printf("   Missed Findings: %d\n", m.MissedFindings)
	fmt.Printf("   Extra Findings:  %d\n", m.ExtraFindings)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.AnalysisCount > 0 {
		avgMs := float64(m.AnalysisTimeMs) / float64(m.AnalysisCount)
		aps := float64(m.AnalysisCount) / duration.Seconds()
		fmt.Printf("   Avg Analysis:     %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f analyses/sec\n", aps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	switch {
	case m.TotalErrors > 0:
		fmt.Println("   ❌ Requests failed - results are partial, check the server logs")
	case m.MissedFindings == 0 && m.ExtraFindings == 0:
		fmt.Println("   ✅ Every planted irregularity was found, and nothing else")
	case m.MissedFindings > 0:
		fmt.Println("   ❌ Planted irregularities were missed - the engine lost findings")
	default:
		fmt.Println("   ⚠️  Findings beyond the planted set - generator collision or engine drift")
	}

	fmt.Println()
}

func printDetectionRow(check string, planted, found int64) {
	mark := "✓"
	if planted != found {
		mark = "✗"
	}
	fmt.Printf("   %-24s %8d  %8d   %s\n", check, planted, found, mark)
}
