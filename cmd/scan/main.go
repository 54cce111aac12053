// Scan - Offline ledger scanning against the Kestrel check catalog.
//
// Usage:
//   go run cmd/scan/main.go -data general_ledger=gl.csv
//   go run cmd/scan/main.go -data receivables=ar.csv -data sales_register=sales.csv -checks high-dso
//
// This tool:
//   1. Reads template CSV files (template=path pairs)
//   2. Runs every check the loaded templates can feed, locally
//   3. Prints each check's findings with keys and magnitudes
//   4. Exits non-zero when any check produced findings
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/checks"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/report"
)

// dataFlags collects repeatable -data template=path pairs.
type dataFlags []string

func (d *dataFlags) String() string {
	return strings.Join(*d, ",")
}

func (d *dataFlags) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	var data dataFlags
	flag.Var(&data, "data", "Dataset as template=path (repeatable)")
	checksFlag := flag.String("checks", "", "Comma-separated check ids (empty = all runnable)")
	configPath := flag.String("config", "", "Path to JSON file with per-check config overrides")
	workers := flag.Int("workers", 4, "Concurrent check workers")
	top := flag.Int("top", 10, "Findings to print per check (0 = all)")
	verbose := flag.Bool("verbose", false, "Print the rows backing each finding")
	jsonOut := flag.Bool("json", false, "Emit the raw analysis as JSON")
	flag.Parse()

	// Keep engine logs out of the report
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if len(data) == 0 {
		fmt.Println("Usage: scan -data template=path [-data template=path ...]")
		fmt.Println("\nTemplates:")
		for _, t := range domain.AllTemplates() {
			fmt.Printf("  %s\n", t)
		}
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	registry, err := checks.Builtin()
	if err != nil {
		fmt.Printf("ERROR: failed to assemble check catalog: %v\n", err)
		os.Exit(2)
	}

	if !*jsonOut {
		fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
		fmt.Println("║              KESTREL SCAN - Offline Ledger Checks             ║")
		fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
		fmt.Println()
		fmt.Println("Datasets:")
	}

	// Load datasets
	inputs := make(domain.Inputs)
	rowCount := 0
	for _, pair := range data {
		tplName, path, ok := strings.Cut(pair, "=")
		if !ok {
			fmt.Printf("ERROR: -data needs template=path, got %q\n", pair)
			os.Exit(2)
		}

		tpl := domain.Template(tplName)
		if !tpl.Valid() {
			fmt.Printf("ERROR: unknown template %q\n", tplName)
			os.Exit(2)
		}

		rows, err := loadCSV(path)
		if err != nil {
			fmt.Printf("ERROR: failed to read %s: %v\n", path, err)
			os.Exit(2)
		}

		inputs[tpl] = rows
		rowCount += len(rows)
		if !*jsonOut {
			fmt.Printf("  ✓ %-22s %6d rows  (%s)\n", tpl, len(rows), path)
		}
	}

	// Resolve checks to run
	var checkIDs []string
	if *checksFlag != "" {
		for _, id := range strings.Split(*checksFlag, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := registry.Get(id); !ok {
				fmt.Printf("ERROR: unknown check %q\n", id)
				os.Exit(2)
			}
			checkIDs = append(checkIDs, id)
		}
	} else {
		available := make([]domain.Template, 0, len(inputs))
		for tpl := range inputs {
			available = append(available, tpl)
		}
		for _, def := range registry.Match(available) {
			checkIDs = append(checkIDs, def.ID)
		}
	}

	if len(checkIDs) == 0 {
		fmt.Println("\nNo checks runnable with the loaded templates.")
		os.Exit(2)
	}

	// Load config overrides
	overrides := make(map[string]domain.CheckConfig)
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Printf("ERROR: failed to read config: %v\n", err)
			os.Exit(2)
		}
		if err := json.Unmarshal(raw, &overrides); err != nil {
			fmt.Printf("ERROR: invalid config JSON: %v\n", err)
			os.Exit(2)
		}
	}

	// Run checks
	if !*jsonOut {
		fmt.Printf("\nRunning %d checks with %d workers...\n", len(checkIDs), *workers)
	}
	start := time.Now()
	engine := checks.NewEngine(registry, *workers)
	runs := engine.RunAll(context.Background(), checkIDs, inputs, overrides)

	analysis := report.NewProcessor().Process(context.Background(), &report.BuildInput{
		TenantID:      "scan",
		ProjectID:     "local",
		CheckRuns:     runs,
		Categories:    registry.Categories(),
		RowsProcessed: rowCount,
		StartTime:     start,
	})

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(analysis)
	} else {
		printResults(analysis, *top, *verbose)
	}

	if report.ShouldFlag(analysis) {
		os.Exit(1)
	}
}

func loadCSV(path string) (domain.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ingest.ParseCSV(file)
}

func printResults(a *domain.Analysis, top int, verbose bool) {
	fmt.Printf("\n📋 CHECK RESULTS\n")
	for _, run := range a.CheckRuns {
		mark := "✓"
		if run.FindingCount > 0 {
			mark = "✗"
		}
		fmt.Printf("   %s %-22s %4d findings  %3d errors  %5d ms\n",
			mark, run.CheckID, run.FindingCount, run.ErrorCount, run.ProcessMs)
	}

	if a.Metadata.FindingCount > 0 {
		fmt.Printf("\n🔍 FINDINGS\n")
		for _, run := range a.CheckRuns {
			if run.FindingCount == 0 {
				continue
			}
			fmt.Printf("   %s\n", run.CheckID)
			for i, f := range run.Result.Summary {
				if top > 0 && i >= top {
					fmt.Printf("     ... %d more\n", run.FindingCount-top)
					break
				}
				fmt.Printf("     %-30s magnitude=%.2f records=%d\n", f.Key, f.Magnitude, len(f.Records))
				if verbose {
					for _, rec := range f.Records {
						line, _ := json.Marshal(rec)
						fmt.Printf("       %s\n", line)
					}
				}
			}
		}
	}

	if a.Metadata.ErrorCount > 0 {
		fmt.Printf("\n⚠️  VALIDATION ERRORS\n")
		for _, run := range a.CheckRuns {
			for _, e := range run.Result.Errors {
				if e.Field != "" {
					fmt.Printf("   %s: %s (%s)\n", run.CheckID, e.Message, e.Field)
				} else {
					fmt.Printf("   %s: %s\n", run.CheckID, e.Message)
				}
			}
		}
	}

	fmt.Printf("\n📊 SUMMARY\n")
	fmt.Printf("   Checks Run:  %d\n", a.Metadata.ChecksRun)
	fmt.Printf("   Findings:    %d\n", a.Metadata.FindingCount)
	fmt.Printf("   Errors:      %d\n", a.Metadata.ErrorCount)
	fmt.Printf("   Rows:        %d\n", a.Metadata.RowsProcessed)
	fmt.Printf("   Duration:    %dms\n", a.Metadata.TotalMs)
	fmt.Printf("   Status:      %s\n", a.Status)
	fmt.Println()
}
