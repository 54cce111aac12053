// Package report assembles executed check runs into an analysis:
// status, per-category rollup and processing metadata.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// EngineVersion is stamped into every analysis.
const EngineVersion = "kestrel-1.0"

// Processor builds the stored Analysis from a batch of check runs.
type Processor struct{}

// NewProcessor creates a report processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// BuildInput contains everything an analysis record needs.
type BuildInput struct {
	// AnalysisID is set when the id was allocated at enqueue time.
	// Empty means a fresh id is generated.
	AnalysisID string

	TenantID  string
	ProjectID string
	TraceID   string
	CheckRuns []domain.CheckRun

	// Categories maps check id to its catalog category for the rollup.
	Categories map[string]string

	RowsProcessed int
	StartTime     time.Time
}

// Process aggregates check runs into an Analysis. Status is FLAG as
// soon as any check produced findings, CLEAN otherwise; validation
// errors alone never flag an analysis.
func (p *Processor) Process(ctx context.Context, input *BuildInput) *domain.Analysis {
	id := input.AnalysisID
	if id == "" {
		id = uuid.New().String()
	}

	analysis := &domain.Analysis{
		ID:        id,
		TenantID:  input.TenantID,
		ProjectID: input.ProjectID,
		Timestamp: time.Now().UTC(),
		CheckRuns: input.CheckRuns,
	}

	var findings, errors int
	catChecks := make(map[string]int)
	catFindings := make(map[string]int)

	for _, run := range input.CheckRuns {
		findings += run.FindingCount
		errors += run.ErrorCount

		cat := input.Categories[run.CheckID]
		if cat == "" {
			cat = "uncategorized"
		}
		catChecks[cat]++
		catFindings[cat] += run.FindingCount
	}

	if findings > 0 {
		analysis.Status = domain.StatusFlagged
	} else {
		analysis.Status = domain.StatusClean
	}

	cats := make([]string, 0, len(catChecks))
	for c := range catChecks {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		analysis.Categories = append(analysis.Categories, domain.CategorySummary{
			Category: c,
			Checks:   catChecks[c],
			Findings: catFindings[c],
		})
	}

	var totalMs int64
	if !input.StartTime.IsZero() {
		totalMs = time.Since(input.StartTime).Milliseconds()
	}
	analysis.Metadata = domain.AnalysisMetadata{
		TraceID:       input.TraceID,
		ChecksRun:     len(input.CheckRuns),
		FindingCount:  findings,
		ErrorCount:    errors,
		RowsProcessed: input.RowsProcessed,
		TotalMs:       totalMs,
		EngineVersion: EngineVersion,
	}

	return analysis
}

// ShouldFlag reports whether the analysis needs reviewer attention.
func ShouldFlag(a *domain.Analysis) bool {
	return a.Status == domain.StatusFlagged
}
