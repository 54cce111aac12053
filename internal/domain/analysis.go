package domain

import (
	"fmt"
	"time"
)

// CheckRun is one executed check within an analysis: the effective
// config it ran with and the result it produced.
type CheckRun struct {
	CheckID      string      `json:"checkId"`
	Config       CheckConfig `json:"config"`
	Result       CheckResult `json:"result"`
	FindingCount int         `json:"findingCount"`
	ErrorCount   int         `json:"errorCount"`
	ProcessMs    int64       `json:"processMs"`
}

// Analysis is the outcome of running a set of checks over a project's
// uploaded datasets.
type Analysis struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	ProjectID string    `json:"projectId"`
	Status    string    `json:"status"` // "FLAG" or "CLEAN"
	Timestamp time.Time `json:"timestamp"`

	CheckRuns []CheckRun `json:"checkRuns"`

	// Categories rolls findings up by check category.
	Categories []CategorySummary `json:"categories,omitempty"`

	Metadata AnalysisMetadata `json:"metadata"`
}

// CategorySummary aggregates findings per check category.
type CategorySummary struct {
	Category string `json:"category"`
	Checks   int    `json:"checks"`
	Findings int    `json:"findings"`
}

// AnalysisMetadata contains processing information.
type AnalysisMetadata struct {
	TraceID       string `json:"traceId"`
	ChecksRun     int    `json:"checksRun"`
	FindingCount  int    `json:"findingCount"`
	ErrorCount    int    `json:"errorCount"`
	RowsProcessed int    `json:"rowsProcessed"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// Analysis status constants
const (
	StatusFlagged = "FLAG"  // At least one check produced findings
	StatusClean   = "CLEAN" // No check produced findings
)

// API-friendly status
const (
	StatusPass   = "PASS"
	StatusReview = "REVIEW"
)

// AnalysisResponse is the API response for an analysis run.
type AnalysisResponse struct {
	AnalysisID string           `json:"analysisId"`
	ProjectID  string           `json:"projectId"`
	TenantID   string           `json:"tenantId"`
	Status     string           `json:"status"` // "PASS" or "REVIEW"
	Findings   int              `json:"findings"`
	Reasons    []string         `json:"reasons,omitempty"`
	CheckRuns  []CheckRun       `json:"checkRuns"`
	Metadata   AnalysisMetadata `json:"metadata"`
}

// ToResponse converts an Analysis to an API response.
func (a *Analysis) ToResponse() *AnalysisResponse {
	status := StatusPass
	if a.Status == StatusFlagged {
		status = StatusReview
	}

	var reasons []string
	for _, run := range a.CheckRuns {
		if run.FindingCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%s: %d finding(s)", run.CheckID, run.FindingCount))
		}
	}

	return &AnalysisResponse{
		AnalysisID: a.ID,
		ProjectID:  a.ProjectID,
		TenantID:   a.TenantID,
		Status:     status,
		Findings:   a.Metadata.FindingCount,
		Reasons:    reasons,
		CheckRuns:  a.CheckRuns,
		Metadata:   a.Metadata,
	}
}

// AnalysisRequest is the API payload for starting an analysis.
// Empty CheckIDs means "every check runnable with the project's
// uploaded templates". Configs layers per-check overrides on top of
// each check's defaults.
type AnalysisRequest struct {
	ProjectID string                 `json:"projectId"`
	CheckIDs  []string               `json:"checkIds,omitempty"`
	Configs   map[string]CheckConfig `json:"configs,omitempty"`
	Async     bool                   `json:"async,omitempty"`
}

// AnalysisJob is the queued form of an analysis request. The analysis
// id is allocated before publishing so callers can poll for the result
// while the worker is still running.
type AnalysisJob struct {
	AnalysisID  string                 `json:"analysisId"`
	ProjectID   string                 `json:"projectId"`
	CheckIDs    []string               `json:"checkIds,omitempty"`
	Configs     map[string]CheckConfig `json:"configs,omitempty"`
	TraceID     string                 `json:"traceId,omitempty"`
	RequestedAt time.Time              `json:"requestedAt"`
}
