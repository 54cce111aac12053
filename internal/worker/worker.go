// Package worker provides async analysis processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/checks"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/report"
)

// datasetTTL is how long loaded rows stay cached after a worker run.
const datasetTTL = 15 * time.Minute

// Worker processes analysis jobs from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	engine    *checks.Engine
	processor *report.Processor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *checks.Engine, processor *report.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		engine:    engine,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing analysis jobs for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
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

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAnalysisRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAnalysisRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processAnalysis(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAnalysisRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAnalysis(ctx, msg.TenantID, msg)
}

// processAnalysis runs one queued analysis job end to end.
func (w *Worker) processAnalysis(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	// Parse message
	var job domain.AnalysisJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		slog.Error("failed to parse analysis job",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := job.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing analysis",
		"analysis_id", job.AnalysisID,
		"project_id", job.ProjectID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Assemble check inputs from the project's uploads
	inputs, rowCount, err := w.loadInputs(ctx, tenantID, job.ProjectID)
	if err != nil {
		slog.Error("failed to load project datasets",
			"analysis_id", job.AnalysisID,
			"project_id", job.ProjectID,
			"error", err,
		)
		return err
	}

	// 2. Resolve the checks to run. A project without uploads still
	// produces a stored analysis so pollers get a terminal answer.
	checkIDs := job.CheckIDs
	if len(checkIDs) == 0 {
		available := make([]domain.Template, 0, len(inputs))
		for tpl := range inputs {
			available = append(available, tpl)
		}
		for _, def := range w.engine.Registry().Match(available) {
			checkIDs = append(checkIDs, def.ID)
		}
	}

	// 3. Execute checks
	var runs []domain.CheckRun
	if len(checkIDs) > 0 {
		runs = w.engine.RunAll(ctx, checkIDs, inputs, job.Configs)
	}

	// 4. Build the analysis
	analysis := w.processor.Process(ctx, &report.BuildInput{
		AnalysisID:    job.AnalysisID,
		TenantID:      tenantID,
		ProjectID:     job.ProjectID,
		TraceID:       traceID,
		CheckRuns:     runs,
		Categories:    w.engine.Registry().Categories(),
		RowsProcessed: rowCount,
		StartTime:     start,
	})

	// 5. Save analysis
	if w.repo != nil {
		if err := w.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			slog.Error("failed to save analysis",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	// 6. Publish completion
	resultPayload, _ := json.Marshal(map[string]any{
		"analysisId": analysis.ID,
		"projectId":  analysis.ProjectID,
		"status":     analysis.Status,
		"findings":   analysis.Metadata.FindingCount,
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis completed",
			"analysis_id", analysis.ID,
			"error", err,
		)
	}

	// 7. If flagged, publish to the flagged topic
	if report.ShouldFlag(analysis) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisFlagged, resultPayload); err != nil {
			slog.Error("failed to publish analysis flagged",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	slog.Info("analysis processed",
		"analysis_id", analysis.ID,
		"project_id", job.ProjectID,
		"tenant_id", tenantID,
		"status", analysis.Status,
		"findings", analysis.Metadata.FindingCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// loadInputs assembles check inputs from a project's uploads. The most
// recent upload per template wins. Rows come from the cache when
// possible and fall back to the repository.
func (w *Worker) loadInputs(ctx context.Context, tenantID, projectID string) (domain.Inputs, int, error) {
	uploads, err := w.repo.ListUploads(ctx, tenantID, projectID)
	if err != nil {
		return nil, 0, err
	}

	inputs := make(domain.Inputs)
	rowCount := 0
	for _, u := range uploads { // newest first
		if _, seen := inputs[u.Template]; seen {
			continue
		}
		rows, err := w.loadRows(ctx, tenantID, u.ID)
		if err != nil {
			return nil, 0, err
		}
		inputs[u.Template] = rows
		rowCount += len(rows)
	}
	return inputs, rowCount, nil
}

// loadRows fetches one upload's rows, cache first.
func (w *Worker) loadRows(ctx context.Context, tenantID, uploadID string) (domain.Dataset, error) {
	if w.cache != nil {
		if rows, err := w.cache.GetDataset(ctx, tenantID, uploadID); err == nil && rows != nil {
			return rows, nil
		}
	}

	full, err := w.repo.GetUpload(ctx, tenantID, uploadID)
	if err != nil {
		return nil, err
	}

	if w.cache != nil {
		_ = w.cache.SetDataset(ctx, tenantID, uploadID, full.Rows, datasetTTL)
	}
	return full.Rows, nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
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

	slog.Info("workers stopped")
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
