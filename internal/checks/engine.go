package checks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var tracer = otel.Tracer("kestrel-engine")

// Engine executes registry checks over uploaded datasets. Check
// functions are pure, so the engine's job is bookkeeping: config
// merging, input guarding, panic containment and timing.
type Engine struct {
	registry   *Registry
	maxWorkers int
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Engine{registry: registry, maxWorkers: maxWorkers}
}

// Run executes one check by id with overrides layered over the check's
// default config. Every failure mode surfaces inside the returned
// CheckRun; Run never panics and never returns a Go error.
func (e *Engine) Run(ctx context.Context, checkID string, in domain.Inputs, overrides domain.CheckConfig) domain.CheckRun {
	start := time.Now()

	def, ok := e.registry.Get(checkID)
	if !ok {
		return domain.CheckRun{
			CheckID:    checkID,
			Config:     overrides,
			Result:     domain.FatalResult(fmt.Sprintf("unknown check %q", checkID), ""),
			ErrorCount: 1,
			ProcessMs:  time.Since(start).Milliseconds(),
		}
	}

	_, span := tracer.Start(ctx, "engine.run",
		trace.WithAttributes(
			attribute.String("check.id", def.ID),
			attribute.String("check.category", def.Category),
		))
	defer span.End()

	cfg := def.DefaultConfig.Merge(overrides)
	run := domain.CheckRun{CheckID: def.ID, Config: cfg}

	// A required dataset that is absent is the single fatal input
	// condition: the check body never runs.
	for _, tpl := range def.RequiredTemplates {
		if in[tpl] == nil {
			run.Result = domain.FatalResult(domain.MsgDataNotArray, string(tpl))
			run.ErrorCount = 1
			run.ProcessMs = time.Since(start).Milliseconds()
			return run
		}
	}

	run.Result = e.safeRun(def, in, cfg)
	run.FindingCount = len(run.Result.Summary)
	run.ErrorCount = len(run.Result.Errors)
	run.ProcessMs = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("check.findings", run.FindingCount),
		attribute.Int("check.errors", run.ErrorCount),
	)

	slog.Debug("check executed",
		"checkId", def.ID,
		"findings", run.FindingCount,
		"errors", run.ErrorCount,
		"durationMs", run.ProcessMs,
	)
	return run
}

// safeRun shields the engine from a panicking check. A recovered panic
// becomes a single errors entry, keeping the return-errors contract.
func (e *Engine) safeRun(def *domain.CheckDefinition, in domain.Inputs, cfg domain.CheckConfig) (result domain.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("check panicked", "checkId", def.ID, "panic", r)
			result = domain.FatalResult(fmt.Sprintf("check %s failed: %v", def.ID, r), "")
		}
	}()
	return def.Run(in, cfg)
}

// RunAll executes the requested checks in parallel, bounded by the
// worker limit. Checks only read the shared datasets, so concurrent
// execution is safe. Results come back in request order.
func (e *Engine) RunAll(ctx context.Context, checkIDs []string, in domain.Inputs, overrides map[string]domain.CheckConfig) []domain.CheckRun {
	runs := make([]domain.CheckRun, len(checkIDs))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, id := range checkIDs {
		wg.Add(1)
		go func(idx int, checkID string) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			runs[idx] = e.Run(ctx, checkID, in, overrides[checkID])
		}(i, id)
	}

	wg.Wait()
	return runs
}

// Registry returns the catalog the engine executes.
func (e *Engine) Registry() *Registry {
	return e.registry
}
