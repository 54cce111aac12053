package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	registry, err := Builtin()
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return NewEngine(registry, 4)
}

func TestNewEngine(t *testing.T) {
	registry, err := Builtin()
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	if e := NewEngine(registry, 0); e.maxWorkers != 4 {
		t.Errorf("expected default worker limit 4, got %d", e.maxWorkers)
	}
	if e := NewEngine(registry, 8); e.maxWorkers != 8 {
		t.Errorf("expected worker limit 8, got %d", e.maxWorkers)
	}
	if e := NewEngine(registry, 8); e.Registry() != registry {
		t.Error("expected engine to expose its registry")
	}
}

func TestEngineRun(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("UnknownCheck", func(t *testing.T) {
		run := engine.Run(ctx, "no-such-check", nil, nil)

		if run.CheckID != "no-such-check" {
			t.Errorf("expected check id echoed, got %s", run.CheckID)
		}
		if run.ErrorCount != 1 {
			t.Errorf("expected 1 error, got %d", run.ErrorCount)
		}
		if len(run.Result.Errors) != 1 || run.Result.Errors[0].Message != `unknown check "no-such-check"` {
			t.Errorf("expected unknown check error, got %v", run.Result.Errors)
		}
		if len(run.Result.Summary) != 0 {
			t.Errorf("expected no findings, got %v", run.Result.Summary)
		}
	})

	t.Run("MissingRequiredDataset", func(t *testing.T) {
		run := engine.Run(ctx, "invoice-gaps", domain.Inputs{}, nil)

		if run.ErrorCount != 1 {
			t.Fatalf("expected 1 error, got %d", run.ErrorCount)
		}
		e := run.Result.Errors[0]
		if e.Message != domain.MsgDataNotArray {
			t.Errorf("expected %q, got %q", domain.MsgDataNotArray, e.Message)
		}
		if e.Field != "sales_register" {
			t.Errorf("expected field sales_register, got %q", e.Field)
		}
	})

	t.Run("EmptyDatasetIsNotMissing", func(t *testing.T) {
		in := domain.Inputs{domain.TemplateSalesRegister: domain.Dataset{}}
		run := engine.Run(ctx, "invoice-gaps", in, nil)

		if run.ErrorCount != 0 {
			t.Errorf("expected no errors for an empty dataset, got %v", run.Result.Errors)
		}
		if run.FindingCount != 0 {
			t.Errorf("expected no findings, got %d", run.FindingCount)
		}
	})

	t.Run("ConfigOverridesLayerOverDefaults", func(t *testing.T) {
		in := domain.Inputs{domain.TemplateGeneralLedger: domain.Dataset{
			{"Journal Entry Number": "JE-1", "Amount": 1000.0},
		}}

		// 1000 has only three trailing zeros, so the default window
		// of five does not flag it.
		run := engine.Run(ctx, "round-amounts", in, nil)
		if run.FindingCount != 0 {
			t.Fatalf("expected no findings at default config, got %d", run.FindingCount)
		}

		run = engine.Run(ctx, "round-amounts", in, domain.CheckConfig{"digitCount": 3})
		if run.FindingCount != 1 {
			t.Fatalf("expected 1 finding with narrowed window, got %d", run.FindingCount)
		}
		if run.Config.Int("digitCount", 0) != 3 {
			t.Errorf("expected merged digitCount 3, got %v", run.Config["digitCount"])
		}
		if run.Config.String("mode", "") != "round" {
			t.Errorf("expected default mode preserved, got %v", run.Config["mode"])
		}
	})

	t.Run("PanicContained", func(t *testing.T) {
		def := validDefinition("panics")
		def.Run = func(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
			panic("boom")
		}
		registry, err := NewRegistry(def)
		if err != nil {
			t.Fatalf("failed to build registry: %v", err)
		}

		in := domain.Inputs{domain.TemplateGeneralLedger: domain.Dataset{}}
		run := NewEngine(registry, 2).Run(ctx, "panics", in, nil)

		if run.ErrorCount != 1 {
			t.Fatalf("expected 1 error, got %d", run.ErrorCount)
		}
		msg := run.Result.Errors[0].Message
		if !strings.Contains(msg, "check panics failed") || !strings.Contains(msg, "boom") {
			t.Errorf("expected contained panic message, got %q", msg)
		}
		if len(run.Result.Summary) != 0 {
			t.Errorf("expected no findings after panic, got %v", run.Result.Summary)
		}
	})

	t.Run("CountsPopulated", func(t *testing.T) {
		in := domain.Inputs{domain.TemplateSalesRegister: domain.Dataset{
			{"Invoice Number": "INV001"},
			{"Invoice Number": "INV002"},
			{"Invoice Number": "INV004"},
		}}
		run := engine.Run(ctx, "invoice-gaps", in, nil)

		if run.FindingCount != 1 {
			t.Errorf("expected 1 finding, got %d", run.FindingCount)
		}
		if run.ErrorCount != 0 {
			t.Errorf("expected no errors, got %d", run.ErrorCount)
		}
		if run.ProcessMs < 0 {
			t.Errorf("expected non-negative duration, got %d", run.ProcessMs)
		}
	})
}

func TestEngineRunAll(t *testing.T) {
	ctx := context.Background()
	registry, err := Builtin()
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	in := domain.Inputs{
		domain.TemplateGeneralLedger: domain.Dataset{
			{"Journal Entry Number": "JE-1", "Amount": 300000.0, "Narration": "supplies"},
		},
		domain.TemplateSalesRegister: domain.Dataset{
			{"Invoice Number": "INV001"},
			{"Invoice Number": "INV003"},
		},
	}

	t.Run("ResultsInRequestOrder", func(t *testing.T) {
		// More checks than workers, so completion order differs from
		// request order.
		engine := NewEngine(registry, 2)
		ids := []string{
			"round-amounts",
			"narration-keywords",
			"off-calendar-postings",
			"expense-outliers",
			"invoice-gaps",
		}

		runs := engine.RunAll(ctx, ids, in, nil)

		if len(runs) != len(ids) {
			t.Fatalf("expected %d runs, got %d", len(ids), len(runs))
		}
		for i, id := range ids {
			if runs[i].CheckID != id {
				t.Errorf("expected runs[%d] = %s, got %s", i, id, runs[i].CheckID)
			}
		}
	})

	t.Run("OverridesRoutedByCheckID", func(t *testing.T) {
		engine := NewEngine(registry, 4)
		overrides := map[string]domain.CheckConfig{
			"round-amounts": {"digitCount": 2},
		}

		runs := engine.RunAll(ctx, []string{"round-amounts", "invoice-gaps"}, in, overrides)

		if runs[0].Config.Int("digitCount", 0) != 2 {
			t.Errorf("expected override applied to round-amounts, got %v", runs[0].Config["digitCount"])
		}
		if runs[1].Config.String("prefix", "") != "INV" {
			t.Errorf("expected invoice-gaps untouched, got %v", runs[1].Config["prefix"])
		}
	})

	t.Run("UnknownCheckIsolated", func(t *testing.T) {
		engine := NewEngine(registry, 4)

		runs := engine.RunAll(ctx, []string{"invoice-gaps", "no-such-check"}, in, nil)

		if runs[0].ErrorCount != 0 || runs[0].FindingCount != 1 {
			t.Errorf("expected clean invoice-gaps run, got %+v", runs[0])
		}
		if runs[1].ErrorCount != 1 {
			t.Errorf("expected unknown check error, got %+v", runs[1])
		}
	})
}
