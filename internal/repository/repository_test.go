package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetUpload", func(t *testing.T) {
		up := &domain.Upload{
			ID:        "up-001",
			ProjectID: "proj-001",
			Template:  domain.TemplateGeneralLedger,
			Name:      "GL FY24",
			RowCount:  2,
			Rows: domain.Dataset{
				{"Journal Entry Number": "JE-1", "Amount": 100.0},
				{"Journal Entry Number": "JE-2", "Amount": 250.0},
			},
			UploadedAt: time.Now().UTC(),
		}

		if err := repo.SaveUpload(ctx, tenantID, up); err != nil {
			t.Fatalf("SaveUpload failed: %v", err)
		}

		retrieved, err := repo.GetUpload(ctx, tenantID, up.ID)
		if err != nil {
			t.Fatalf("GetUpload failed: %v", err)
		}

		if retrieved.ID != up.ID {
			t.Errorf("expected ID %s, got %s", up.ID, retrieved.ID)
		}
		if retrieved.Template != domain.TemplateGeneralLedger {
			t.Errorf("expected Template %s, got %s", domain.TemplateGeneralLedger, retrieved.Template)
		}
		if retrieved.RowCount != up.RowCount {
			t.Errorf("expected RowCount %d, got %d", up.RowCount, retrieved.RowCount)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if len(retrieved.Rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(retrieved.Rows))
		}
		if retrieved.Rows[0]["Journal Entry Number"] != "JE-1" {
			t.Errorf("expected first row JE-1, got %v", retrieved.Rows[0]["Journal Entry Number"])
		}
	})

	t.Run("ListUploadsNewestFirst", func(t *testing.T) {
		up2 := &domain.Upload{
			ID:         "up-002",
			ProjectID:  "proj-001",
			Template:   domain.TemplateSalesRegister,
			Name:       "Sales FY24",
			RowCount:   1,
			Rows:       domain.Dataset{{"Invoice Number": "INV001"}},
			UploadedAt: time.Now().UTC().Add(1 * time.Hour),
		}
		if err := repo.SaveUpload(ctx, tenantID, up2); err != nil {
			t.Fatalf("SaveUpload failed: %v", err)
		}

		uploads, err := repo.ListUploads(ctx, tenantID, "proj-001")
		if err != nil {
			t.Fatalf("ListUploads failed: %v", err)
		}

		if len(uploads) != 2 {
			t.Fatalf("expected 2 uploads, got %d", len(uploads))
		}
		if uploads[0].ID != "up-002" {
			t.Errorf("expected newest upload first, got %s", uploads[0].ID)
		}
		// Listings omit the row payload
		if uploads[0].Rows != nil {
			t.Errorf("expected listing without rows, got %d rows", len(uploads[0].Rows))
		}
	})

	t.Run("DeleteUpload", func(t *testing.T) {
		up := &domain.Upload{
			ID:         "up-del",
			ProjectID:  "proj-del",
			Template:   domain.TemplateGeneralLedger,
			RowCount:   0,
			UploadedAt: time.Now().UTC(),
		}
		if err := repo.SaveUpload(ctx, tenantID, up); err != nil {
			t.Fatalf("SaveUpload failed: %v", err)
		}

		if err := repo.DeleteUpload(ctx, tenantID, "up-del"); err != nil {
			t.Fatalf("DeleteUpload failed: %v", err)
		}

		_, err := repo.GetUpload(ctx, tenantID, "up-del")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}

		if err := repo.DeleteUpload(ctx, tenantID, "up-del"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for second delete, got: %v", err)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		// Try to get upload from different tenant
		_, err := repo.GetUpload(ctx, otherTenant, "up-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}

		uploads, err := repo.ListUploads(ctx, otherTenant, "proj-001")
		if err != nil {
			t.Fatalf("ListUploads failed: %v", err)
		}
		if len(uploads) != 0 {
			t.Errorf("expected no uploads for different tenant, got %d", len(uploads))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		up := &domain.Upload{ID: "up-test"}

		err := repo.SaveUpload(ctx, "", up)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetUpload(ctx, "", "up-001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		err = repo.DeleteUpload(ctx, "", "up-001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("SaveAndGetAnalysis", func(t *testing.T) {
		analysis := &domain.Analysis{
			ID:        "an-001",
			ProjectID: "proj-001",
			Status:    domain.StatusFlagged,
			Timestamp: time.Now().UTC(),
			CheckRuns: []domain.CheckRun{
				{CheckID: "round-amounts", FindingCount: 3, ProcessMs: 12},
			},
			Categories: []domain.CategorySummary{
				{Category: "general_ledger", Checks: 1, Findings: 3},
			},
			Metadata: domain.AnalysisMetadata{TraceID: "trace-001", ChecksRun: 1, FindingCount: 3},
		}

		if err := repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}

		retrieved, err := repo.GetAnalysis(ctx, tenantID, analysis.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}

		if retrieved.ID != analysis.ID {
			t.Errorf("expected ID %s, got %s", analysis.ID, retrieved.ID)
		}
		if retrieved.Status != domain.StatusFlagged {
			t.Errorf("expected Status %s, got %s", domain.StatusFlagged, retrieved.Status)
		}
		if len(retrieved.CheckRuns) != 1 {
			t.Fatalf("expected 1 check run, got %d", len(retrieved.CheckRuns))
		}
		if retrieved.CheckRuns[0].CheckID != "round-amounts" {
			t.Errorf("expected check round-amounts, got %s", retrieved.CheckRuns[0].CheckID)
		}
		if retrieved.Metadata.TraceID != "trace-001" {
			t.Errorf("expected TraceID trace-001, got %s", retrieved.Metadata.TraceID)
		}
	})

	t.Run("ListAnalyses", func(t *testing.T) {
		second := &domain.Analysis{
			ID:        "an-002",
			ProjectID: "proj-001",
			Status:    domain.StatusClean,
			Timestamp: time.Now().UTC().Add(1 * time.Hour),
			Metadata:  domain.AnalysisMetadata{ChecksRun: 2},
		}
		if err := repo.SaveAnalysis(ctx, tenantID, second); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}

		analyses, err := repo.ListAnalyses(ctx, tenantID, "proj-001")
		if err != nil {
			t.Fatalf("ListAnalyses failed: %v", err)
		}

		if len(analyses) != 2 {
			t.Fatalf("expected 2 analyses, got %d", len(analyses))
		}
		if analyses[0].ID != "an-002" {
			t.Errorf("expected newest analysis first, got %s", analyses[0].ID)
		}
		if analyses[0].Metadata.ChecksRun != 2 {
			t.Errorf("expected metadata on listing, got ChecksRun %d", analyses[0].Metadata.ChecksRun)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetUpload(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetAnalysis(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
