package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/checks"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/report"
)

// datasetTTL is how long uploaded rows stay cached. Uploads are
// immutable, so a stale cached copy can only occur after a delete.
const datasetTTL = 15 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *checks.Engine
	processor *report.Processor
	version   string
	mode      domain.ExecutionMode
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *checks.Engine, processor *report.Processor, version string, mode domain.ExecutionMode) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		processor: processor,
		version:   version,
		mode:      mode,
	}
}

// UploadResponse is the response for POST /uploads.
type UploadResponse struct {
	UploadID   string          `json:"uploadId"`
	ProjectID  string          `json:"projectId"`
	Template   domain.Template `json:"template"`
	Name       string          `json:"name"`
	RowCount   int             `json:"rowCount"`
	UploadedAt time.Time       `json:"uploadedAt"`
}

// CheckInfo is the marshalable view of a catalog entry. Run functions
// never cross the API boundary.
type CheckInfo struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Category          string             `json:"category"`
	DefaultConfig     domain.CheckConfig `json:"defaultConfig"`
	RequiredTemplates []domain.Template  `json:"requiredTemplates"`
}

func checkInfos(defs []*domain.CheckDefinition) []CheckInfo {
	out := make([]CheckInfo, len(defs))
	for i, def := range defs {
		out[i] = CheckInfo{
			ID:                def.ID,
			Name:              def.Name,
			Description:       def.Description,
			Category:          def.Category,
			DefaultConfig:     def.DefaultConfig,
			RequiredTemplates: def.RequiredTemplates,
		}
	}
	return out
}

// CreateUpload handles POST /uploads. JSON bodies carry the rows
// inline; a text/csv body carries raw CSV with template, projectId and
// name passed as query parameters.
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	req, rows, errMsg := h.parseUpload(r)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": errMsg,
		})
		return
	}

	// Validate required fields
	if req.ProjectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "projectId is required",
		})
		return
	}
	if !req.Template.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown template %q", req.Template),
		})
		return
	}

	upload := req.ToUpload(tenantID, rows)
	upload.ID = uuid.New().String()
	if upload.Name == "" {
		upload.Name = string(req.Template)
	}

	// Save upload if repository is available
	if h.repo != nil {
		if err := h.repo.SaveUpload(ctx, tenantID, upload); err != nil {
			slog.Error("failed to save upload", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save upload",
			})
			return
		}
	}

	// Cache rows for upcoming analyses
	if h.cache != nil {
		if err := h.cache.SetDataset(ctx, tenantID, upload.ID, rows, datasetTTL); err != nil {
			slog.Warn("failed to cache dataset", "upload_id", upload.ID, "error", err)
		}
	}

	// Announce the ingestion (best effort)
	if h.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"uploadId":  upload.ID,
			"projectId": upload.ProjectID,
			"template":  upload.Template,
			"rowCount":  upload.RowCount,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicUploadIngested, payload); err != nil {
			slog.Warn("failed to publish upload event", "upload_id", upload.ID, "error", err)
		}
	}

	slog.Info("upload ingested",
		"upload_id", upload.ID,
		"project_id", upload.ProjectID,
		"template", upload.Template,
		"rows", upload.RowCount,
	)

	writeJSON(w, http.StatusCreated, UploadResponse{
		UploadID:   upload.ID,
		ProjectID:  upload.ProjectID,
		Template:   upload.Template,
		Name:       upload.Name,
		RowCount:   upload.RowCount,
		UploadedAt: upload.UploadedAt,
	})
}

// parseUpload extracts an upload request and its parsed rows from the
// HTTP request. A non-empty errMsg means a 400 with that message.
func (h *Handler) parseUpload(r *http.Request) (req domain.UploadRequest, rows domain.Dataset, errMsg string) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if contentType == "text/csv" {
		q := r.URL.Query()
		req.ProjectID = q.Get("projectId")
		req.Template = domain.Template(q.Get("template"))
		req.Name = q.Get("name")

		parsed, err := ingest.ParseCSV(r.Body)
		if err != nil {
			return req, nil, "invalid CSV: " + err.Error()
		}
		return req, parsed, ""
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, "invalid JSON request body"
	}

	parsed, err := ingest.ParseJSON(req.Rows)
	if err != nil {
		if errors.Is(err, ingest.ErrNotArray) {
			return req, nil, domain.MsgDataNotArray
		}
		return req, nil, "invalid rows: " + err.Error()
	}
	return req, parsed, ""
}

// GetUpload retrieves an upload, including its rows, by ID.
func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	uploadID := chi.URLParam(r, "id")

	if uploadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "upload id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	upload, err := h.repo.GetUpload(ctx, tenantID, uploadID)
	if err != nil {
		slog.Error("failed to get upload", "id", uploadID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "upload not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, upload)
}

// DeleteUpload removes an upload. Cached rows are left to expire.
func (h *Handler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	uploadID := chi.URLParam(r, "id")

	if uploadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "upload id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteUpload(ctx, tenantID, uploadID); err != nil {
		slog.Error("failed to delete upload", "id", uploadID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "upload not found",
		})
		return
	}

	slog.Info("upload deleted", "upload_id", uploadID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "upload deleted",
	})
}

// ListUploads returns a project's uploads, newest first, without rows.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	projectID := chi.URLParam(r, "projectID")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	uploads, err := h.repo.ListUploads(ctx, tenantID, projectID)
	if err != nil {
		slog.Error("failed to list uploads", "project_id", projectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list uploads",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": uploads,
		"count":   len(uploads),
	})
}

// ListChecks returns the full check catalog.
func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	infos := checkInfos(h.engine.Registry().All())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"checks": infos,
		"count":  len(infos),
		"source": "builtin",
	})
}

// GetCheck retrieves a catalog entry by ID.
func (h *Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	checkID := chi.URLParam(r, "id")

	if checkID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "check id is required",
		})
		return
	}

	def, ok := h.engine.Registry().Get(checkID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "check not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, checkInfos([]*domain.CheckDefinition{def})[0])
}

// ListApplicableChecks returns the checks runnable with the templates a
// project has uploaded so far.
func (h *Handler) ListApplicableChecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	projectID := chi.URLParam(r, "projectID")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	uploads, err := h.repo.ListUploads(ctx, tenantID, projectID)
	if err != nil {
		slog.Error("failed to list uploads", "project_id", projectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list uploads",
		})
		return
	}

	seen := make(map[domain.Template]bool)
	var templates []domain.Template
	for _, u := range uploads {
		if !seen[u.Template] {
			seen[u.Template] = true
			templates = append(templates, u.Template)
		}
	}

	infos := checkInfos(h.engine.Registry().Match(templates))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"checks":    infos,
		"count":     len(infos),
		"templates": templates,
	})
}

// ListTemplates returns the dataset template catalog.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := domain.AllTemplates()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// CreateAnalysis handles POST /analyses. Depending on the execution
// mode the checks either run inside this request or are queued for the
// worker; callers can force queueing with "async": true.
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var req domain.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate required fields
	if req.ProjectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "projectId is required",
		})
		return
	}
	for _, id := range req.CheckIDs {
		if _, ok := h.engine.Registry().Get(id); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("unknown check %q", id),
			})
			return
		}
	}

	if req.Async || h.mode == domain.ModeAsync {
		h.enqueueAnalysis(w, r, &req, tenantID, traceID)
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	// Synchronous execution (Community tier / direct mode)

	// 1. Assemble check inputs from the project's uploads
	inputs, rowCount, err := h.loadInputs(ctx, tenantID, req.ProjectID)
	if err != nil {
		slog.Error("failed to load project datasets", "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load project datasets",
		})
		return
	}
	if len(inputs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "project has no uploads",
		})
		return
	}

	// 2. Resolve the checks to run
	checkIDs := req.CheckIDs
	if len(checkIDs) == 0 {
		available := make([]domain.Template, 0, len(inputs))
		for tpl := range inputs {
			available = append(available, tpl)
		}
		for _, def := range h.engine.Registry().Match(available) {
			checkIDs = append(checkIDs, def.ID)
		}
	}
	if len(checkIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no checks runnable with the uploaded templates",
		})
		return
	}

	// 3. Execute checks
	runs := h.engine.RunAll(ctx, checkIDs, inputs, req.Configs)

	// 4. Build the analysis
	analysis := h.processor.Process(ctx, &report.BuildInput{
		TenantID:      tenantID,
		ProjectID:     req.ProjectID,
		TraceID:       traceID,
		CheckRuns:     runs,
		Categories:    h.engine.Registry().Categories(),
		RowsProcessed: rowCount,
		StartTime:     start,
	})

	// 5. Save analysis
	if err := h.repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
		slog.Error("failed to save analysis", "error", err)
	}

	// 6. Announce completion (best effort)
	h.publishAnalysisEvents(ctx, tenantID, analysis)

	writeJSON(w, http.StatusOK, analysis.ToResponse())
}

// enqueueAnalysis publishes the request for the worker and returns 202.
func (h *Handler) enqueueAnalysis(w http.ResponseWriter, r *http.Request, req *domain.AnalysisRequest, tenantID, traceID string) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	job := domain.AnalysisJob{
		AnalysisID:  uuid.New().String(),
		ProjectID:   req.ProjectID,
		CheckIDs:    req.CheckIDs,
		Configs:     req.Configs,
		TraceID:     traceID,
		RequestedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode analysis job",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), tenantID, domain.TopicAnalysisRequested, payload); err != nil {
		slog.Error("failed to enqueue analysis", "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to enqueue analysis",
		})
		return
	}

	slog.Info("analysis queued",
		"analysis_id", job.AnalysisID,
		"project_id", job.ProjectID,
		"checks", len(job.CheckIDs),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"analysisId": job.AnalysisID,
		"status":     "PENDING",
		"message":    "Analysis queued. Poll GET /analyses/{id} for the result.",
	})
}

// publishAnalysisEvents emits completed and, when flagged, flagged
// events. Failures are logged, never surfaced.
func (h *Handler) publishAnalysisEvents(ctx context.Context, tenantID string, analysis *domain.Analysis) {
	if h.bus == nil {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"analysisId": analysis.ID,
		"projectId":  analysis.ProjectID,
		"status":     analysis.Status,
		"findings":   analysis.Metadata.FindingCount,
	})

	if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Warn("failed to publish analysis completed", "analysis_id", analysis.ID, "error", err)
	}
	if report.ShouldFlag(analysis) {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisFlagged, payload); err != nil {
			slog.Warn("failed to publish analysis flagged", "analysis_id", analysis.ID, "error", err)
		}
	}
}

// loadInputs assembles check inputs from a project's uploads. The most
// recent upload per template wins. Rows come from the cache when
// possible and fall back to the repository.
func (h *Handler) loadInputs(ctx context.Context, tenantID, projectID string) (domain.Inputs, int, error) {
	uploads, err := h.repo.ListUploads(ctx, tenantID, projectID)
	if err != nil {
		return nil, 0, err
	}

	inputs := make(domain.Inputs)
	rowCount := 0
	for _, u := range uploads { // newest first
		if _, seen := inputs[u.Template]; seen {
			continue
		}
		rows, err := h.loadRows(ctx, tenantID, u.ID)
		if err != nil {
			return nil, 0, err
		}
		inputs[u.Template] = rows
		rowCount += len(rows)
	}
	return inputs, rowCount, nil
}

// loadRows fetches one upload's rows, cache first.
func (h *Handler) loadRows(ctx context.Context, tenantID, uploadID string) (domain.Dataset, error) {
	if h.cache != nil {
		if rows, err := h.cache.GetDataset(ctx, tenantID, uploadID); err == nil && rows != nil {
			return rows, nil
		}
	}

	full, err := h.repo.GetUpload(ctx, tenantID, uploadID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetDataset(ctx, tenantID, uploadID, full.Rows, datasetTTL)
	}
	return full.Rows, nil
}

// GetAnalysis retrieves an analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	analysis, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		slog.Error("failed to get analysis", "id", analysisID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// ListAnalyses returns a project's analyses, newest first, without
// per-check results.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	projectID := chi.URLParam(r, "projectID")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	analyses, err := h.repo.ListAnalyses(ctx, tenantID, projectID)
	if err != nil {
		slog.Error("failed to list analyses", "project_id", projectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list analyses",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
