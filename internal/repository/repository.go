// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveUpload stores an uploaded dataset with tenant isolation.
func (r *SQLRepository) SaveUpload(ctx context.Context, tenantID string, up *domain.Upload) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	rows, _ := json.Marshal(up.Rows)

	query := `
		INSERT INTO uploads (
			id, tenant_id, project_id, template, name,
			row_count, rows, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		up.ID, tenantID, up.ProjectID, string(up.Template), up.Name,
		up.RowCount, string(rows), up.UploadedAt,
	)
	return err
}

// GetUpload retrieves an upload by ID, rows included, with tenant
// isolation.
func (r *SQLRepository) GetUpload(ctx context.Context, tenantID string, uploadID string) (*domain.Upload, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, project_id, template, name,
			   row_count, rows, uploaded_at
		FROM uploads
		WHERE tenant_id = ? AND id = ?
	`

	var up domain.Upload
	var template, rows string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, uploadID).Scan(
		&up.ID, &up.TenantID, &up.ProjectID, &template, &up.Name,
		&up.RowCount, &rows, &up.UploadedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	up.Template = domain.Template(template)
	if rows != "" {
		json.Unmarshal([]byte(rows), &up.Rows)
	}

	return &up, nil
}

// ListUploads retrieves a project's uploads, newest first, with tenant
// isolation. Listings omit the row payload; GetUpload loads it.
func (r *SQLRepository) ListUploads(ctx context.Context, tenantID string, projectID string) ([]*domain.Upload, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, project_id, template, name,
			   row_count, uploaded_at
		FROM uploads
		WHERE tenant_id = ? AND project_id = ?
		ORDER BY uploaded_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*domain.Upload
	for rows.Next() {
		var up domain.Upload
		var template string

		if err := rows.Scan(
			&up.ID, &up.TenantID, &up.ProjectID, &template, &up.Name,
			&up.RowCount, &up.UploadedAt,
		); err != nil {
			return nil, err
		}

		up.Template = domain.Template(template)
		uploads = append(uploads, &up)
	}

	return uploads, rows.Err()
}

// DeleteUpload removes an upload with tenant isolation.
func (r *SQLRepository) DeleteUpload(ctx context.Context, tenantID string, uploadID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		DELETE FROM uploads
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, uploadID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveAnalysis stores an analysis result with tenant isolation.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, analysis *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	checkRuns, _ := json.Marshal(analysis.CheckRuns)
	categories, _ := json.Marshal(analysis.Categories)
	metadata, _ := json.Marshal(analysis.Metadata)

	query := `
		INSERT INTO analyses (
			id, tenant_id, project_id, status, timestamp,
			check_runs, categories, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, tenantID, analysis.ProjectID, analysis.Status, analysis.Timestamp,
		string(checkRuns), string(categories), string(metadata),
	)
	return err
}

// GetAnalysis retrieves an analysis by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, project_id, status, timestamp,
			   check_runs, categories, metadata
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var analysis domain.Analysis
	var checkRuns, categories, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID).Scan(
		&analysis.ID, &analysis.TenantID, &analysis.ProjectID, &analysis.Status, &analysis.Timestamp,
		&checkRuns, &categories, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(checkRuns), &analysis.CheckRuns)
	json.Unmarshal([]byte(categories), &analysis.Categories)
	json.Unmarshal([]byte(metadata), &analysis.Metadata)

	return &analysis, nil
}

// ListAnalyses retrieves a project's analyses, newest first, with
// tenant isolation. Listings omit per-check results; GetAnalysis
// loads them.
func (r *SQLRepository) ListAnalyses(ctx context.Context, tenantID string, projectID string) ([]*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, project_id, status, timestamp, metadata
		FROM analyses
		WHERE tenant_id = ? AND project_id = ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		var analysis domain.Analysis
		var metadata string

		if err := rows.Scan(
			&analysis.ID, &analysis.TenantID, &analysis.ProjectID,
			&analysis.Status, &analysis.Timestamp, &metadata,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(metadata), &analysis.Metadata)
		analyses = append(analyses, &analysis)
	}

	return analyses, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
