package domain

import (
	"encoding/json"
	"time"
)

// Template identifies the schema of an uploaded ledger dataset.
// Checks declare which templates they need; a check only becomes
// available once every required template has been uploaded.
type Template string

// Supported dataset templates.
const (
	TemplateGeneralLedger    Template = "general_ledger"
	TemplateSalesRegister    Template = "sales_register"
	TemplatePurchaseRegister Template = "purchase_register"
	TemplatePayrollRegister  Template = "payroll_register"
	TemplateReceivables      Template = "receivables"
	TemplatePayables         Template = "payables"
	TemplateCustomerListing  Template = "customer_listing"
	TemplateFixedAssets      Template = "fixed_asset_register"
	TemplateInventory        Template = "inventory_register"
)

// AllTemplates returns the full template catalog in display order.
func AllTemplates() []Template {
	return []Template{
		TemplateGeneralLedger,
		TemplateSalesRegister,
		TemplatePurchaseRegister,
		TemplatePayrollRegister,
		TemplateReceivables,
		TemplatePayables,
		TemplateCustomerListing,
		TemplateFixedAssets,
		TemplateInventory,
	}
}

// Valid reports whether t is a known template.
func (t Template) Valid() bool {
	for _, known := range AllTemplates() {
		if t == known {
			return true
		}
	}
	return false
}

// Record is one ledger row: field label (e.g. "Invoice Number") to a
// scalar value. Values are string, float64, bool, time.Time or nil.
type Record map[string]any

// Dataset is an ordered collection of records. Checks treat datasets
// as read-only; anything that must reorder works on a copy.
type Dataset []Record

// Inputs maps each required template to its dataset for one check run.
type Inputs map[Template]Dataset

// Upload is a stored ledger dataset belonging to a client project.
type Upload struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	ProjectID  string    `json:"projectId"`
	Template   Template  `json:"template"`
	Name       string    `json:"name"`
	RowCount   int       `json:"rowCount"`
	Rows       Dataset   `json:"rows,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// UploadRequest is the API payload for dataset ingestion. Rows stays
// raw so the ingest layer can reject non-array payloads uniformly.
type UploadRequest struct {
	ProjectID string          `json:"projectId"`
	Template  Template        `json:"template"`
	Name      string          `json:"name"`
	Rows      json.RawMessage `json:"rows"`
}

// ToUpload converts a request with parsed rows to an Upload.
func (r *UploadRequest) ToUpload(tenantID string, rows Dataset) *Upload {
	return &Upload{
		TenantID:   tenantID,
		ProjectID:  r.ProjectID,
		Template:   r.Template,
		Name:       r.Name,
		RowCount:   len(rows),
		Rows:       rows,
		UploadedAt: time.Now().UTC(),
	}
}
