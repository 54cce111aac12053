package checks

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func receivablesAgeingDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "receivables-ageing",
		Name:        "Overdue Receivables Ageing",
		Description: "Ages outstanding receivables against a cutoff date and flags customers with invoices overdue beyond the limit.",
		Category:    domain.CategoryReceivables,
		DefaultConfig: domain.CheckConfig{
			"maxAgeingDays": 90,
			// Empty means "now". Supply a date for reproducible runs.
			"cutoffDate": "",
		},
		Run: runReceivablesAgeing,
		RequiredTemplates: []domain.Template{
			domain.TemplateReceivables,
			domain.TemplateCustomerListing,
		},
	}
}

var receivableFields = []dataset.FieldSpec{
	{Name: fieldCustomerCode, Type: dataset.FieldString, Required: true},
	{Name: fieldDueDate, Type: dataset.FieldDate, Required: true},
	{Name: fieldOutstanding, Type: dataset.FieldNumber, Required: true},
	{Name: fieldInvoiceNo, Type: dataset.FieldString, Required: false},
}

var customerListingFields = []dataset.FieldSpec{
	{Name: fieldCustomerCode, Type: dataset.FieldString, Required: true},
	{Name: fieldCustomerName, Type: dataset.FieldString, Required: false},
}

func runReceivablesAgeing(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplateReceivables], receivableFields)
	customers, custErrs := dataset.Normalize(in[domain.TemplateCustomerListing], customerListingFields)
	errs = append(errs, custErrs...)

	maxDays := cfg.Int("maxAgeingDays", 90)

	cutoff := time.Now().UTC()
	if raw := cfg.String("cutoffDate", ""); raw != "" {
		parsed, ok := dataset.ParseDate(raw)
		if !ok {
			errs = append(errs, domain.ValidationError{
				Message: "invalid cutoffDate",
				Field:   "cutoffDate",
			})
			return domain.FinalizeResult(nil, errs)
		}
		cutoff = parsed
	}

	names := make(map[string]string, len(customers))
	for _, c := range customers {
		code := dataset.CodeKey(c[fieldCustomerCode])
		if code == "" {
			continue
		}
		if _, seen := names[code]; !seen {
			names[code] = dataset.String(c, fieldCustomerName)
		}
	}

	type bucket struct {
		records     []domain.Record
		outstanding float64
		oldestDays  int
	}
	overdue := make(map[string]*bucket)

	for _, row := range rows {
		code := dataset.CodeKey(row[fieldCustomerCode])
		due, dueOK := dataset.Date(row, fieldDueDate)
		value, valOK := dataset.Number(row, fieldOutstanding)
		if code == "" || !dueOK || !valOK {
			continue
		}
		days := int(cutoff.Sub(due).Hours() / 24)
		if days <= maxDays {
			continue
		}
		b := overdue[code]
		if b == nil {
			b = &bucket{}
			overdue[code] = b
		}
		b.records = append(b.records, row)
		b.outstanding += value
		if days > b.oldestDays {
			b.oldestDays = days
		}
	}

	var findings []domain.Finding
	for _, code := range dataset.SortedKeys(overdue) {
		b := overdue[code]
		findings = append(findings, domain.Finding{
			Key:       code,
			Magnitude: float64(b.oldestDays),
			Details: map[string]any{
				"customerCode":     dataset.String(b.records[0], fieldCustomerCode),
				"customerName":     names[code],
				"overdueInvoices":  len(b.records),
				"totalOutstanding": b.outstanding,
				"daysOutstanding":  b.oldestDays,
				"cutoffDate":       cutoff.Format("2006-01-02"),
			},
			Records: b.records,
		})
	}
	return domain.FinalizeResult(findings, errs)
}
