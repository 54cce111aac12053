package checks

import (
	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func invoiceGapsDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "invoice-gaps",
		Name:        "Invoice Sequence Gaps",
		Description: "Detects missing numbers in the sales invoice sequence, pointing at unrecorded or suppressed revenue.",
		Category:    domain.CategoryRevenue,
		DefaultConfig: domain.CheckConfig{
			"prefix": "INV",
		},
		Run:               runInvoiceGaps,
		RequiredTemplates: []domain.Template{domain.TemplateSalesRegister},
	}
}

var invoiceGapFields = []dataset.FieldSpec{
	{Name: fieldInvoiceNo, Type: dataset.FieldString, Required: true},
	{Name: fieldInvoiceDate, Type: dataset.FieldDate, Required: false},
	{Name: fieldInvoiceValue, Type: dataset.FieldNumber, Required: false},
}

func runInvoiceGaps(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplateSalesRegister], invoiceGapFields)
	prefix := cfg.String("prefix", "INV")

	ids := make([]string, 0, len(rows))
	byID := make(map[string][]domain.Record)
	for _, row := range rows {
		id := dataset.String(row, fieldInvoiceNo)
		if id == "" {
			continue
		}
		ids = append(ids, id)
		byID[id] = append(byID[id], row)
	}

	var findings []domain.Finding
	for _, gap := range anomaly.SequenceGaps(ids, prefix) {
		records := append([]domain.Record{}, byID[gap.After]...)
		records = append(records, byID[gap.Before]...)
		findings = append(findings, domain.Finding{
			Key:       gap.After,
			Magnitude: float64(len(gap.Missing)),
			Details: map[string]any{
				"gapAfter":     gap.After,
				"gapBefore":    gap.Before,
				"missing":      gap.Missing,
				"missingCount": len(gap.Missing),
			},
			Records: records,
		})
	}
	return domain.FinalizeResult(findings, errs)
}
