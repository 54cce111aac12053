package checks

import (
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func highDSODefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "high-dso",
		Name:        "High Days Sales Outstanding",
		Description: "Computes days sales outstanding per customer from receivables and sales and flags customers collecting slower than the threshold.",
		Category:    domain.CategoryReceivables,
		DefaultConfig: domain.CheckConfig{
			"periodDays":    365,
			"thresholdDays": 120.0,
		},
		Run: runHighDSO,
		RequiredTemplates: []domain.Template{
			domain.TemplateReceivables,
			domain.TemplateSalesRegister,
		},
	}
}

var dsoReceivableFields = []dataset.FieldSpec{
	{Name: fieldCustomerCode, Type: dataset.FieldString, Required: true},
	{Name: fieldOutstanding, Type: dataset.FieldNumber, Required: true},
}

var dsoSalesFields = []dataset.FieldSpec{
	{Name: fieldCustomerCode, Type: dataset.FieldString, Required: true},
	{Name: fieldInvoiceValue, Type: dataset.FieldNumber, Required: true},
}

func runHighDSO(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	receivables, errs := dataset.Normalize(in[domain.TemplateReceivables], dsoReceivableFields)
	sales, salesErrs := dataset.Normalize(in[domain.TemplateSalesRegister], dsoSalesFields)
	errs = append(errs, salesErrs...)

	periodDays := cfg.Float("periodDays", 365)
	threshold := cfg.Float("thresholdDays", 120)

	customerKey := func(row domain.Record) (string, bool) {
		code := dataset.CodeKey(row[fieldCustomerCode])
		return code, code != ""
	}

	outstanding := dataset.GroupSum(receivables, customerKey, func(row domain.Record) (float64, bool) {
		return dataset.Number(row, fieldOutstanding)
	})
	revenue := dataset.GroupSum(sales, customerKey, func(row domain.Record) (float64, bool) {
		return dataset.Number(row, fieldInvoiceValue)
	})

	var findings []domain.Finding
	for _, code := range dataset.SortedKeys(outstanding) {
		owed := outstanding[code]
		sold, ok := revenue[code]
		if !ok || sold.Sum <= 0 {
			// No revenue base, nothing meaningful to divide by.
			continue
		}

		dso := owed.Sum / sold.Sum * periodDays
		if dso <= threshold {
			continue
		}

		findings = append(findings, domain.Finding{
			Key:       code,
			Magnitude: dso,
			Details: map[string]any{
				"customerCode": dataset.String(owed.Entries[0], fieldCustomerCode),
				"outstanding":  owed.Sum,
				"revenue":      sold.Sum,
				"periodDays":   periodDays,
				"dsoDays":      dso,
			},
			Records: owed.Entries,
		})
	}
	return domain.FinalizeResult(findings, errs)
}
