package checks

import (
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func payrollDuplicatesDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "payroll-duplicates",
		Name:        "Duplicate Payroll Entries",
		Description: "Finds employees paid more than once in the same pay period. Employee codes compare with leading zeros stripped, so 007 and 7 are one employee.",
		Category:    domain.CategoryPayroll,
		DefaultConfig: domain.CheckConfig{
			"minOccurrences": 2,
		},
		Run:               runPayrollDuplicates,
		RequiredTemplates: []domain.Template{domain.TemplatePayrollRegister},
	}
}

var payrollDuplicateFields = []dataset.FieldSpec{
	{Name: fieldEmployeeCode, Type: dataset.FieldString, Required: true},
	{Name: fieldPayPeriod, Type: dataset.FieldString, Required: true},
	{Name: fieldEmployeeName, Type: dataset.FieldString, Required: false},
	{Name: fieldAmount, Type: dataset.FieldNumber, Required: false},
}

func runPayrollDuplicates(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplatePayrollRegister], payrollDuplicateFields)
	minOccurrences := cfg.Int("minOccurrences", 2)
	if minOccurrences < 2 {
		minOccurrences = 2
	}

	key := func(row domain.Record) (string, bool) {
		code := dataset.CodeKey(row[fieldEmployeeCode])
		period := dataset.String(row, fieldPayPeriod)
		if code == "" || period == "" {
			return "", false
		}
		return dataset.CompositeKey(code, period), true
	}
	amount := func(row domain.Record) (float64, bool) {
		return dataset.Number(row, fieldAmount)
	}
	groups := dataset.GroupSum(rows, key, amount)

	var findings []domain.Finding
	for _, k := range dataset.SortedKeys(groups) {
		g := groups[k]
		if g.Count < minOccurrences {
			continue
		}
		first := g.Entries[0]
		findings = append(findings, domain.Finding{
			Key:       k,
			Magnitude: float64(g.Count),
			Details: map[string]any{
				"employeeCode": dataset.String(first, fieldEmployeeCode),
				"payPeriod":    dataset.String(first, fieldPayPeriod),
				"occurrences":  g.Count,
				"totalAmount":  g.Sum,
			},
			Records: g.Entries,
		})
	}
	return domain.FinalizeResult(findings, errs)
}
