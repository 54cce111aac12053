package checks

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func sharedPANDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "shared-pan",
		Name:        "Shared PAN Across Employees",
		Description: "Flags one PAN appearing under different employee codes in the same pay period, a ghost-employee marker.",
		Category:    domain.CategoryPayroll,
		DefaultConfig: domain.CheckConfig{
			"minEmployees": 2,
		},
		Run:               runSharedPAN,
		RequiredTemplates: []domain.Template{domain.TemplatePayrollRegister},
	}
}

var sharedPANFields = []dataset.FieldSpec{
	{Name: fieldPAN, Type: dataset.FieldString, Required: true},
	{Name: fieldEmployeeCode, Type: dataset.FieldString, Required: true},
	{Name: fieldPayPeriod, Type: dataset.FieldString, Required: true},
	{Name: fieldEmployeeName, Type: dataset.FieldString, Required: false},
}

func runSharedPAN(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplatePayrollRegister], sharedPANFields)
	minEmployees := cfg.Int("minEmployees", 2)
	if minEmployees < 2 {
		minEmployees = 2
	}

	panPeriod := func(row domain.Record) (string, bool) {
		pan := strings.ToUpper(dataset.String(row, fieldPAN))
		period := dataset.String(row, fieldPayPeriod)
		if pan == "" || period == "" {
			return "", false
		}
		return dataset.CompositeKey(pan, period), true
	}
	employee := func(row domain.Record) (string, bool) {
		code := dataset.CodeKey(row[fieldEmployeeCode])
		return code, code != ""
	}
	byPAN := dataset.GroupBy2(rows, panPeriod, employee)

	var findings []domain.Finding
	for _, outer := range dataset.SortedKeys(byPAN) {
		employees := byPAN[outer]
		if len(employees) < minEmployees {
			continue
		}

		var codes []string
		var records []domain.Record
		var total int
		for _, code := range dataset.SortedKeys(employees) {
			g := employees[code]
			codes = append(codes, dataset.String(g.Entries[0], fieldEmployeeCode))
			records = append(records, g.Entries...)
			total += g.Count
		}

		first := records[0]
		findings = append(findings, domain.Finding{
			Key:       outer,
			Magnitude: float64(len(employees)),
			Details: map[string]any{
				"pan":           dataset.String(first, fieldPAN),
				"payPeriod":     dataset.String(first, fieldPayPeriod),
				"employeeCodes": codes,
				"occurrences":   total,
			},
			Records: records,
		})
	}
	return domain.FinalizeResult(findings, errs)
}
