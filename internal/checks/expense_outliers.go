package checks

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func expenseOutliersDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "expense-outliers",
		Name:        "Periodic Expense Outliers",
		Description: "Buckets account postings per period and flags periods deviating from the account's mean total by more than the threshold.",
		Category:    domain.CategoryGeneralLedger,
		DefaultConfig: domain.CheckConfig{
			"thresholdPercent": 50.0,
			"minPeriods":       3,
			"period":           "month", // "month" or "week"
		},
		Run:               runExpenseOutliers,
		RequiredTemplates: []domain.Template{domain.TemplateGeneralLedger},
	}
}

var expenseOutlierFields = []dataset.FieldSpec{
	{Name: fieldAccountCode, Type: dataset.FieldString, Required: true},
	{Name: fieldPostingDate, Type: dataset.FieldDate, Required: true},
	{Name: fieldAmount, Type: dataset.FieldNumber, Required: true},
}

func runExpenseOutliers(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplateGeneralLedger], expenseOutlierFields)
	threshold := cfg.Float("thresholdPercent", 50.0)
	minPeriods := cfg.Int("minPeriods", 3)
	period := cfg.String("period", "month")

	bucket := dataset.MonthKey
	if period == "week" {
		bucket = dataset.WeekKey
	}

	accountKey := func(row domain.Record) (string, bool) {
		code := dataset.CodeKey(row[fieldAccountCode])
		return code, code != ""
	}
	periodKey := func(row domain.Record) (string, bool) {
		t, ok := dataset.Date(row, fieldPostingDate)
		if !ok {
			return "", false
		}
		return bucket(t), true
	}

	byAccount := dataset.GroupBy2(rows, accountKey, periodKey)

	var findings []domain.Finding
	for _, account := range dataset.SortedKeys(byAccount) {
		periods := byAccount[account]
		if len(periods) < minPeriods {
			continue
		}

		keys := dataset.SortedKeys(periods)
		totals := make(map[string]float64, len(keys))
		values := make([]float64, 0, len(keys))
		for _, pk := range keys {
			var sum float64
			for _, row := range periods[pk].Entries {
				if v, ok := dataset.Number(row, fieldAmount); ok {
					sum += v
				}
			}
			totals[pk] = sum
			values = append(values, sum)
		}

		mean, _ := anomaly.Mean(values)
		display := dataset.String(periods[keys[0]].Entries[0], fieldAccountCode)

		for _, pk := range keys {
			dev, ok := anomaly.PercentDeviation(totals[pk], mean)
			if !ok || !anomaly.Exceeds(dev, threshold) {
				continue
			}
			findings = append(findings, domain.Finding{
				Key:       dataset.CompositeKey(account, pk),
				Magnitude: math.Abs(dev),
				Details: map[string]any{
					"accountCode":      display,
					"period":           pk,
					"periodTotal":      totals[pk],
					"meanTotal":        mean,
					"deviationPercent": dev,
				},
				Records: periods[pk].Entries,
			})
		}
	}
	return domain.FinalizeResult(findings, errs)
}
