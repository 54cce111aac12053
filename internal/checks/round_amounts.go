package checks

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func roundAmountsDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "round-amounts",
		Name:        "Round Amount Entries",
		Description: "Flags journal amounts ending in a run of zeros or repeated digits, a common marker of estimated or fabricated entries.",
		Category:    domain.CategoryGeneralLedger,
		DefaultConfig: domain.CheckConfig{
			"digitCount": 5,
			"mode":       "round", // "round", "repeating" or "both"
		},
		Run:               runRoundAmounts,
		RequiredTemplates: []domain.Template{domain.TemplateGeneralLedger},
	}
}

var roundAmountFields = []dataset.FieldSpec{
	{Name: fieldEntryNo, Type: dataset.FieldString, Required: true},
	{Name: fieldPostingDate, Type: dataset.FieldDate, Required: false},
	{Name: fieldAmount, Type: dataset.FieldNumber, Required: true},
	{Name: fieldNarration, Type: dataset.FieldString, Required: false},
}

func runRoundAmounts(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplateGeneralLedger], roundAmountFields)
	digits := cfg.Int("digitCount", 5)
	mode := cfg.String("mode", "round")

	var findings []domain.Finding
	for _, row := range rows {
		amount, ok := dataset.Number(row, fieldAmount)
		if !ok {
			continue // already reported by Normalize
		}

		var pattern string
		switch {
		case (mode == "round" || mode == "both") && anomaly.IsRoundNumber(amount, digits):
			pattern = "round"
		case (mode == "repeating" || mode == "both") && anomaly.IsRepeatingNumber(amount, digits):
			pattern = "repeating"
		default:
			continue
		}

		entry := dataset.String(row, fieldEntryNo)
		findings = append(findings, domain.Finding{
			Key:       entry,
			Magnitude: math.Abs(amount),
			Details: map[string]any{
				"journalEntryNumber": entry,
				"amount":             amount,
				"pattern":            pattern,
				"digitCount":         digits,
			},
			Records: []domain.Record{row},
		})
	}
	return domain.FinalizeResult(findings, errs)
}
