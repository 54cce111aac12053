package checks

import (
	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func narrationKeywordsDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "narration-keywords",
		Name:        "Suspicious Narration Keywords",
		Description: "Scans journal narrations for configured keywords and phrases on word boundaries.",
		Category:    domain.CategoryGeneralLedger,
		DefaultConfig: domain.CheckConfig{
			"keywords": []string{
				"fraud", "bribe", "kickback", "penalty", "suspense",
				"write off", "adjustment entry", "cash paid",
			},
			"caseSensitive": false,
		},
		Run:               runNarrationKeywords,
		RequiredTemplates: []domain.Template{domain.TemplateGeneralLedger},
	}
}

var narrationKeywordFields = []dataset.FieldSpec{
	{Name: fieldEntryNo, Type: dataset.FieldString, Required: true},
	{Name: fieldNarration, Type: dataset.FieldString, Required: true},
	{Name: fieldAmount, Type: dataset.FieldNumber, Required: false},
}

func runNarrationKeywords(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplateGeneralLedger], narrationKeywordFields)

	matcher, err := anomaly.NewKeywordMatcher(cfg.Strings("keywords"), cfg.Bool("caseSensitive", false))
	if err != nil {
		errs = append(errs, domain.ValidationError{Message: err.Error(), Field: "keywords"})
		return domain.FinalizeResult(nil, errs)
	}
	if matcher.Empty() {
		return domain.FinalizeResult(nil, errs)
	}

	var findings []domain.Finding
	for _, row := range rows {
		narration := dataset.String(row, fieldNarration)
		matched := matcher.Match(narration)
		if len(matched) == 0 {
			continue
		}

		entry := dataset.String(row, fieldEntryNo)
		findings = append(findings, domain.Finding{
			Key:       entry,
			Magnitude: float64(len(matched)),
			Details: map[string]any{
				"journalEntryNumber": entry,
				"narration":          narration,
				"matchedKeywords":    matched,
			},
			Records: []domain.Record{row},
		})
	}
	return domain.FinalizeResult(findings, errs)
}
