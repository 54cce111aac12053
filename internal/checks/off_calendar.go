package checks

import (
	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func offCalendarDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "off-calendar-postings",
		Name:        "Weekend and Holiday Postings",
		Description: "Flags journal entries posted on weekends or configured holidays, evaluated in the engagement timezone.",
		Category:    domain.CategoryGeneralLedger,
		DefaultConfig: domain.CheckConfig{
			"weekendDays":  []string{"Saturday", "Sunday"},
			"holidayDates": []string{},
			"timezone":     "UTC",
		},
		Run:               runOffCalendar,
		RequiredTemplates: []domain.Template{domain.TemplateGeneralLedger},
	}
}

var offCalendarFields = []dataset.FieldSpec{
	{Name: fieldEntryNo, Type: dataset.FieldString, Required: true},
	{Name: fieldPostingDate, Type: dataset.FieldDate, Required: true},
	{Name: fieldAmount, Type: dataset.FieldNumber, Required: false},
	{Name: fieldNarration, Type: dataset.FieldString, Required: false},
}

func runOffCalendar(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplateGeneralLedger], offCalendarFields)

	cal, err := anomaly.NewCalendar(
		cfg.String("timezone", "UTC"),
		cfg.Strings("weekendDays"),
		cfg.Strings("holidayDates"),
	)
	if err != nil {
		errs = append(errs, domain.ValidationError{Message: err.Error(), Field: "calendar"})
		return domain.FinalizeResult(nil, errs)
	}

	var findings []domain.Finding
	for _, row := range rows {
		posted, ok := dataset.Date(row, fieldPostingDate)
		if !ok {
			continue
		}
		reason, off := cal.OffDay(posted)
		if !off {
			continue
		}

		entry := dataset.String(row, fieldEntryNo)
		local := posted.In(cal.Location())
		findings = append(findings, domain.Finding{
			Key: entry,
			Details: map[string]any{
				"journalEntryNumber": entry,
				"postingDate":        local.Format("2006-01-02"),
				"weekday":            local.Weekday().String(),
				"reason":             reason,
			},
			Records: []domain.Record{row},
		})
	}
	return domain.FinalizeResult(findings, errs)
}
