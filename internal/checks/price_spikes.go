package checks

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func priceSpikesDefinition() *domain.CheckDefinition {
	return &domain.CheckDefinition{
		ID:          "price-spikes",
		Name:        "Purchase Price Spikes",
		Description: "Orders each item's purchases chronologically and flags rate changes against the previous purchase beyond the threshold.",
		Category:    domain.CategoryPurchases,
		DefaultConfig: domain.CheckConfig{
			"thresholdPercent": 10.0,
		},
		Run:               runPriceSpikes,
		RequiredTemplates: []domain.Template{domain.TemplatePurchaseRegister},
	}
}

var priceSpikeFields = []dataset.FieldSpec{
	{Name: fieldItemCode, Type: dataset.FieldString, Required: true},
	{Name: fieldPurchaseDate, Type: dataset.FieldDate, Required: true},
	{Name: fieldRate, Type: dataset.FieldNumber, Required: true},
	{Name: fieldVendorName, Type: dataset.FieldString, Required: false},
}

func runPriceSpikes(in domain.Inputs, cfg domain.CheckConfig) domain.CheckResult {
	rows, errs := dataset.Normalize(in[domain.TemplatePurchaseRegister], priceSpikeFields)
	threshold := cfg.Float("thresholdPercent", 10.0)

	itemKey := func(row domain.Record) (string, bool) {
		code := dataset.CodeKey(row[fieldItemCode])
		return code, code != ""
	}
	byItem := dataset.GroupBy(rows, itemKey)

	var findings []domain.Finding
	for _, item := range dataset.SortedKeys(byItem) {
		group := byItem[item]
		if group.Count < 2 {
			continue
		}

		// Chronological scan against the previous purchase. A zero
		// previous rate skips the comparison rather than flagging it.
		ordered := dataset.SortByDate(group.Entries, fieldPurchaseDate)
		for i := 1; i < len(ordered); i++ {
			prev, prevOK := dataset.Number(ordered[i-1], fieldRate)
			cur, curOK := dataset.Number(ordered[i], fieldRate)
			if !prevOK || !curOK {
				continue
			}
			dev, ok := anomaly.PercentDeviation(cur, prev)
			if !ok || !anomaly.Exceeds(dev, threshold) {
				continue
			}

			date, _ := dataset.Date(ordered[i], fieldPurchaseDate)
			display := dataset.String(ordered[i], fieldItemCode)
			findings = append(findings, domain.Finding{
				Key:       dataset.CompositeKey(item, date.Format("2006-01-02")),
				Magnitude: math.Abs(dev),
				Details: map[string]any{
					"itemCode":      display,
					"purchaseDate":  date.Format("2006-01-02"),
					"previousRate":  prev,
					"currentRate":   cur,
					"changePercent": dev,
				},
				Records: []domain.Record{ordered[i-1], ordered[i]},
			})
		}
	}
	return domain.FinalizeResult(findings, errs)
}
