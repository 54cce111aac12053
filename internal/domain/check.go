package domain

import "sort"

// CheckConfig holds the named parameters of a compliance check
// (thresholds, keyword lists, date boundaries). Configs are read-only:
// merging overrides produces a fresh map and checks never write back.
//
// Values arriving over the API come from JSON, so numbers may be
// float64 and lists []any. The typed getters absorb both.
type CheckConfig map[string]any

// Merge returns a new config with overrides layered over c.
// Neither input is modified.
func (c CheckConfig) Merge(overrides CheckConfig) CheckConfig {
	merged := make(CheckConfig, len(c)+len(overrides))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Float returns the float parameter at key, or def when absent or
// not numeric.
func (c CheckConfig) Float(key string, def float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int returns the integer parameter at key, or def.
func (c CheckConfig) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// String returns the string parameter at key, or def.
func (c CheckConfig) String(key string, def string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the boolean parameter at key, or def.
func (c CheckConfig) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns the string-list parameter at key, accepting either
// []string or a JSON-decoded []any of strings. Nil when absent.
func (c CheckConfig) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ValidationError reports a structurally unusable input or a row that
// failed field validation. Row-level errors are collected, never fatal:
// the check continues with the remaining rows.
type ValidationError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Row     Record `json:"row,omitempty"`
}

// MsgDataNotArray is the error message emitted when a required dataset
// is missing or not a row array. It is part of the API contract.
const MsgDataNotArray = "Data must be an array"

// Finding is one summary entry: a flagged group, entity or row pair.
// Details carries the check-specific explanation shape. Records are
// the original rows backing the finding and are never empty.
type Finding struct {
	Key       string         `json:"key"`
	Magnitude float64        `json:"magnitude"`
	Details   map[string]any `json:"details"`
	Records   []Record       `json:"records,omitempty"`
}

// CheckResult is the universal output of every compliance check.
//
// Results holds the rows implicated in at least one finding, produced
// by flattening each finding's records in summary order. A row backing
// two findings appears twice. Findings and errors are independent: a
// run may report both.
type CheckResult struct {
	Results []Record          `json:"results"`
	Summary []Finding         `json:"summary"`
	Errors  []ValidationError `json:"errors"`
}

// SortFindings orders findings by magnitude descending, then key
// ascending. Checks without a natural magnitude leave it zero, which
// collapses the order to key ascending.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Magnitude != findings[j].Magnitude {
			return findings[i].Magnitude > findings[j].Magnitude
		}
		return findings[i].Key < findings[j].Key
	})
}

// FinalizeResult assembles a CheckResult from findings and collected
// errors. Findings without backing records are dropped, findings are
// sorted, and Results is derived by flattening the surviving findings'
// records, so every summarised record is present in Results.
func FinalizeResult(findings []Finding, errs []ValidationError) CheckResult {
	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if len(f.Records) > 0 {
			kept = append(kept, f)
		}
	}
	SortFindings(kept)

	results := make([]Record, 0, len(kept))
	for _, f := range kept {
		results = append(results, f.Records...)
	}
	if errs == nil {
		errs = []ValidationError{}
	}
	return CheckResult{Results: results, Summary: kept, Errors: errs}
}

// FatalResult is the short-circuit result for structurally unusable
// input, such as a missing required dataset.
func FatalResult(message, field string) CheckResult {
	return CheckResult{
		Results: []Record{},
		Summary: []Finding{},
		Errors:  []ValidationError{{Message: message, Field: field}},
	}
}

// CheckFunc is the uniform signature of a compliance check: pure,
// synchronous, no I/O. All failures surface through CheckResult.Errors.
type CheckFunc func(in Inputs, cfg CheckConfig) CheckResult

// CheckDefinition is one registry entry. The catalog is assembled once
// at startup and immutable afterwards.
type CheckDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`

	// DefaultConfig documents every parameter the check reads.
	DefaultConfig CheckConfig `json:"defaultConfig"`

	// Run executes the check. Never nil in a valid registry.
	Run CheckFunc `json:"-"`

	// RequiredTemplates lists the datasets the check needs.
	RequiredTemplates []Template `json:"requiredTemplates"`
}

// Check categories, aligned with the ledger areas they audit.
const (
	CategoryGeneralLedger = "general_ledger"
	CategoryRevenue       = "revenue"
	CategoryPurchases     = "purchases"
	CategoryPayroll       = "payroll"
	CategoryReceivables   = "receivables"
)
