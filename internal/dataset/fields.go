// Package dataset provides the row primitives shared by every
// compliance check: field validation, value coercion and grouping.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FieldType classifies how a field value is validated and coerced.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
)

// FieldSpec declares one field a check reads from its input rows.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
}

// Date layouts accepted by ParseDate, tried in order. Day-first
// layouts come before month-first because ledger exports in scope
// are predominantly day-first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02-Jan-2006",
}

// Normalize validates rows against specs and returns a coerced copy of
// the dataset plus one ValidationError per defect. The input dataset is
// never modified.
//
// Per row: a missing required field or an unparseable value yields an
// error; the row is still carried into the output so downstream
// grouping can degrade gracefully. A missing optional number defaults
// to 0. Date fields are coerced to time.Time, numbers to float64 and
// string fields to their canonical string form.
func Normalize(ds domain.Dataset, specs []FieldSpec) (domain.Dataset, []domain.ValidationError) {
	out := make(domain.Dataset, 0, len(ds))
	var errs []domain.ValidationError

	for _, row := range ds {
		cp := make(domain.Record, len(row))
		for k, v := range row {
			cp[k] = v
		}

		for _, spec := range specs {
			v, present := cp[spec.Name]
			if v == nil {
				present = false
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				present = false
			}

			if !present {
				if spec.Required {
					errs = append(errs, domain.ValidationError{
						Message: fmt.Sprintf("missing required field %q", spec.Name),
						Field:   spec.Name,
						Row:     cp,
					})
				} else if spec.Type == FieldNumber {
					cp[spec.Name] = 0.0
				}
				continue
			}

			switch spec.Type {
			case FieldDate:
				t, ok := ParseDate(v)
				if !ok {
					errs = append(errs, domain.ValidationError{
						Message: fmt.Sprintf("invalid date in field %q", spec.Name),
						Field:   spec.Name,
						Row:     cp,
					})
					continue
				}
				cp[spec.Name] = t
			case FieldNumber:
				n, ok := ParseNumber(v)
				if !ok {
					errs = append(errs, domain.ValidationError{
						Message: fmt.Sprintf("invalid number in field %q", spec.Name),
						Field:   spec.Name,
						Row:     cp,
					})
					continue
				}
				cp[spec.Name] = n
			case FieldString:
				cp[spec.Name] = String(cp, spec.Name)
			}
		}
		out = append(out, cp)
	}
	return out, errs
}

// ParseDate coerces a raw cell value to a timestamp.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParseNumber coerces a raw cell value to a float. String input may
// carry thousands separators and accounting-style parentheses for
// negatives ("(1,234.56)").
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		neg := false
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			neg = true
			s = s[1 : len(s)-1]
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, " ", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if neg {
			f = -f
		}
		return f, true
	}
	return 0, false
}

// String returns the field rendered as a string. Numbers use their
// shortest decimal form so "1001" and 1001.0 compare equal.
func String(row domain.Record, field string) string {
	switch v := row[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format("2006-01-02")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Number returns the field as a float, reporting whether a usable
// value was present.
func Number(row domain.Record, field string) (float64, bool) {
	return ParseNumber(row[field])
}

// Date returns the field as a timestamp, reporting whether a usable
// value was present.
func Date(row domain.Record, field string) (time.Time, bool) {
	return ParseDate(row[field])
}

// CodeKey returns the comparison key for an identifier code: trimmed,
// with leading zeros stripped, so "007" and "7" refer to the same
// entity. An all-zero code collapses to "0". This affects comparison
// only; emitted records keep their original representation.
func CodeKey(v any) string {
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return ""
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
