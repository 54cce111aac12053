package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// KeyFunc derives a grouping key from a row. ok=false excludes the row
// from the grouping (typically a row that failed validation).
type KeyFunc func(domain.Record) (string, bool)

// Group accumulates the rows sharing one key together with running
// aggregates. Sum, Min and Max only reflect rows whose amount resolved.
type Group struct {
	Key     string
	Entries []domain.Record
	Count   int
	Sum     float64
	Min     float64
	Max     float64

	amounts int
}

func (g *Group) add(row domain.Record) {
	g.Entries = append(g.Entries, row)
	g.Count++
}

func (g *Group) addAmount(v float64) {
	if g.amounts == 0 || v < g.Min {
		g.Min = v
	}
	if g.amounts == 0 || v > g.Max {
		g.Max = v
	}
	g.Sum += v
	g.amounts++
}

// GroupBy folds rows into groups keyed by key. Rows without a usable
// key are skipped.
func GroupBy(ds domain.Dataset, key KeyFunc) map[string]*Group {
	groups := make(map[string]*Group)
	for _, row := range ds {
		k, ok := key(row)
		if !ok {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &Group{Key: k}
			groups[k] = g
		}
		g.add(row)
	}
	return groups
}

// GroupSum folds rows into groups while accumulating sum, min and max
// of the amount incrementally. Rows whose amount does not resolve stay
// in the group but contribute nothing to the aggregates.
func GroupSum(ds domain.Dataset, key KeyFunc, amount func(domain.Record) (float64, bool)) map[string]*Group {
	groups := make(map[string]*Group)
	for _, row := range ds {
		k, ok := key(row)
		if !ok {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &Group{Key: k}
			groups[k] = g
		}
		g.add(row)
		if v, ok := amount(row); ok {
			g.addAmount(v)
		}
	}
	return groups
}

// GroupBy2 builds a two-level grouping, outer key then inner key.
// Used for "same X but different Y" patterns.
func GroupBy2(ds domain.Dataset, outer, inner KeyFunc) map[string]map[string]*Group {
	groups := make(map[string]map[string]*Group)
	for _, row := range ds {
		ok1, valid := outer(row)
		if !valid {
			continue
		}
		ik, valid := inner(row)
		if !valid {
			continue
		}
		m := groups[ok1]
		if m == nil {
			m = make(map[string]*Group)
			groups[ok1] = m
		}
		g := m[ik]
		if g == nil {
			g = &Group{Key: ik}
			m[ik] = g
		}
		g.add(row)
	}
	return groups
}

// SortedKeys returns the map keys in ascending lexicographic order.
// Period keys are built year-first and zero-padded, so lexicographic
// order equals chronological order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MonthKey buckets a timestamp into its calendar month, "2006-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// WeekKey buckets a timestamp into its ISO week, "2006-W02".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// CompositeKey joins key parts with "|".
func CompositeKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// SortByDate returns a copy of rows ordered ascending by a date field.
// Rows without a parsable date keep their input order at the front.
// The input slice is not modified.
func SortByDate(rows []domain.Record, field string) []domain.Record {
	cp := make([]domain.Record, len(rows))
	copy(cp, rows)
	sort.SliceStable(cp, func(i, j int) bool {
		ti, iok := Date(cp[i], field)
		tj, jok := Date(cp[j], field)
		if !iok || !jok {
			return !iok && jok
		}
		return ti.Before(tj)
	})
	return cp
}
