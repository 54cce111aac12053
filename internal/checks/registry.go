// Package checks contains the compliance check catalog and the engine
// that executes it. Checks are statically coded Go functions; there is
// no expression language and no runtime registration.
package checks

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Registry is the immutable check catalog, assembled once at startup.
type Registry struct {
	byID    map[string]*domain.CheckDefinition
	ordered []*domain.CheckDefinition
}

// NewRegistry validates definitions and freezes them into a catalog.
// IDs must be unique and every entry needs a run function, a default
// config and at least one required template.
func NewRegistry(defs ...*domain.CheckDefinition) (*Registry, error) {
	r := &Registry{byID: make(map[string]*domain.CheckDefinition, len(defs))}
	for _, def := range defs {
		if def == nil || def.ID == "" {
			return nil, fmt.Errorf("check definition without id")
		}
		if def.Run == nil {
			return nil, fmt.Errorf("check %s: missing run function", def.ID)
		}
		if def.DefaultConfig == nil {
			return nil, fmt.Errorf("check %s: missing default config", def.ID)
		}
		if len(def.RequiredTemplates) == 0 {
			return nil, fmt.Errorf("check %s: no required templates", def.ID)
		}
		if _, dup := r.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate check id %s", def.ID)
		}
		r.byID[def.ID] = def
		r.ordered = append(r.ordered, def)
	}
	return r, nil
}

// Get returns the check with the given id.
func (r *Registry) Get(id string) (*domain.CheckDefinition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// All returns every check in registration order.
func (r *Registry) All() []*domain.CheckDefinition {
	out := make([]*domain.CheckDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Match returns the checks whose required templates are all present in
// the available set, preserving registration order. This is how the
// catalog is narrowed to what a project's uploads can actually feed.
func (r *Registry) Match(available []domain.Template) []*domain.CheckDefinition {
	have := make(map[domain.Template]bool, len(available))
	for _, t := range available {
		have[t] = true
	}

	var out []*domain.CheckDefinition
	for _, def := range r.ordered {
		runnable := true
		for _, req := range def.RequiredTemplates {
			if !have[req] {
				runnable = false
				break
			}
		}
		if runnable {
			out = append(out, def)
		}
	}
	return out
}

// IDs returns the registered check ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ordered))
	for i, def := range r.ordered {
		ids[i] = def.ID
	}
	return ids
}

// Count returns the number of registered checks.
func (r *Registry) Count() int {
	return len(r.ordered)
}

// Categories maps check id to catalog category, for report rollups.
func (r *Registry) Categories() map[string]string {
	cats := make(map[string]string, len(r.ordered))
	for _, def := range r.ordered {
		cats[def.ID] = def.Category
	}
	return cats
}

// Builtin assembles the production check catalog.
func Builtin() (*Registry, error) {
	return NewRegistry(
		roundAmountsDefinition(),
		narrationKeywordsDefinition(),
		offCalendarDefinition(),
		expenseOutliersDefinition(),
		invoiceGapsDefinition(),
		priceSpikesDefinition(),
		payrollDuplicatesDefinition(),
		sharedPANDefinition(),
		receivablesAgeingDefinition(),
		highDSODefinition(),
	)
}
