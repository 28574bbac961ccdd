// Package symbol carries the name tables shared between analysis and the
// build cache: the identifiers a unit declares and the interface it
// exports to importers.
package symbol

import (
	"sort"

	"github.com/braidui/braid/internal/logic"
)

// Table indexes a unit's declarations for lookup during analysis.
type Table struct {
	Props      map[string]*logic.Prop
	States     map[string]*logic.State
	Methods    map[string]*logic.Method
	Components map[string]*logic.Import
}

// Build indexes a decoded logic section. Duplicate declarations were
// already dropped by the logic decoder, so later entries never clobber
// earlier ones here.
func Build(lg *logic.Logic) *Table {
	t := &Table{
		Props:      map[string]*logic.Prop{},
		States:     map[string]*logic.State{},
		Methods:    map[string]*logic.Method{},
		Components: map[string]*logic.Import{},
	}
	for _, p := range lg.Props {
		t.Props[p.Name] = p
	}
	for _, s := range lg.States {
		t.States[s.Name] = s
	}
	for _, m := range lg.Methods {
		t.Methods[m.Name] = m
	}
	for _, imp := range lg.Imports {
		t.Components[imp.Name] = imp
	}
	return t
}

// Ident reports whether name is usable in an expression: props and state
// share the value namespace, methods and components do not.
func (t *Table) Ident(name string) bool {
	_, isProp := t.Props[name]
	_, isState := t.States[name]
	return isProp || isState
}

// PropSig is the caller-visible signature of one prop.
type PropSig struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Export is the interface a unit presents to the units that import it.
// The default slot is the empty name. Exports round-trip through the
// build cache, so both slices stay sorted for stable encoding.
type Export struct {
	Props []PropSig `json:"props,omitempty"`
	Slots []string  `json:"slots,omitempty"`
}

// ExportOf derives a unit's export from its logic and the slot names its
// template declares.
func ExportOf(lg *logic.Logic, slots []string) Export {
	ex := Export{}
	for _, p := range lg.Props {
		ex.Props = append(ex.Props, PropSig{Name: p.Name, Required: p.Required})
	}
	sort.Slice(ex.Props, func(i, j int) bool { return ex.Props[i].Name < ex.Props[j].Name })

	seen := map[string]bool{}
	for _, s := range slots {
		if !seen[s] {
			seen[s] = true
			ex.Slots = append(ex.Slots, s)
		}
	}
	sort.Strings(ex.Slots)
	return ex
}

// Prop looks up a prop signature by name.
func (e Export) Prop(name string) (PropSig, bool) {
	for _, p := range e.Props {
		if p.Name == name {
			return p, true
		}
	}
	return PropSig{}, false
}

// HasSlot reports whether the unit declares the named slot.
func (e Export) HasSlot(name string) bool {
	for _, s := range e.Slots {
		if s == name {
			return true
		}
	}
	return false
}
