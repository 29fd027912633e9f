// Package stateio holds the fact-table container used to disaggregate a national
// input-output table into state-level tables.  The container is a long-format
// relation (row, col, region, year, parameter, value) plus two catalogs: sets
// (named domains such as sector or commodity) and elements (identifiers tagged
// with the sets they belong to).  Tables are immutable by convention -- every
// transformation returns a new value.
package stateio

import (
	"fmt"
	"sort"
)

// Fact is one entry of the long-format table.  Row is the originating
// commodity/sector/factor, Col the destination activity.  Region is blank for
// national (not yet regionalized) tables.
type Fact struct {
	Row    string
	Col    string
	Region string
	Year   int
	Value  float64
}

// Set domains.
const (
	DomRow       = "row"
	DomCol       = "col"
	DomRegion    = "region"
	DomYear      = "year"
	DomParameter = "parameter"
)

// Set is one entry of the sets catalog.
type Set struct {
	Name   string
	Domain string
	Desc   string
}

// Element maps one identifier to the sets it belongs to.  An identifier may
// belong to several sets at once (e.g. labor_demand is in both Labor_Demand
// and Value_Added).
type Element struct {
	Name string
	Sets []string
}

// Table is the container threaded through the disaggregation pipeline.
type Table struct {
	params []string // parameter names in insertion order
	facts  map[string][]Fact
	sets   []Set
	elems  []Element
}

func NewTable(sets []Set, elems []Element) *Table {
	return &Table{
		facts: make(map[string][]Fact),
		sets:  append([]Set(nil), sets...),
		elems: append([]Element(nil), elems...),
	}
}

// Parameters returns the declared parameter names in insertion order.
func (t *Table) Parameters() []string {
	return append([]string(nil), t.params...)
}

// Facts returns the facts stored under param.  The slice is shared; callers
// must not modify it.
func (t *Table) Facts(param string) []Fact {
	return t.facts[param]
}

func (t *Table) HasParameter(param string) bool {
	_, ok := t.facts[param]
	return ok
}

func (t *Table) RowCount() int {
	n := 0
	for _, f := range t.facts {
		n += len(f)
	}

	return n
}

func (t *Table) Sets() []Set {
	return append([]Set(nil), t.sets...)
}

func (t *Table) Elements() []Element {
	return append([]Element(nil), t.elems...)
}

// SetDomain returns the domain of a declared set, or "" if the set is unknown.
func (t *Table) SetDomain(name string) string {
	for _, s := range t.sets {
		if s.Name == name {
			return s.Domain
		}
	}

	return ""
}

// ElementsOf returns the identifiers belonging to the named set, sorted.
func (t *Table) ElementsOf(set string) []string {
	var out []string
	for _, el := range t.elems {
		if has(set, el.Sets) {
			out = append(out, el.Name)
		}
	}

	sort.Strings(out)

	return out
}

// Append returns a new table with facts added under param.  Existing facts are
// never altered; a repeated param accumulates.
func (t *Table) Append(param string, facts ...Fact) *Table {
	out := t.shallow()

	old := out.facts[param]
	nf := make([]Fact, 0, len(old)+len(facts))
	nf = append(nf, old...)
	nf = append(nf, facts...)
	out.facts[param] = nf

	if !has(param, out.params) {
		out.params = append(out.params, param)
	}

	return out
}

// Extend returns a new table with catalog rows appended.  Re-registering an
// identical set is a no-op; conflicts surface later via Check.
func (t *Table) Extend(sets []Set, elems []Element) *Table {
	out := t.shallow()

	for _, s := range sets {
		dup := false
		for _, have := range out.sets {
			if have == s {
				dup = true
				break
			}
		}

		if !dup {
			out.sets = append(out.sets, s)
		}
	}

	for _, el := range elems {
		out.elems = append(out.elems, el)
	}

	return out
}

// Union stacks two tables.  Catalogs are unioned; conflicting set domains are
// an error since downstream joins would silently go empty.
func (t *Table) Union(other *Table) (*Table, error) {
	for _, s := range other.sets {
		if d := t.SetDomain(s.Name); d != "" && d != s.Domain {
			return nil, fmt.Errorf("union: set %s declared with domains %s and %s", s.Name, d, s.Domain)
		}
	}

	out := t.Extend(other.sets, other.elems)
	for _, p := range other.params {
		out = out.Append(p, other.facts[p]...)
	}

	return out, nil
}

func (t *Table) shallow() *Table {
	out := &Table{
		params: append([]string(nil), t.params...),
		facts:  make(map[string][]Fact, len(t.facts)),
		sets:   append([]Set(nil), t.sets...),
		elems:  append([]Element(nil), t.elems...),
	}

	for p, f := range t.facts {
		out.facts[p] = f
	}

	return out
}

// *********** Filter ***********

type filterSpec struct {
	negate map[string]bool
}

// FilterOpt modifies Filter behavior.
type FilterOpt func(*filterSpec)

// Normalize flips the sign of the named parameter's contribution.  Used where
// an entry must enter an aggregate with opposite sign (e.g. supply against
// demand in market clearance).
func Normalize(param string) FilterOpt {
	return func(fs *filterSpec) { fs.negate[param] = true }
}

// Filter returns the facts whose parameter matches one of names, or -- when a
// name is a declared set rather than a parameter -- whose row or col is an
// element of that set.  Output order follows parameter insertion order, so a
// given table always filters identically.
func (t *Table) Filter(names []string, opts ...FilterOpt) []Fact {
	fs := &filterSpec{negate: make(map[string]bool)}
	for _, o := range opts {
		o(fs)
	}

	var out []Fact
	for _, p := range t.params {
		var keep func(Fact) bool

		switch {
		case has(p, names):
			keep = func(Fact) bool { return true }
		default:
			keep = t.setMatcher(names)
		}

		for _, f := range t.facts[p] {
			if !keep(f) {
				continue
			}

			if fs.negate[p] {
				f.Value = -f.Value
			}

			out = append(out, f)
		}
	}

	return out
}

// setMatcher builds a predicate matching facts whose row (for row-domain sets)
// or col (for col-domain sets) belongs to one of the named sets.
func (t *Table) setMatcher(names []string) func(Fact) bool {
	type memb struct {
		domain string
		in     map[string]bool
	}

	var ms []memb
	for _, nm := range names {
		d := t.SetDomain(nm)
		if d != DomRow && d != DomCol {
			continue
		}

		in := make(map[string]bool)
		for _, el := range t.ElementsOf(nm) {
			in[el] = true
		}

		ms = append(ms, memb{domain: d, in: in})
	}

	return func(f Fact) bool {
		for _, m := range ms {
			id := f.Row
			if m.domain == DomCol {
				id = f.Col
			}

			if m.in[id] {
				return true
			}
		}

		return false
	}
}

// *********** Regularity check ***********

// Check validates catalog regularity: an illegal set or element name, a set
// declared twice with conflicting domains, an element referencing an
// undeclared set, or facts stored under an undeclared parameter.  These bugs
// otherwise surface only as silently empty joins downstream.
func (t *Table) Check() error {
	domains := make(map[string]string)
	for _, s := range t.sets {
		if !validName(s.Name) {
			return fmt.Errorf("illegal set name %q", s.Name)
		}

		if d, ok := domains[s.Name]; ok && d != s.Domain {
			return fmt.Errorf("set %s declared with conflicting domains %s and %s", s.Name, d, s.Domain)
		}

		domains[s.Name] = s.Domain
	}

	for _, el := range t.elems {
		if !validName(el.Name) {
			return fmt.Errorf("illegal element name %q", el.Name)
		}

		for _, s := range el.Sets {
			if _, ok := domains[s]; !ok {
				return fmt.Errorf("element %s references unknown set %s", el.Name, s)
			}
		}
	}

	if _, ok := domains["parameter"]; ok {
		declared := make(map[string]bool)
		for _, el := range t.elems {
			if has("parameter", el.Sets) {
				declared[el.Name] = true
			}
		}

		for _, p := range t.params {
			if !declared[p] {
				return fmt.Errorf("facts stored under undeclared parameter %s", p)
			}
		}
	}

	return nil
}

// *********** Aggregation helpers ***********

// GroupKey identifies an aggregation cell.  Unused fields are left zero by the
// caller's key function.
type GroupKey struct {
	Row    string
	Col    string
	Region string
	Year   int
}

// SumBy sums fact values per key.
func SumBy(facts []Fact, by func(Fact) GroupKey) map[GroupKey]float64 {
	out := make(map[GroupKey]float64)
	for _, f := range facts {
		out[by(f)] += f.Value
	}

	return out
}

// SortedKeys returns the keys of an aggregate in a stable order.
func SortedKeys(m map[GroupKey]float64) []GroupKey {
	keys := make([]GroupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Year < b.Year
	})

	return keys
}
