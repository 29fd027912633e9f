// Package shares derives regional allocation shares from normalized raw
// tables, and reconciles state labor/capital splits against national
// value-added totals.
package shares

import (
	"fmt"
	"sort"

	"github.com/stateio/stateio/raw"
)

// Key identifies one share cell.
type Key struct {
	Year   int
	Region string
	Code   string
}

// Table maps (year, region, code) to an allocation share.  For every
// (year, code) group present, the shares across regions sum to one.
type Table map[Key]float64

// FromRaw computes each region's share of the (year, code) total of a raw
// table.  Groups with a non-positive total are dropped: a share of nothing
// allocates nothing.
func FromRaw(t raw.Table) (Table, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("shares: empty raw table")
	}

	totals := t.Sum(func(r raw.Row) raw.Key { return raw.Key{Year: r.Year, Code: r.Code} })

	vals := t.Sum(func(r raw.Row) raw.Key { return raw.Key{Year: r.Year, Region: r.Region, Code: r.Code} })

	out := make(Table)
	for k, v := range vals {
		tot := totals[raw.Key{Year: k.Year, Code: k.Code}]
		if tot <= 0 {
			continue
		}

		out[Key{Year: k.Year, Region: k.Region, Code: k.Code}] = v / tot
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("shares: no groups with positive totals")
	}

	return out, nil
}

// FromRawTable reads a shares-valued raw table (e.g. trade or rpc adapter
// output) directly, without renormalizing.
func FromRawTable(t raw.Table) Table {
	out := make(Table)
	for _, r := range t {
		out[Key{Year: r.Year, Region: r.Region, Code: r.Code}] = r.Value
	}

	return out
}

// Codes returns the distinct codes present, sorted.
func (t Table) Codes() []string {
	seen := make(map[string]bool)
	for k := range t {
		seen[k.Code] = true
	}

	var out []string
	for c := range seen {
		out = append(out, c)
	}

	sort.Strings(out)

	return out
}

// ForCode returns region -> share for one (year, code) group.
func (t Table) ForCode(year int, code string) map[string]float64 {
	out := make(map[string]float64)
	for k, s := range t {
		if k.Year == year && k.Code == code {
			out[k.Region] = s
		}
	}

	return out
}

// PairsForYear returns the distinct (region) identifiers with any share in the
// given year, sorted.  The disaggregation primitive's uniform fallback spreads
// over these.
func (t Table) PairsForYear(year int) []string {
	seen := make(map[string]bool)
	for k := range t {
		if k.Year == year {
			seen[k.Region] = true
		}
	}

	var out []string
	for r := range seen {
		out = append(out, r)
	}

	sort.Strings(out)

	return out
}

// Check verifies the normalization property: every (year, code) group sums to
// one within tol.
func (t Table) Check(tol float64) error {
	sums := make(map[raw.Key]float64)
	for k, s := range t {
		sums[raw.Key{Year: k.Year, Code: k.Code}] += s
	}

	var bad []raw.Key
	for g, s := range sums {
		if s < 1-tol || s > 1+tol {
			bad = append(bad, g)
		}
	}

	if len(bad) == 0 {
		return nil
	}

	sort.Slice(bad, func(i, j int) bool {
		if bad[i].Code != bad[j].Code {
			return bad[i].Code < bad[j].Code
		}
		return bad[i].Year < bad[j].Year
	})

	return fmt.Errorf("shares: %d groups do not sum to 1, first %s/%d", len(bad), bad[0].Code, bad[0].Year)
}

// SortedKeys returns the table's keys in a stable order.
func (t Table) SortedKeys() []Key {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Region < b.Region
	})

	return keys
}
