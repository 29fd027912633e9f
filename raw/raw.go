// Package raw normalizes heterogeneous government data extracts into one
// common shape: (year, region, industry code, value, label).  Adapters take
// already-parsed records, never file paths, so the pipeline stays decoupled
// from source formats.  All dollar values are normalized to billions.
package raw

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Row is the common adapter output shape.
type Row struct {
	Year   int
	Region string
	Code   string
	Value  float64
	Name   string
}

type Table []Row

// Unit conversion factors to billions of dollars.
const (
	Thousands = 1e-6
	Millions  = 1e-3
	Billions  = 1.0
)

// Maps carries the code-mapping tables joining each source's taxonomy to the
// canonical industry codes (and source geographies to states).
type Maps struct {
	BEA    map[string]string // BEA industry code -> canonical
	PCE    map[string]string // PCE line code -> canonical
	FAF    map[string]string // FAF commodity code -> canonical
	NAICS4 map[string]string // USA Trade NAICS4 -> canonical
	SGF    map[string]string // census SGF item code -> canonical
	SGFGeo map[string]string // SGF geography code -> state
}

// suppression markers used across BEA/census extracts.  A flagged cell is
// missing, not zero; zero would poison downstream share computation.
var suppressed = map[string]bool{
	"": true, "(D)": true, "(NA)": true, "(NM)": true, "(L)": true, "(T)": true, "(X)": true,
}

// ParseValue converts a source cell to billions of dollars.  ok is false for
// suppressed or non-numeric cells.
func ParseValue(cell string, unit float64) (v float64, ok bool) {
	cell = strings.TrimSpace(cell)
	if suppressed[cell] {
		return 0, false
	}

	cell = strings.ReplaceAll(cell, ",", "")

	var e error
	if v, e = strconv.ParseFloat(cell, 64); e != nil {
		return 0, false
	}

	return v * unit, true
}

// Key identifies an aggregation cell of a raw table.
type Key struct {
	Year   int
	Region string
	Code   string
	Name   string
}

// Sum aggregates table values by a key function.
func (t Table) Sum(by func(Row) Key) map[Key]float64 {
	out := make(map[Key]float64)
	for _, r := range t {
		out[by(r)] += r.Value
	}

	return out
}

// Years returns the distinct years present, ascending.
func (t Table) Years() []int {
	seen := make(map[int]bool)
	for _, r := range t {
		seen[r.Year] = true
	}

	var out []int
	for y := range seen {
		out = append(out, y)
	}

	sort.Ints(out)

	return out
}

// Filter returns the rows matching keep.
func (t Table) Filter(keep func(Row) bool) Table {
	var out Table
	for _, r := range t {
		if keep(r) {
			out = append(out, r)
		}
	}

	return out
}

// sortRows orders a table by (code, name, year, region) so adapter output is
// stable run to run.
func sortRows(t Table) {
	sort.Slice(t, func(i, j int) bool {
		a, b := t[i], t[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Region < b.Region
	})
}

func mapCode(code string, m map[string]string, src string) (string, error) {
	if m == nil {
		return code, nil
	}

	mapped, ok := m[code]
	if !ok {
		return "", fmt.Errorf("%s code %s has no canonical mapping", src, code)
	}

	return mapped, nil
}
