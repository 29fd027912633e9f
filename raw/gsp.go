package raw

import (
	"fmt"

	"github.com/stateio/stateio"
)

// GSPRecord is one parsed line of a BEA gross-state-product extract (SAGDP
// family).  Value is kept as the source string so suppression markers survive
// to the adapter.
type GSPRecord struct {
	GeoFIPS  string
	LineCode string
	Industry string // BEA industry classification code
	Desc     string
	Year     int
	Value    string
}

// SAGDP line codes selecting the GSP components the pipeline consumes.
const (
	LineGDP     = "1"  // all-industry GDP
	LineLabor   = "3"  // compensation of employees
	LineTax     = "5"  // taxes on production and imports
	LineSubsidy = "6"  // subsidies
	LineCapital = "8"  // gross operating surplus
)

// GSP extracts one component (by line code) from a BEA state GDP extract.
// Source values are thousands of dollars; output is billions.  Suppressed
// cells are dropped, not zeroed.
func GSP(recs []GSPRecord, lineCode string, m Maps) (Table, error) {
	var out Table
	for _, r := range recs {
		if r.LineCode != lineCode {
			continue
		}

		st := stateio.StateFromFIPS(r.GeoFIPS)
		if st == "" {
			// national aggregates and territories
			continue
		}

		v, ok := ParseValue(r.Value, Thousands)
		if !ok {
			continue
		}

		code, e := mapCode(r.Industry, m.BEA, "BEA")
		if e != nil {
			return nil, e
		}

		out = append(out, Row{Year: r.Year, Region: st, Code: code, Value: v, Name: r.Desc})
	}

	if out == nil {
		return nil, fmt.Errorf("gsp: no rows for line code %s", lineCode)
	}

	sortRows(out)

	return out, nil
}

// PCERecord is one parsed line of a BEA personal-consumption (SAPCE) extract.
type PCERecord struct {
	GeoFIPS string
	Line    string // PCE line code
	Desc    string
	Year    int
	Value   string
}

// PCE normalizes a personal-consumption extract.  Source values are millions
// of dollars.
func PCE(recs []PCERecord, m Maps) (Table, error) {
	var out Table
	for _, r := range recs {
		st := stateio.StateFromFIPS(r.GeoFIPS)
		if st == "" {
			continue
		}

		v, ok := ParseValue(r.Value, Millions)
		if !ok {
			continue
		}

		code, e := mapCode(r.Line, m.PCE, "PCE")
		if e != nil {
			return nil, e
		}

		out = append(out, Row{Year: r.Year, Region: st, Code: code, Value: v, Name: r.Desc})
	}

	if out == nil {
		return nil, fmt.Errorf("pce: no usable rows")
	}

	sortRows(out)

	return out, nil
}

// SGFRecord is one parsed line of a census state-government-finance extract.
type SGFRecord struct {
	Geo   string // SGF geography code (not census FIPS)
	Item  string // SGF item code
	Desc  string
	Year  int
	Value string
}

// SGF normalizes a state-government-finance extract.  Source values are
// thousands of dollars; the SGF geography coding differs from census FIPS and
// goes through its own map.
func SGF(recs []SGFRecord, m Maps) (Table, error) {
	var out Table
	for _, r := range recs {
		st := m.SGFGeo[r.Geo]
		if st == "" || !stateio.IsState(st) {
			continue
		}

		v, ok := ParseValue(r.Value, Thousands)
		if !ok {
			continue
		}

		code, e := mapCode(r.Item, m.SGF, "SGF")
		if e != nil {
			return nil, e
		}

		out = append(out, Row{Year: r.Year, Region: st, Code: code, Value: v, Name: r.Desc})
	}

	if out == nil {
		return nil, fmt.Errorf("sgf: no usable rows")
	}

	sortRows(out)

	return out, nil
}
