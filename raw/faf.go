package raw

import (
	"fmt"
	"sort"

	"github.com/stateio/stateio"
)

// FAFRecord is one parsed line of a Freight Analysis Framework extract:
// the value shipped from an origin state to a destination state for one
// commodity and year.
type FAFRecord struct {
	Year       int
	OriginFIPS string
	DestFIPS   string
	Commodity  string // FAF commodity (SCTG) code
	Value      string
}

// FAFBenchmark maps a requested year to the FAF benchmark year carrying its
// data.  FAF is annual from 2017 on; earlier years exist only at five-year
// benchmarks, and the intervening years take the nearest benchmark.  This is
// stated policy: no annual data exists for those years.
func FAFBenchmark(year int) int {
	switch {
	case year >= 2017:
		return year
	case year >= 2015:
		return 2017
	case year >= 2010:
		return 2012
	case year >= 2005:
		return 2007
	case year >= 2000:
		return 2002
	default:
		return 1997
	}
}

// FAFFlow is a normalized state-to-state freight flow.
type FAFFlow struct {
	Year   int
	Origin string
	Dest   string
	Code   string
	Value  float64
}

// FAF normalizes a freight extract to canonical commodity codes and state
// abbreviations.  Source values are millions of dollars.
func FAF(recs []FAFRecord, m Maps) ([]FAFFlow, error) {
	var out []FAFFlow
	for _, r := range recs {
		org := stateio.StateFromFIPS(r.OriginFIPS)
		dst := stateio.StateFromFIPS(r.DestFIPS)
		if org == "" || dst == "" {
			continue
		}

		v, ok := ParseValue(r.Value, Millions)
		if !ok {
			continue
		}

		code, e := mapCode(r.Commodity, m.FAF, "FAF")
		if e != nil {
			return nil, e
		}

		out = append(out, FAFFlow{Year: r.Year, Origin: org, Dest: dst, Code: code, Value: v})
	}

	if out == nil {
		return nil, fmt.Errorf("faf: no usable rows")
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		return a.Dest < b.Dest
	})

	return out, nil
}

// RPC derives regional purchase coefficients from freight flows: the fraction
// of a state's inbound supply of a commodity that originates in-state.  Each
// requested year reads from its FAF benchmark year.  Output values are in
// [0, 1].
func RPC(flows []FAFFlow, years []int) (Table, error) {
	if len(flows) == 0 {
		return nil, fmt.Errorf("rpc: no flows")
	}

	type cell struct {
		year int
		dest string
		code string
	}

	local := make(map[cell]float64)
	inbound := make(map[cell]float64)
	for _, f := range flows {
		c := cell{year: f.Year, dest: f.Dest, code: f.Code}
		if f.Origin == f.Dest {
			local[c] += f.Value
			continue
		}

		inbound[c] += f.Value
	}

	cells := make(map[cell]bool)
	for c := range local {
		cells[c] = true
	}
	for c := range inbound {
		cells[c] = true
	}

	var out Table
	for _, y := range years {
		bench := FAFBenchmark(y)
		for c := range cells {
			if c.year != bench {
				continue
			}

			tot := local[c] + inbound[c]
			if tot <= 0 {
				continue
			}

			out = append(out, Row{
				Year:   y,
				Region: c.dest,
				Code:   c.code,
				Value:  stateio.Clip(local[c]/tot, 0, 1),
				Name:   "rpc",
			})
		}
	}

	if out == nil {
		return nil, fmt.Errorf("rpc: no benchmark flows cover requested years")
	}

	sortRows(out)

	return out, nil
}
