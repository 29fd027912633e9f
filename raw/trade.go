package raw

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Trade flow labels, carried in Row.Name.
const (
	FlowExport = "export"
	FlowImport = "import"
)

// EarliestYear is the backfill floor: shares are never extrapolated before it.
const EarliestYear = 1997

// TradeRecord is one parsed line of a USA Trade Online extract.
type TradeRecord struct {
	Year  int
	State string // postal abbreviation
	NAICS string // 4-digit NAICS
	Flow  string // FlowExport or FlowImport
	Value string
}

// AgFlowRecord is one parsed line of the USDA agricultural cash-receipts/flow
// source that replaces USA-trade export shares for the agricultural commodity.
type AgFlowRecord struct {
	Year  int
	State string
	Value string
}

// AgFlow normalizes the USDA source into per-year regional export shares for
// agCode.
func AgFlow(recs []AgFlowRecord, agCode string) (Table, error) {
	var rows Table
	for _, r := range recs {
		v, ok := ParseValue(r.Value, Millions)
		if !ok {
			continue
		}

		rows = append(rows, Row{Year: r.Year, Region: r.State, Code: agCode, Value: v, Name: FlowExport})
	}

	if rows == nil {
		return nil, fmt.Errorf("agflow: no usable rows")
	}

	totals := rows.Sum(func(r Row) Key { return Key{Year: r.Year, Code: r.Code, Name: r.Name} })

	var out Table
	for _, r := range rows {
		tot := totals[Key{Year: r.Year, Code: r.Code, Name: r.Name}]
		if tot == 0 {
			continue
		}

		r.Value /= tot
		out = append(out, r)
	}

	sortRows(out)

	return out, nil
}

// TradeShares computes each state's share of national exports and imports per
// (commodity, flow, year).
//
// Policies, in order:
//   - a year with no observations for a (commodity, flow) gets every state's
//     default share, the all-years average for that (state, commodity, flow);
//   - the agricultural commodity agCode discards its USA-trade export shares
//     entirely in favor of the USDA agShares table;
//   - years earlier than the first observed year of a (commodity, flow, state)
//     series are backfilled with the earliest observed share, never before
//     EarliestYear;
//   - shares are renormalized so each (commodity, flow, year) sums to one.
func TradeShares(recs []TradeRecord, agShares Table, agCode string, years []int, m Maps, lg zerolog.Logger) (Table, error) {
	if len(years) == 0 {
		return nil, fmt.Errorf("trade: no years requested")
	}

	for _, y := range years {
		if y < EarliestYear {
			return nil, fmt.Errorf("trade: year %d precedes backfill floor %d", y, EarliestYear)
		}
	}

	// normalize and collapse NAICS4 rows onto canonical codes
	obsVal := make(map[Key]float64)
	for _, r := range recs {
		v, ok := ParseValue(r.Value, Thousands)
		if !ok {
			continue
		}

		code, e := mapCode(r.NAICS, m.NAICS4, "NAICS4")
		if e != nil {
			return nil, e
		}

		obsVal[Key{Year: r.Year, Region: r.State, Code: code, Name: r.Flow}] += v
	}

	if len(obsVal) == 0 {
		return nil, fmt.Errorf("trade: no usable rows")
	}

	// observed shares per (code, flow, year)
	totals := make(map[Key]float64)
	for k, v := range obsVal {
		totals[Key{Year: k.Year, Code: k.Code, Name: k.Name}] += v
	}

	share := make(map[Key]float64)
	for k, v := range obsVal {
		if tot := totals[Key{Year: k.Year, Code: k.Code, Name: k.Name}]; tot != 0 {
			share[k] = v / tot
		}
	}

	// the agricultural export series comes from USDA, not USA trade
	for k := range share {
		if k.Code == agCode && k.Name == FlowExport {
			delete(share, k)
		}
	}
	for _, r := range agShares {
		if r.Code == agCode && r.Name == FlowExport {
			share[Key{Year: r.Year, Region: r.Region, Code: r.Code, Name: r.Name}] = r.Value
		}
	}

	// default share: all-years mean per (code, flow, state)
	defSum := make(map[Key]float64)
	defN := make(map[Key]int)
	for k, s := range share {
		dk := Key{Region: k.Region, Code: k.Code, Name: k.Name}
		defSum[dk] += s
		defN[dk]++
	}

	series := make(map[Key][]int) // observed years per (code, flow, state)
	for k := range share {
		sk := Key{Region: k.Region, Code: k.Code, Name: k.Name}
		series[sk] = append(series[sk], k.Year)
	}
	for _, ys := range series {
		sort.Ints(ys)
	}

	pairs := make(map[Key]bool) // (code, flow)
	for k := range share {
		pairs[Key{Code: k.Code, Name: k.Name}] = true
	}

	out := make(map[Key]float64)
	for pair := range pairs {
		for _, y := range years {
			if totals[Key{Year: y, Code: pair.Code, Name: pair.Name}] > 0 ||
				(pair.Code == agCode && pair.Name == FlowExport && anyObserved(share, pair, y)) {
				// observed year
				for sk, ys := range series {
					if sk.Code != pair.Code || sk.Name != pair.Name {
						continue
					}

					k := Key{Year: y, Region: sk.Region, Code: sk.Code, Name: sk.Name}
					if s, ok := share[k]; ok {
						out[k] = s
						continue
					}

					// backfill: before the series starts, reuse its earliest share
					if y < ys[0] {
						out[k] = share[Key{Year: ys[0], Region: sk.Region, Code: sk.Code, Name: sk.Name}]
					}
				}
				continue
			}

			// zero-observation year: substitute default shares
			lg.Warn().Str("commodity", pair.Code).Str("flow", pair.Name).Int("year", y).
				Msg("no trade observations; using all-years default shares")

			for dk, n := range defN {
				if dk.Code != pair.Code || dk.Name != pair.Name {
					continue
				}

				out[Key{Year: y, Region: dk.Region, Code: dk.Code, Name: dk.Name}] = defSum[dk] / float64(n)
			}
		}
	}

	// renormalize each (code, flow, year) to sum to one
	norm := make(map[Key]float64)
	for k, s := range out {
		norm[Key{Year: k.Year, Code: k.Code, Name: k.Name}] += s
	}

	var rows Table
	for k, s := range out {
		tot := norm[Key{Year: k.Year, Code: k.Code, Name: k.Name}]
		if tot == 0 {
			continue
		}

		rows = append(rows, Row{Year: k.Year, Region: k.Region, Code: k.Code, Value: s / tot, Name: k.Name})
	}

	sortRows(rows)

	return rows, nil
}

func anyObserved(share map[Key]float64, pair Key, year int) bool {
	for k := range share {
		if k.Code == pair.Code && k.Name == pair.Name && k.Year == year {
			return true
		}
	}

	return false
}
