package disagg

import (
	"sort"

	"github.com/rs/zerolog"

	s "github.com/stateio/stateio"
)

// Sign conventions, relied on by every reducer here:
//
//	demand-side entries positive   (Intermediate_Demand, Personal_Consumption,
//	                                Investment, Government_Demand, Margin_Demand)
//	supply-side entries positive   (Intermediate_Supply, Household_Supply,
//	                                Import, Margin_Supply)
//	Export negative                (outflow)
//	Output_Tax, Tax, Duty negative
//	Reexport negative              (kept only when total_supply + export < 0)
//	Absorption negative            (reducer negates the demand sum)

// byCommodity keys facts on (row, region, year).
func byCommodity(f s.Fact) s.GroupKey {
	return s.GroupKey{Row: f.Row, Region: f.Region, Year: f.Year}
}

// bySector keys facts on (col, region, year).
func bySector(f s.Fact) s.GroupKey {
	return s.GroupKey{Col: f.Col, Region: f.Region, Year: f.Year}
}

// Absorption sums intermediate plus other final demand per (commodity,
// region, year), negated: absorption is negative by convention.
func Absorption(t *s.Table) map[s.GroupKey]float64 {
	facts := t.Filter([]string{s.IntermediateDemand, s.PersonalConsump, s.Investment, s.GovernmentDemand})

	out := s.SumBy(facts, byCommodity)
	for k, v := range out {
		out[k] = -v
	}

	return out
}

// TotalSupply sums intermediate supply and household supply per (commodity,
// region, year).
func TotalSupply(t *s.Table) map[s.GroupKey]float64 {
	return s.SumBy(t.Filter([]string{s.IntermediateSupply, s.HouseholdSupply}), byCommodity)
}

// ZeroProfit evaluates gross output net of output tax against inputs plus
// value added, per (sector, region, year).  Zero when the sector's accounts
// balance.
func ZeroProfit(t *s.Table) map[s.GroupKey]float64 {
	facts := t.Filter(
		[]string{s.IntermediateSupply, s.OutputTax, s.IntermediateDemand, s.LaborDemand, s.CapitalDemand},
		s.Normalize(s.IntermediateDemand),
		s.Normalize(s.LaborDemand),
		s.Normalize(s.CapitalDemand),
	)

	return s.SumBy(facts, bySector)
}

// MarketClearance evaluates supply minus demand per (commodity, region,
// year).  Export enters on the supply side where its negative sign removes
// the outflow; Reexport enters negated, restoring the over-exported portion.
// Margin supply appears under Margin_Supply on the national table and under
// the local/national pair on regional ones; all three are counted.
func MarketClearance(t *s.Table) map[s.GroupKey]float64 {
	facts := t.Filter(
		[]string{
			s.IntermediateSupply, s.HouseholdSupply, s.Import, s.Export,
			s.MarginSupply, s.LocalMarginSupply, s.NatlMarginSupply,
			s.IntermediateDemand, s.PersonalConsump, s.Investment, s.GovernmentDemand,
			s.MarginDemand, s.Reexport,
		},
		s.Normalize(s.IntermediateDemand),
		s.Normalize(s.PersonalConsump),
		s.Normalize(s.Investment),
		s.Normalize(s.GovernmentDemand),
		s.Normalize(s.MarginDemand),
		s.Normalize(s.Reexport),
	)

	return s.SumBy(facts, byCommodity)
}

// MarginBalance evaluates margin supply minus margin demand per (margin,
// region, year).  Margin facts carry the commodity in row and the margin in
// col.
func MarginBalance(t *s.Table) map[s.GroupKey]float64 {
	facts := t.Filter(
		[]string{s.MarginSupply, s.LocalMarginSupply, s.NatlMarginSupply, s.MarginDemand},
		s.Normalize(s.MarginDemand),
	)

	return s.SumBy(facts, bySector)
}

// *********** Validation summary ***********

// IdentityReport summarizes one identity over a table.
type IdentityReport struct {
	Identity string
	Cells    int
	MaxAbs   float64
	Worst    s.GroupKey
}

// Validate evaluates the three closing identities and reports the maximum
// absolute imbalance of each.  Imbalances above tol log at WARN; a silent
// large imbalance is an upstream data or policy defect, not a crash.
func Validate(t *s.Table, tol float64, lg zerolog.Logger) []IdentityReport {
	checks := []struct {
		name string
		fn   func(*s.Table) map[s.GroupKey]float64
	}{
		{"zero_profit", ZeroProfit},
		{"market_clearance", MarketClearance},
		{"margin_balance", MarginBalance},
	}

	var out []IdentityReport
	for _, c := range checks {
		rep := IdentityReport{Identity: c.name}

		sums := c.fn(t)
		keys := s.SortedKeys(sums)
		for _, k := range keys {
			v := sums[k]
			if v < 0 {
				v = -v
			}

			rep.Cells++
			if v > rep.MaxAbs {
				rep.MaxAbs = v
				rep.Worst = k
			}
		}

		if rep.MaxAbs > tol {
			lg.Warn().Str("identity", rep.Identity).Float64("max_abs", rep.MaxAbs).
				Str("row", rep.Worst.Row).Str("col", rep.Worst.Col).
				Str("region", rep.Worst.Region).Int("year", rep.Worst.Year).
				Msg("identity imbalance above tolerance")
		}

		out = append(out, rep)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })

	return out
}
