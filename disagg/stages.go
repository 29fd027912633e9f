package disagg

import (
	"fmt"
	"math"

	s "github.com/stateio/stateio"
	"github.com/stateio/stateio/shares"
)

// col elements introduced by derived stages
const (
	elemLaborDemand   = "labor_demand"
	elemCapitalDemand = "capital_demand"
	elemOutputTax     = "output_tax"
	elemReexport      = "reexport"
	elemDuty          = "duty"
	elemLocal         = "local"
	elemNational      = "national"
)

// householdAdjustSign is the direction of the household-supply absorption
// adjustment.  The two source revisions of this computation disagree on the
// sign; UNCONFIRMED with domain owners, kept in one place.
const householdAdjustSign = +1.0

// *********** initialize ***********

// initialize builds the empty regional table: the 51-state region set, the
// standard sets, and the national table's sector/commodity/margin catalog.
func (p *Pipeline) initialize() (*s.Table, error) {
	keep := []string{s.SetSector, s.SetCommodity, s.SetMargin}

	var sets []s.Set
	for _, st := range p.national.Sets() {
		if s.Has(st.Name, keep...) {
			sets = append(sets, st)
		}
	}

	// project each element onto the kept sets: an identifier may also belong
	// to sets outside the trio, and those memberships must not carry over
	var elems []s.Element
	for _, el := range p.national.Elements() {
		var member []string
		for _, nm := range el.Sets {
			if s.Has(nm, keep...) {
				member = append(member, nm)
			}
		}

		if member != nil {
			el.Sets = member
			elems = append(elems, el)
		}
	}

	t := s.NewTable(s.StandardSets(), s.RegionElements())
	t = t.Extend(sets, elems)

	if e := t.Check(); e != nil {
		return nil, fmt.Errorf("initialize: %w", e)
	}

	return t, nil
}

// *********** shared helpers ***********

func (p *Pipeline) byOpts() []ByOpt {
	return []ByOpt{FallbackLabel(p.fallback), ByLogger(p.lg)}
}

// natSum aggregates a national parameter.
func (p *Pipeline) natSum(param string, by func(s.Fact) s.GroupKey) map[s.GroupKey]float64 {
	return s.SumBy(p.national.Facts(param), by)
}

// appendTol appends facts under param, dropping near-zero values.  Derived
// tax and duty rows otherwise fill the table with floating-point noise.
func appendTol(t *s.Table, param string, tol float64, facts []s.Fact) *s.Table {
	var kept []s.Fact
	for _, f := range facts {
		if math.Abs(f.Value) >= tol {
			kept = append(kept, f)
		}
	}

	return t.Append(param, kept...)
}

// declare registers params in the parameter set.
func declare(t *s.Table, params ...string) *s.Table {
	return t.Extend(nil, s.ParameterElements(params...))
}

// *********** stages ***********

func (p *Pipeline) stageIntermediate(t *s.Table) (*s.Table, error) {
	split, e := ByShares(p.national, p.gdpShares,
		[]string{s.IntermediateDemand, s.IntermediateSupply}, DomainCol, p.byOpts()...)
	if e != nil {
		return nil, e
	}

	t = declare(t, s.IntermediateDemand, s.IntermediateSupply)
	t = t.Append(s.IntermediateDemand, split[s.IntermediateDemand]...)
	t = t.Append(s.IntermediateSupply, split[s.IntermediateSupply]...)

	return t, nil
}

// stageLaborCapital allocates national value added to states as
// va x gdp-share x labor-share (and the capital complement).  The solver's
// national constraint makes the regional sums reproduce the national split.
func (p *Pipeline) stageLaborCapital(t *s.Table) (*s.Table, error) {
	natVA := p.national.Facts(s.ValueAdded)
	if natVA == nil {
		return nil, fmt.Errorf("parameter %s: %w", s.ValueAdded, ErrEmptyJoin)
	}

	var laborFacts, capitalFacts []s.Fact
	for _, f := range natVA {
		spec := &bySpec{fallback: p.fallback, lg: p.lg}

		split, e := splitFact(f, f.Col, s.ValueAdded, p.gdpShares, spec)
		if e != nil {
			return nil, e
		}

		for _, g := range split {
			l, ok := p.labor.Labor[laborKey(g)]
			if !ok {
				// zero-GDP cells are fixed at zero by the solver; a cell with a
				// gdp share but no solve falls back to the national baseline
				l = p.labor.NationalFor(g.Col, g.Year)
				p.lg.Warn().Str("sector", g.Col).Str("region", g.Region).Int("year", g.Year).
					Msg("no solved labor share; using national baseline")
			}

			lf := g
			lf.Row = elemLaborDemand
			lf.Value = g.Value * l
			laborFacts = append(laborFacts, lf)

			cf := g
			cf.Row = elemCapitalDemand
			cf.Value = g.Value * (1 - l)
			capitalFacts = append(capitalFacts, cf)
		}
	}

	t = t.Extend(
		[]s.Set{{Name: "value_added", Domain: s.DomRow, Desc: "value-added components"}},
		[]s.Element{
			{Name: elemLaborDemand, Sets: []string{"value_added"}},
			{Name: elemCapitalDemand, Sets: []string{"value_added"}},
		},
	)
	t = declare(t, s.LaborDemand, s.CapitalDemand)
	t = t.Append(s.LaborDemand, laborFacts...)
	t = t.Append(s.CapitalDemand, capitalFacts...)

	return t, nil
}

// stageOutputTax computes the state output tax as state intermediate supply
// times the national tax rate per (sector, year).  The rate carries the
// national sign, so the state rows come out negative.
func (p *Pipeline) stageOutputTax(t *s.Table) (*s.Table, error) {
	stateIS := s.SumBy(t.Facts(s.IntermediateSupply), bySector)
	if len(stateIS) == 0 {
		return nil, fmt.Errorf("regional intermediate supply: %w", ErrEmptyJoin)
	}

	bySectorYear := func(f s.Fact) s.GroupKey { return s.GroupKey{Col: f.Col, Year: f.Year} }
	natOT := p.natSum(s.OutputTax, bySectorYear)
	natIS := p.natSum(s.IntermediateSupply, bySectorYear)

	var facts []s.Fact
	for _, k := range s.SortedKeys(stateIS) {
		den := natIS[s.GroupKey{Col: k.Col, Year: k.Year}]
		if den == 0 {
			continue
		}

		rate := natOT[s.GroupKey{Col: k.Col, Year: k.Year}] / den
		facts = append(facts, s.Fact{
			Row: elemOutputTax, Col: k.Col, Region: k.Region, Year: k.Year,
			Value: stateIS[k] * rate,
		})
	}

	t = t.Extend(
		[]s.Set{{Name: "output_tax", Domain: s.DomRow, Desc: "taxes on production"}},
		[]s.Element{{Name: elemOutputTax, Sets: []string{"output_tax"}}},
	)
	t = declare(t, s.OutputTax)

	return appendTol(t, s.OutputTax, p.tol, facts), nil
}

// stageInvestment collapses national investment categories to the single
// invest column and allocates by gdp shares.
func (p *Pipeline) stageInvestment(t *s.Table) (*s.Table, error) {
	return p.collapsedFinalDemand(t, s.Investment, s.ElemInvest, p.gdpShares)
}

func (p *Pipeline) stagePersonalConsumption(t *s.Table) (*s.Table, error) {
	split, e := ByShares(p.national, p.pceShares, []string{s.PersonalConsump}, DomainRow, p.byOpts()...)
	if e != nil {
		return nil, e
	}

	t = declare(t, s.PersonalConsump)

	return t.Append(s.PersonalConsump, split[s.PersonalConsump]...), nil
}

func (p *Pipeline) stageHouseholdSupply(t *s.Table) (*s.Table, error) {
	split, e := ByShares(p.national, p.pceShares, []string{s.HouseholdSupply}, DomainRow, p.byOpts()...)
	if e != nil {
		return nil, e
	}

	t = declare(t, s.HouseholdSupply)

	return t.Append(s.HouseholdSupply, split[s.HouseholdSupply]...), nil
}

// stageGovernment collapses government final demand to the single govern
// column and allocates by each state's share of total SGF expenditure.
func (p *Pipeline) stageGovernment(t *s.Table) (*s.Table, error) {
	return p.collapsedFinalDemand(t, s.GovernmentDemand, s.ElemGovern, p.sgfShares)
}

// collapsedFinalDemand sums a national final-demand parameter per (commodity,
// year), rewrites the column to a single element, and splits regionally.
// Investment uses per-commodity gdp shares; government uses the one collapsed
// SGF share group.
func (p *Pipeline) collapsedFinalDemand(t *s.Table, param, col string, sh shares.Table) (*s.Table, error) {
	nat := p.natSum(param, func(f s.Fact) s.GroupKey { return s.GroupKey{Row: f.Row, Year: f.Year} })
	if len(nat) == 0 {
		return nil, fmt.Errorf("parameter %s: %w", param, ErrEmptyJoin)
	}

	spec := &bySpec{fallback: p.fallback, lg: p.lg}

	var facts []s.Fact
	for _, k := range s.SortedKeys(nat) {
		f := s.Fact{Row: k.Row, Col: col, Year: k.Year, Value: nat[k]}

		code := k.Row
		if col == s.ElemGovern {
			code = s.ElemGovern
		}

		split, e := splitFact(f, code, param, sh, spec)
		if e != nil {
			return nil, e
		}

		facts = append(facts, split...)
	}

	t = t.Extend(
		[]s.Set{{Name: "final_demand", Domain: s.DomCol, Desc: "final demand columns"}},
		[]s.Element{{Name: col, Sets: []string{"final_demand"}}},
	)
	t = declare(t, param)

	return t.Append(param, facts...), nil
}

// stageExports allocates national exports by trade shares where the commodity
// has them, else by gdp shares.
func (p *Pipeline) stageExports(t *s.Table) (*s.Table, error) {
	natExp := p.national.Facts(s.Export)
	if natExp == nil {
		return nil, fmt.Errorf("parameter %s: %w", s.Export, ErrEmptyJoin)
	}

	spec := &bySpec{fallback: p.fallback, lg: p.lg}

	var facts []s.Fact
	for _, f := range natExp {
		sh := p.tradeExp
		if len(sh.ForCode(f.Year, f.Row)) == 0 {
			p.lg.Info().Str("commodity", f.Row).Int("year", f.Year).
				Msg("no trade shares for commodity; using gdp shares")
			sh = p.gdpShares
		}

		split, e := splitFact(f, f.Row, s.Export, sh, spec)
		if e != nil {
			return nil, e
		}

		facts = append(facts, split...)
	}

	t = declare(t, s.Export)

	return t.Append(s.Export, facts...), nil
}

// stageReexports keeps the negative portion of total supply plus exports:
// a state exporting more than it supplies re-exports the difference.
func (p *Pipeline) stageReexports(t *s.Table) (*s.Table, error) {
	ts := TotalSupply(t)
	ex := s.SumBy(t.Facts(s.Export), byCommodity)

	cells := make(map[s.GroupKey]float64)
	for k, v := range ts {
		cells[k] += v
	}
	for k, v := range ex {
		cells[k] += v
	}

	var facts []s.Fact
	for _, k := range s.SortedKeys(cells) {
		if v := cells[k]; v < 0 {
			facts = append(facts, s.Fact{Row: k.Row, Col: elemReexport, Region: k.Region, Year: k.Year, Value: v})
		}
	}

	t = t.Extend(
		[]s.Set{{Name: "reexport", Domain: s.DomCol, Desc: "re-exported trade"}},
		[]s.Element{{Name: elemReexport, Sets: []string{"reexport"}}},
	)
	t = declare(t, s.Reexport)

	return t.Append(s.Reexport, facts...), nil
}

// absorptionSplit allocates a national fact across regions in proportion to
// the magnitude of regional absorption for its commodity.
func (p *Pipeline) absorptionSplit(t *s.Table, param string) ([]s.Fact, error) {
	abs := Absorption(t)
	if len(abs) == 0 {
		return nil, fmt.Errorf("absorption: %w", ErrEmptyJoin)
	}

	nat := p.national.Facts(param)
	if nat == nil {
		return nil, fmt.Errorf("parameter %s: %w", param, ErrEmptyJoin)
	}

	absKeys := s.SortedKeys(abs)

	var facts []s.Fact
	for _, f := range nat {
		var (
			regions []string
			weights []float64
			tot     float64
		)
		for _, k := range absKeys {
			if k.Row != f.Row || k.Year != f.Year {
				continue
			}

			w := math.Abs(abs[k])
			regions = append(regions, k.Region)
			weights = append(weights, w)
			tot += w
		}

		if tot == 0 {
			// no absorption for this commodity: spread uniformly over the
			// regions absorbing anything that year
			regions, weights = nil, nil
			seen := make(map[string]bool)
			for _, k := range absKeys {
				if k.Year != f.Year || seen[k.Region] {
					continue
				}

				seen[k.Region] = true
				regions = append(regions, k.Region)
				weights = append(weights, 1)
				tot++
			}

			if tot == 0 {
				return nil, fmt.Errorf("parameter %s year %d: %w", param, f.Year, ErrEmptyJoin)
			}

			p.lg.Warn().Str("parameter", param).Str("commodity", f.Row).Int("year", f.Year).
				Str("fallback", p.fallback).Msg("no absorption for commodity; distributing uniformly")
		}

		for ind, r := range regions {
			g := f
			g.Region = r
			g.Value = f.Value * weights[ind] / tot
			facts = append(facts, g)
		}
	}

	return facts, nil
}

func (p *Pipeline) stageImports(t *s.Table) (*s.Table, error) {
	facts, e := p.absorptionSplit(t, s.Import)
	if e != nil {
		return nil, e
	}

	t = declare(t, s.Import)

	return t.Append(s.Import, facts...), nil
}

func (p *Pipeline) stageMarginDemand(t *s.Table) (*s.Table, error) {
	facts, e := p.absorptionSplit(t, s.MarginDemand)
	if e != nil {
		return nil, e
	}

	t = declare(t, s.MarginDemand)

	return t.Append(s.MarginDemand, facts...), nil
}

// stageDuty computes state duty as state imports times the national duty rate
// per (commodity, year).
func (p *Pipeline) stageDuty(t *s.Table) (*s.Table, error) {
	stateImp := s.SumBy(t.Facts(s.Import), byCommodity)
	if len(stateImp) == 0 {
		return nil, fmt.Errorf("regional imports: %w", ErrEmptyJoin)
	}

	byCommodityYear := func(f s.Fact) s.GroupKey { return s.GroupKey{Row: f.Row, Year: f.Year} }
	natDuty := p.natSum(s.Duty, byCommodityYear)
	natImp := p.natSum(s.Import, byCommodityYear)

	var facts []s.Fact
	for _, k := range s.SortedKeys(stateImp) {
		den := natImp[s.GroupKey{Row: k.Row, Year: k.Year}]
		if den == 0 {
			continue
		}

		rate := natDuty[s.GroupKey{Row: k.Row, Year: k.Year}] / den
		facts = append(facts, s.Fact{Row: k.Row, Col: elemDuty, Region: k.Region, Year: k.Year, Value: stateImp[k] * rate})
	}

	t = t.Extend(nil, []s.Element{{Name: elemDuty, Sets: []string{"final_demand"}}})
	t = declare(t, s.Duty)

	return appendTol(t, s.Duty, p.tol, facts), nil
}

// stageTax computes state tax as state absorption times the national tax rate
// inclusive of subsidy, per (commodity, year).
func (p *Pipeline) stageTax(t *s.Table) (*s.Table, error) {
	abs := Absorption(t)
	if len(abs) == 0 {
		return nil, fmt.Errorf("absorption: %w", ErrEmptyJoin)
	}

	byCommodityYear := func(f s.Fact) s.GroupKey { return s.GroupKey{Row: f.Row, Year: f.Year} }
	natTax := p.natSum(s.Tax, byCommodityYear)
	natSub := p.natSum(s.Subsidy, byCommodityYear)
	natAbs := make(map[s.GroupKey]float64)
	for k, v := range Absorption(p.national) {
		natAbs[s.GroupKey{Row: k.Row, Year: k.Year}] += v
	}

	var facts []s.Fact
	for _, k := range s.SortedKeys(abs) {
		g := s.GroupKey{Row: k.Row, Year: k.Year}
		den := natAbs[g]
		if den == 0 {
			continue
		}

		rate := (natTax[g] + natSub[g]) / den
		facts = append(facts, s.Fact{Row: k.Row, Col: "tax", Region: k.Region, Year: k.Year, Value: abs[k] * rate})
	}

	t = t.Extend(
		[]s.Set{{Name: "tax", Domain: s.DomCol, Desc: "taxes on absorption"}},
		[]s.Element{{Name: "tax", Sets: []string{"tax"}}},
	)
	t = declare(t, s.Tax)

	return appendTol(t, s.Tax, p.tol, facts), nil
}

// stageRegionalDemand defines regional demand as the minimum of the
// absorption-implied and reexport-implied candidates (zero when only one
// exists), splits it local/national by the RPC, and passes negative national
// remainders through as balancing slack.
func (p *Pipeline) stageRegionalDemand(t *s.Table) (*s.Table, error) {
	abs := Absorption(t)
	ts := TotalSupply(t)
	rx := s.SumBy(t.Facts(s.Reexport), byCommodity)

	if len(abs) == 0 || len(ts) == 0 {
		return nil, fmt.Errorf("absorption or total supply: %w", ErrEmptyJoin)
	}

	cells := make(map[s.GroupKey]float64)
	for k := range abs {
		cells[k] = 1
	}
	for k := range ts {
		cells[k] = 1
	}

	var localFacts, natlFacts []s.Fact
	for _, k := range s.SortedKeys(cells) {
		candA, haveA := abs[k]
		candA = -candA
		candB, haveB := ts[k]
		candB += rx[k]

		// both candidates or the value is zero by policy
		dm := 0.0
		if haveA && haveB {
			dm = math.Min(candA, candB)
		}

		rpc, ok := p.rpc[rpcKey(k)]
		if !ok && dm != 0 {
			p.lg.Warn().Str("commodity", k.Row).Str("region", k.Region).Int("year", k.Year).
				Msg("no rpc; regional demand treated as fully national")
		}

		local := rpc * dm
		natl := 0.0
		if haveA {
			natl = candA - local
		}

		if local != 0 {
			localFacts = append(localFacts, s.Fact{Row: k.Row, Col: elemLocal, Region: k.Region, Year: k.Year, Value: local})
		}
		if natl != 0 {
			natlFacts = append(natlFacts, s.Fact{Row: k.Row, Col: elemNational, Region: k.Region, Year: k.Year, Value: natl})
		}
	}

	t = t.Extend(
		[]s.Set{
			{Name: "local_demand", Domain: s.DomCol, Desc: "demand met by in-state production"},
			{Name: "national_demand", Domain: s.DomCol, Desc: "demand met by other states"},
		},
		[]s.Element{
			{Name: elemLocal, Sets: []string{"local_demand"}},
			{Name: elemNational, Sets: []string{"national_demand"}},
		},
	)
	t = declare(t, s.LocalDemand, s.NationalDemand)
	t = t.Append(s.LocalDemand, localFacts...)
	t = t.Append(s.NationalDemand, natlFacts...)

	return t, nil
}

// stageRegionalMarginSupply allocates national margin supply by each state's
// share of regional margin demand, then splits local/national by the RPC of
// the supplying commodity.
func (p *Pipeline) stageRegionalMarginSupply(t *s.Table) (*s.Table, error) {
	mdTot := s.SumBy(t.Facts(s.MarginDemand), bySector) // col is the margin
	if len(mdTot) == 0 {
		return nil, fmt.Errorf("regional margin demand: %w", ErrEmptyJoin)
	}

	marginTot := make(map[s.GroupKey]float64)
	for k, v := range mdTot {
		marginTot[s.GroupKey{Col: k.Col, Year: k.Year}] += v
	}

	natMS := p.national.Facts(s.MarginSupply)
	if natMS == nil {
		return nil, fmt.Errorf("parameter %s: %w", s.MarginSupply, ErrEmptyJoin)
	}

	var localFacts, natlFacts []s.Fact
	for _, f := range natMS {
		den := marginTot[s.GroupKey{Col: f.Col, Year: f.Year}]
		if den == 0 {
			p.lg.Warn().Str("margin", f.Col).Int("year", f.Year).
				Msg("no regional margin demand; margin supply row skipped")
			continue
		}

		for _, k := range s.SortedKeys(mdTot) {
			if k.Col != f.Col || k.Year != f.Year {
				continue
			}

			ms := f.Value * mdTot[k] / den
			local := p.rpc[rpcKey(s.GroupKey{Row: f.Row, Region: k.Region, Year: k.Year})] * ms

			if local != 0 {
				localFacts = append(localFacts, s.Fact{Row: f.Row, Col: f.Col, Region: k.Region, Year: k.Year, Value: local})
			}
			if ms-local != 0 {
				natlFacts = append(natlFacts, s.Fact{Row: f.Row, Col: f.Col, Region: k.Region, Year: k.Year, Value: ms - local})
			}
		}
	}

	t = declare(t, s.LocalMarginSupply, s.NatlMarginSupply)
	t = t.Append(s.LocalMarginSupply, localFacts...)
	t = t.Append(s.NatlMarginSupply, natlFacts...)

	return t, nil
}

// *********** post-hoc adjustment ***********

// AdjustByAbsorption nudges household supply where regional absorption came
// out positive (a sign defect in the accumulated demand rows).  The direction
// of the nudge is householdAdjustSign; see the constant.  Run applies it only
// under the HouseholdAdjust option; otherwise callers apply it to the run
// output themselves.
func AdjustByAbsorption(t *s.Table) *s.Table {
	abs := Absorption(t)

	var facts []s.Fact
	for _, k := range s.SortedKeys(abs) {
		if diff := abs[k]; diff > 0 {
			facts = append(facts, s.Fact{Row: k.Row, Col: k.Row, Region: k.Region, Year: k.Year,
				Value: householdAdjustSign * diff})
		}
	}

	if facts == nil {
		return t
	}

	return t.Append(s.HouseholdSupply, facts...)
}

// *********** small helpers ***********

func laborKey(f s.Fact) shares.Key {
	return shares.Key{Year: f.Year, Region: f.Region, Code: f.Col}
}

func rpcKey(k s.GroupKey) shares.Key {
	return shares.Key{Year: k.Year, Region: k.Region, Code: k.Row}
}
