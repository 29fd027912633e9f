package disagg

import (
	"fmt"

	"github.com/rs/zerolog"

	s "github.com/stateio/stateio"
	"github.com/stateio/stateio/raw"
	"github.com/stateio/stateio/shares"
)

// Source names the symbolic entries of the raw data dictionary.
type Source string

const (
	SrcGDP         Source = "gdp"
	SrcLabor       Source = "labor"
	SrcCapital     Source = "capital"
	SrcTax         Source = "tax"
	SrcSubsidy     Source = "subsidy"
	SrcPCE         Source = "pce"
	SrcSGF         Source = "sgf"
	SrcTradeShares Source = "trade_shares"
	SrcRPC         Source = "rpc"
)

// Data is the raw data dictionary: adapter outputs keyed by source name.
// trade_shares and rpc are already share-valued; the rest are levels.
type Data map[Source]raw.Table

func (d Data) get(src Source) (raw.Table, error) {
	t, ok := d[src]
	if !ok || len(t) == 0 {
		return nil, fmt.Errorf("raw data source %q missing", src)
	}

	return t, nil
}

// Pipeline drives the ordered disaggregation stages over one national table.
type Pipeline struct {
	national *s.Table
	data     Data

	tol      float64
	fallback string
	adjust   bool
	lg       zerolog.Logger

	// share tables derived once at construction
	gdpShares shares.Table
	pceShares shares.Table
	sgfShares shares.Table
	tradeExp  shares.Table
	rpc       shares.Table

	// the labor solve is expensive; solved once, cached for the run
	labor *shares.LaborResult
}

type Option func(*Pipeline)

// Tolerance sets the near-zero filter applied to derived tax and duty rows.
func Tolerance(tol float64) Option {
	return func(p *Pipeline) { p.tol = tol }
}

func Logger(lg zerolog.Logger) Option {
	return func(p *Pipeline) { p.lg = lg }
}

// WithFallbackLabel overrides the label on uniform-fallback rows.
func WithFallbackLabel(label string) Option {
	return func(p *Pipeline) { p.fallback = label }
}

// HouseholdAdjust applies the absorption adjustment to household supply at
// the end of Run.  Off by default while the adjustment's direction is
// unconfirmed; see AdjustByAbsorption.
func HouseholdAdjust() Option {
	return func(p *Pipeline) { p.adjust = true }
}

// New validates the national table, derives the share tables, and runs the
// labor/capital solve.  Solver non-convergence surfaces here, before any
// stage runs.
func New(national *s.Table, data Data, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		national: national,
		data:     data,
		tol:      1e-6,
		fallback: DefaultFallbackLabel,
		lg:       zerolog.Nop(),
	}

	for _, o := range opts {
		o(p)
	}

	if e := national.Check(); e != nil {
		return nil, fmt.Errorf("national table: %w", e)
	}

	var e error
	if p.gdpShares, e = p.sharesFrom(SrcGDP); e != nil {
		return nil, e
	}
	if p.pceShares, e = p.sharesFrom(SrcPCE); e != nil {
		return nil, e
	}

	// government spending allocates by each state's share of total SGF
	// expenditure, one share per state regardless of commodity
	var sgf raw.Table
	if sgf, e = p.data.get(SrcSGF); e != nil {
		return nil, e
	}
	collapsed := make(raw.Table, len(sgf))
	for ind, r := range sgf {
		r.Code = s.ElemGovern
		collapsed[ind] = r
	}
	if p.sgfShares, e = shares.FromRaw(collapsed); e != nil {
		return nil, e
	}

	var trade raw.Table
	if trade, e = p.data.get(SrcTradeShares); e != nil {
		return nil, e
	}
	p.tradeExp = shares.FromRawTable(trade.Filter(func(r raw.Row) bool { return r.Name == raw.FlowExport }))

	var rpc raw.Table
	if rpc, e = p.data.get(SrcRPC); e != nil {
		return nil, e
	}
	p.rpc = shares.FromRawTable(rpc)

	if e = p.solveLabor(); e != nil {
		return nil, e
	}

	return p, nil
}

func (p *Pipeline) sharesFrom(src Source) (shares.Table, error) {
	t, e := p.data.get(src)
	if e != nil {
		return nil, e
	}

	sh, e2 := shares.FromRaw(t)
	if e2 != nil {
		return nil, fmt.Errorf("%s: %w", src, e2)
	}

	return sh, nil
}

func (p *Pipeline) solveLabor() error {
	in := shares.LaborInputs{}

	var e error
	if in.GDP, e = p.data.get(SrcGDP); e != nil {
		return e
	}
	if in.Labor, e = p.data.get(SrcLabor); e != nil {
		return e
	}
	if in.Capital, e = p.data.get(SrcCapital); e != nil {
		return e
	}
	// tax and subsidy components are optional refinements of the residual
	in.Tax = p.data[SrcTax]
	in.Subsidy = p.data[SrcSubsidy]

	var res *shares.LaborResult
	if res, e = shares.Labor(in, shares.LaborLogger(p.lg)); e != nil {
		return fmt.Errorf("labor solve: %w", e)
	}

	p.labor = res

	return nil
}

// Labor exposes the cached solver result.
func (p *Pipeline) Labor() *shares.LaborResult {
	return p.labor
}

// *********** Stage registry ***********

type stage struct {
	name string
	adds []string // parameters the stage appends; also the re-entry guard
	fn   func(*Pipeline, *s.Table) (*s.Table, error)
}

// stages run strictly in this order; each one's output is the only legal
// input to the next.
var stageList = []stage{
	{"intermediate", []string{s.IntermediateDemand, s.IntermediateSupply}, (*Pipeline).stageIntermediate},
	{"labor_capital", []string{s.LaborDemand, s.CapitalDemand}, (*Pipeline).stageLaborCapital},
	{"output_tax", []string{s.OutputTax}, (*Pipeline).stageOutputTax},
	{"investment_final_demand", []string{s.Investment}, (*Pipeline).stageInvestment},
	{"personal_consumption", []string{s.PersonalConsump}, (*Pipeline).stagePersonalConsumption},
	{"household_supply", []string{s.HouseholdSupply}, (*Pipeline).stageHouseholdSupply},
	{"government_final_demand", []string{s.GovernmentDemand}, (*Pipeline).stageGovernment},
	{"foreign_exports", []string{s.Export}, (*Pipeline).stageExports},
	{"reexports", []string{s.Reexport}, (*Pipeline).stageReexports},
	{"foreign_imports", []string{s.Import}, (*Pipeline).stageImports},
	{"margin_demand", []string{s.MarginDemand}, (*Pipeline).stageMarginDemand},
	{"duty", []string{s.Duty}, (*Pipeline).stageDuty},
	{"tax", []string{s.Tax}, (*Pipeline).stageTax},
	{"regional_demand", []string{s.LocalDemand, s.NationalDemand}, (*Pipeline).stageRegionalDemand},
	{"regional_margin_supply", []string{s.LocalMarginSupply, s.NatlMarginSupply}, (*Pipeline).stageRegionalMarginSupply},
}

// StageNames lists the stages in execution order, initialize first.
func StageNames() []string {
	out := []string{"initialize"}
	for _, st := range stageList {
		out = append(out, st.name)
	}

	return out
}

// Stage runs one named stage.  Stages are pure functions of their inputs, so
// a single stage can be replayed for testing; the ordering contract still
// holds, enforced by the re-entry guard.
func (p *Pipeline) Stage(name string, t *s.Table) (*s.Table, error) {
	if name == "initialize" {
		return p.initialize()
	}

	for _, st := range stageList {
		if st.name != name {
			continue
		}

		for _, param := range st.adds {
			if t.HasParameter(param) {
				return nil, fmt.Errorf("stage %s: table already holds %s", name, param)
			}
		}

		out, e := st.fn(p, t)
		if e != nil {
			return nil, fmt.Errorf("stage %s: %w", name, e)
		}

		return out, nil
	}

	return nil, fmt.Errorf("unknown stage %s", name)
}

// Run executes every stage in order and validates the result's catalogs.
func (p *Pipeline) Run() (*s.Table, error) {
	t, e := p.initialize()
	if e != nil {
		return nil, e
	}

	for _, st := range stageList {
		p.lg.Info().Str("stage", st.name).Msg("running")

		if t, e = p.Stage(st.name, t); e != nil {
			return nil, e
		}
	}

	if p.adjust {
		t = AdjustByAbsorption(t)
	}

	if e = t.Check(); e != nil {
		return nil, fmt.Errorf("final table: %w", e)
	}

	return t, nil
}
