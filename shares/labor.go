package shares

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/stateio/stateio"
	"github.com/stateio/stateio/raw"
)

// Solver failure conditions.  Both are surfaced, never silently replaced by
// the initial guess.
var (
	ErrNoConvergence = errors.New("labor solve did not converge")
	ErrInfeasible    = errors.New("labor solve infeasible")
)

// outlierBand is how far a raw state labor share may sit from the national
// baseline before it is rejected and replaced by the baseline.
const outlierBand = 0.75

// lowerBoundFrac keeps solved shares away from degenerate zeros: the lower
// bound is this fraction of the national share.
const lowerBoundFrac = 0.25

// LaborInputs are the GSP components feeding the solver, all indexed
// (year, state, industry) and in billions of dollars.
type LaborInputs struct {
	GDP     raw.Table // officially reported state GDP
	Labor   raw.Table // compensation of employees
	Capital raw.Table // gross operating surplus
	Tax     raw.Table // taxes on production and imports
	Subsidy raw.Table // subsidies
}

// LaborResult is the reconciled split.  Labor and Capital hold one share per
// (year, state, sector); for every solved cell Labor + Capital == 1.
type LaborResult struct {
	Labor    Table
	Capital  Table
	National map[raw.Key]float64 // national labor share per (code, year)
}

// NationalFor returns the national labor share per (sector, year), zero when
// the group was never solvable.
func (r *LaborResult) NationalFor(code string, year int) float64 {
	return r.National[raw.Key{Year: year, Code: code}]
}

type laborSpec struct {
	maxIter int
	tol     float64
	lg      zerolog.Logger
}

type LaborOpt func(*laborSpec)

// LaborMaxIter caps bisection iterations per (sector, year) solve.
func LaborMaxIter(n int) LaborOpt {
	return func(s *laborSpec) { s.maxIter = n }
}

// LaborTol sets the constraint tolerance.
func LaborTol(tol float64) LaborOpt {
	return func(s *laborSpec) { s.tol = tol }
}

func LaborLogger(lg zerolog.Logger) LaborOpt {
	return func(s *laborSpec) { s.lg = lg }
}

// Labor reconciles state labor/capital splits.
//
// The capital-surplus source holds unavoidable negative cells, so the naive
// labor/(labor+capital) ratio is unusable directly.  The steps:
//
//  1. the gap between reported GDP and the summed components is absorbed
//     entirely into capital;
//  2. a national labor share per (sector, year) is the baseline;
//  3. raw state shares that are missing, negative, or more than outlierBand
//     away from the baseline are replaced by it;
//  4. per (sector, year), minimize the |GDP|-weighted squared deviation of the
//     solved shares from the cleaned estimates, subject to the GDP-weighted
//     state average reproducing the national share, with each share bounded to
//     [lowerBoundFrac x national, 1].  States with non-positive GDP are fixed
//     at zero and excluded.
//
// The constrained problem decomposes per (sector, year) into a box-bounded
// weighted least squares with a single linear constraint; its dual is a
// monotone scalar equation solved by bisection.
func Labor(in LaborInputs, opts ...LaborOpt) (*LaborResult, error) {
	spec := &laborSpec{maxIter: 200, tol: 1e-10, lg: zerolog.Nop()}
	for _, o := range opts {
		o(spec)
	}

	if len(in.GDP) == 0 || len(in.Labor) == 0 || len(in.Capital) == 0 {
		return nil, fmt.Errorf("labor: gdp, labor and capital inputs are all required")
	}

	byCell := func(r raw.Row) raw.Key { return raw.Key{Year: r.Year, Region: r.Region, Code: r.Code} }
	gdp := in.GDP.Sum(byCell)
	labor := in.Labor.Sum(byCell)
	capital := in.Capital.Sum(byCell)
	tax := in.Tax.Sum(byCell)
	subsidy := in.Subsidy.Sum(byCell)

	// step 1: residual absorption.  implied GDP is the component sum; the
	// discrepancy against reported GDP is attributed to capital.
	for k, g := range gdp {
		implied := labor[k] + capital[k] + tax[k] - subsidy[k]
		capital[k] += g - implied
	}

	// step 2: national baseline per (sector, year)
	natNum := make(map[raw.Key]float64)
	natDen := make(map[raw.Key]float64)
	for k, l := range labor {
		g := raw.Key{Year: k.Year, Code: k.Code}
		natNum[g] += l
		natDen[g] += l + capital[k]
	}

	national := make(map[raw.Key]float64)
	for g, den := range natDen {
		if den != 0 {
			national[g] = natNum[g] / den
		}
	}

	// step 3: cleaned state estimates
	cleaned := make(Table)
	replaced := 0
	for k := range gdp {
		g := raw.Key{Year: k.Year, Code: k.Code}
		nat, ok := national[g]
		if !ok {
			continue
		}

		l, haveL := labor[k]
		den := l + capital[k]

		est := math.NaN()
		if haveL && den != 0 {
			est = l / den
		}

		if math.IsNaN(est) || est < 0 || math.Abs(est-nat) > outlierBand {
			est = nat
			replaced++
		}

		cleaned[Key{Year: k.Year, Region: k.Region, Code: k.Code}] = est
	}

	if replaced > 0 {
		spec.lg.Info().Int("cells", replaced).Msg("labor: raw share estimates replaced by national baseline")
	}

	// step 4: constrained solve per (sector, year)
	groups := make(map[raw.Key][]Key)
	for k := range cleaned {
		g := raw.Key{Year: k.Year, Code: k.Code}
		groups[g] = append(groups[g], k)
	}

	groupKeys := make([]raw.Key, 0, len(groups))
	for g := range groups {
		groupKeys = append(groupKeys, g)
	}
	sort.Slice(groupKeys, func(i, j int) bool {
		if groupKeys[i].Code != groupKeys[j].Code {
			return groupKeys[i].Code < groupKeys[j].Code
		}
		return groupKeys[i].Year < groupKeys[j].Year
	})

	res := &LaborResult{Labor: make(Table), Capital: make(Table), National: national}

	for _, g := range groupKeys {
		cells := groups[g]
		sort.Slice(cells, func(i, j int) bool { return cells[i].Region < cells[j].Region })

		var (
			keep    []Key
			est     []float64
			weights []float64
		)
		for _, k := range cells {
			gv := gdp[raw.Key{Year: k.Year, Region: k.Region, Code: k.Code}]
			if gv <= 0 {
				// fixed at zero: absent from the result, excluded from the constraint
				continue
			}

			keep = append(keep, k)
			est = append(est, cleaned[k])
			weights = append(weights, gv)
		}

		if len(keep) == 0 {
			continue
		}

		target := national[g]
		solved, e := solveGroup(est, weights, target, spec)
		if e != nil {
			return nil, fmt.Errorf("sector %s year %d: %w", g.Code, g.Year, e)
		}

		for ind, k := range keep {
			res.Labor[k] = solved[ind]
			res.Capital[k] = 1 - solved[ind]
		}
	}

	if len(res.Labor) == 0 {
		return nil, fmt.Errorf("labor: no solvable (sector, year) groups")
	}

	return res, nil
}

// solveGroup minimizes sum_s w_s (l_s - est_s)^2 subject to
// sum_s omega_s l_s = target with l_s in [lo, hi], where omega is the GDP
// weight vector normalized to one.  The KKT conditions give
// l_s(lambda) = clip(est_s + lambda*omega_s/(2 w_s), lo, hi) with
// G(lambda) = sum omega_s l_s(lambda) nondecreasing, so lambda solves by
// bisection.
func solveGroup(est, weights []float64, target float64, spec *laborSpec) ([]float64, error) {
	n := len(est)

	omega := make([]float64, n)
	copy(omega, weights)
	floats.Scale(1/floats.Sum(omega), omega)

	lo := lowerBoundFrac * target
	hi := 1.0
	if target < 0 || target > 1 {
		return nil, fmt.Errorf("%w: national share %.4f outside [0,1]", ErrInfeasible, target)
	}

	eval := func(lambda float64) (float64, []float64) {
		l := make([]float64, n)
		for ind := range l {
			l[ind] = stateio.Clip(est[ind]+lambda*omega[ind]/(2*weights[ind]), lo, hi)
		}

		return floats.Dot(omega, l), l
	}

	// bracket the dual root
	lamLo, lamHi := -1.0, 1.0
	gLo, _ := eval(lamLo)
	gHi, _ := eval(lamHi)
	for iter := 0; gLo > target || gHi < target; iter++ {
		if iter >= spec.maxIter {
			return nil, fmt.Errorf("%w: could not bracket dual after %d expansions", ErrNoConvergence, spec.maxIter)
		}

		if gLo > target {
			lamLo *= 2
			gLo, _ = eval(lamLo)
		}
		if gHi < target {
			lamHi *= 2
			gHi, _ = eval(lamHi)
		}
	}

	for iter := 0; iter < spec.maxIter; iter++ {
		mid := 0.5 * (lamLo + lamHi)
		gMid, l := eval(mid)

		if math.Abs(gMid-target) <= spec.tol {
			return l, nil
		}

		if gMid < target {
			lamLo = mid
			continue
		}
		lamHi = mid
	}

	// the dual interval collapsed without meeting tolerance
	_, l := eval(0.5 * (lamLo + lamHi))
	g := floats.Dot(omega, l)
	if math.Abs(g-target) <= 1e-6 {
		return l, nil
	}

	return nil, fmt.Errorf("%w: residual %.3e after %d iterations", ErrNoConvergence, math.Abs(g-target), spec.maxIter)
}
