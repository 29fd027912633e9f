// Package disagg turns one national input-output table into 51 state tables:
// a generic share-based disaggregation primitive, a strictly ordered pipeline
// of transformation stages, and the accounting-identity reducers that serve
// both as pipeline inputs and as post-hoc balance validators.
package disagg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stateio/stateio"
	"github.com/stateio/stateio/shares"
)

// ErrEmptyJoin marks a required join that produced no rows.  Distinct from the
// handled fallbacks: this one aborts the stage.
var ErrEmptyJoin = errors.New("join produced no rows")

// Domain selects which fact identifier joins to the shares table.
type Domain int

const (
	DomainRow Domain = iota
	DomainCol
)

// DefaultFallbackLabel names the uniform fallback in log records.
// The upstream source used the literal label "labor" here, flagged in its own
// comments as wrong; the label is configurable and every use is logged.
const DefaultFallbackLabel = "uniform"

type bySpec struct {
	fallback string
	lg       zerolog.Logger
}

type ByOpt func(*bySpec)

// FallbackLabel overrides the label recorded on uniform-fallback rows.
func FallbackLabel(label string) ByOpt {
	return func(s *bySpec) { s.fallback = label }
}

func ByLogger(lg zerolog.Logger) ByOpt {
	return func(s *bySpec) { s.lg = lg }
}

// ByShares splits each national fact under params across regions in
// proportion to the shares matching its (year, row-or-col code).  The split
// renormalizes over the matching subset, so the regional values always sum
// back to the national value.  A code with no share data at all distributes
// uniformly over the regions present in the shares table for that year; a
// year with no share data at all is an ErrEmptyJoin.
func ByShares(national *stateio.Table, sh shares.Table, params []string, domain Domain, opts ...ByOpt) (map[string][]stateio.Fact, error) {
	spec := &bySpec{fallback: DefaultFallbackLabel, lg: zerolog.Nop()}
	for _, o := range opts {
		o(spec)
	}

	out := make(map[string][]stateio.Fact)
	for _, p := range params {
		natFacts := national.Facts(p)
		if natFacts == nil {
			return nil, fmt.Errorf("parameter %s: %w", p, ErrEmptyJoin)
		}

		for _, f := range natFacts {
			code := f.Row
			if domain == DomainCol {
				code = f.Col
			}

			split, e := splitFact(f, code, p, sh, spec)
			if e != nil {
				return nil, e
			}

			out[p] = append(out[p], split...)
		}
	}

	return out, nil
}

func splitFact(f stateio.Fact, code, param string, sh shares.Table, spec *bySpec) ([]stateio.Fact, error) {
	byRegion := sh.ForCode(f.Year, code)

	if len(byRegion) == 0 {
		// no share data for this code: uniform across the regions present
		// in the shares table for this year
		regions := sh.PairsForYear(f.Year)
		if len(regions) == 0 {
			return nil, fmt.Errorf("parameter %s year %d: %w", param, f.Year, ErrEmptyJoin)
		}

		spec.lg.Warn().Str("parameter", param).Str("code", code).Int("year", f.Year).
			Str("fallback", spec.fallback).Msg("no share data; distributing uniformly")

		var out []stateio.Fact
		per := f.Value / float64(len(regions))
		for _, r := range regions {
			g := f
			g.Region = r
			g.Value = per
			out = append(out, g)
		}

		return out, nil
	}

	tot := 0.0
	for _, s := range byRegion {
		tot += s
	}
	if tot == 0 {
		return nil, fmt.Errorf("parameter %s code %s year %d: shares sum to zero", param, code, f.Year)
	}

	regions := make([]string, 0, len(byRegion))
	for r := range byRegion {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	var out []stateio.Fact
	for _, r := range regions {
		g := f
		g.Region = r
		g.Value = f.Value * byRegion[r] / tot
		out = append(out, g)
	}

	return out, nil
}
