package disagg

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	s "github.com/stateio/stateio"
	"github.com/stateio/stateio/shares"
)

func twoStateShares(a, b float64) shares.Table {
	return shares.Table{
		{Year: 2017, Region: "WI", Code: "s1"}: a,
		{Year: 2017, Region: "MN", Code: "s1"}: b,
		{Year: 2017, Region: "WI", Code: "s2"}: a,
		{Year: 2017, Region: "MN", Code: "s2"}: b,
	}
}

func nationalTwoSector() *s.Table {
	t := s.NewTable(s.StandardSets(), s.ParameterElements(s.IntermediateDemand))
	t = t.Extend(nil, []s.Element{
		{Name: "s1", Sets: []string{s.SetSector}},
		{Name: "s2", Sets: []string{s.SetSector}},
		{Name: "c1", Sets: []string{s.SetCommodity}},
		{Name: "c2", Sets: []string{s.SetCommodity}},
	})
	t = t.Append(s.IntermediateDemand,
		s.Fact{Row: "c1", Col: "s1", Year: 2017, Value: 100},
		s.Fact{Row: "c2", Col: "s2", Year: 2017, Value: 77},
	)

	return t
}

// GDP shares {StateA: 0.6, StateB: 0.4} split an Intermediate_Demand of 100
// into exactly 60/40.
func TestBySharesExactSplit(t *testing.T) {
	nat := nationalTwoSector()

	split, e := ByShares(nat, twoStateShares(0.6, 0.4), []string{s.IntermediateDemand}, DomainCol)
	assert.Nil(t, e)

	byRegion := make(map[string]float64)
	for _, f := range split[s.IntermediateDemand] {
		if f.Row == "c1" {
			byRegion[f.Region] = f.Value
		}
	}

	assert.Equal(t, 60.0, byRegion["WI"])
	assert.Equal(t, 40.0, byRegion["MN"])
}

// regional values sum back to the national value for every disaggregated
// fact, even when only a subset of states carries shares.
func TestBySharesRegionalSummation(t *testing.T) {
	nat := nationalTwoSector()

	// s2 shares don't sum to one; renormalization must absorb that
	sh := shares.Table{
		{Year: 2017, Region: "WI", Code: "s1"}: 0.6,
		{Year: 2017, Region: "MN", Code: "s1"}: 0.4,
		{Year: 2017, Region: "WI", Code: "s2"}: 0.2,
		{Year: 2017, Region: "MN", Code: "s2"}: 0.3,
	}

	split, e := ByShares(nat, sh, []string{s.IntermediateDemand}, DomainCol)
	assert.Nil(t, e)

	sums := s.SumBy(split[s.IntermediateDemand], func(f s.Fact) s.GroupKey {
		return s.GroupKey{Row: f.Row, Col: f.Col, Year: f.Year}
	})

	for k, v := range s.SumBy(nat.Facts(s.IntermediateDemand), func(f s.Fact) s.GroupKey {
		return s.GroupKey{Row: f.Row, Col: f.Col, Year: f.Year}
	}) {
		assert.InEpsilon(t, v, sums[k], 1e-9, "cell %v", k)
	}
}

// a code absent from the shares table distributes uniformly over the regions
// present that year.
func TestBySharesUniformFallback(t *testing.T) {
	nat := s.NewTable(s.StandardSets(), s.ParameterElements(s.Export))
	nat = nat.Append(s.Export, s.Fact{Row: "c9", Col: "trade", Year: 2017, Value: -30})

	split, e := ByShares(nat, twoStateShares(0.6, 0.4), []string{s.Export}, DomainRow)
	assert.Nil(t, e)

	facts := split[s.Export]
	assert.Len(t, facts, 2)
	for _, f := range facts {
		assert.InDelta(t, -15.0, f.Value, 1e-12)
	}
}

// a year wholly absent from the shares table is a hard empty join.
func TestBySharesEmptyJoin(t *testing.T) {
	nat := s.NewTable(s.StandardSets(), s.ParameterElements(s.Export))
	nat = nat.Append(s.Export, s.Fact{Row: "c9", Col: "trade", Year: 1999, Value: -30})

	_, e := ByShares(nat, twoStateShares(0.6, 0.4), []string{s.Export}, DomainRow)
	assert.ErrorIs(t, e, ErrEmptyJoin)
}

// Split one national entry across states.
func ExampleByShares() {
	nat := s.NewTable(s.StandardSets(), s.ParameterElements(s.IntermediateDemand))
	nat = nat.Append(s.IntermediateDemand, s.Fact{Row: "c1", Col: "s1", Year: 2017, Value: 100})

	sh := shares.Table{
		{Year: 2017, Region: "WI", Code: "s1"}: 0.6,
		{Year: 2017, Region: "MN", Code: "s1"}: 0.4,
	}

	split, _ := ByShares(nat, sh, []string{s.IntermediateDemand}, DomainCol)
	for _, f := range split[s.IntermediateDemand] {
		fmt.Println(f.Region, f.Value)
	}
	// Output:
	// MN 40
	// WI 60
}

func almostZero(t *testing.T, m map[s.GroupKey]float64, tol float64) {
	t.Helper()

	for k, v := range m {
		assert.LessOrEqual(t, math.Abs(v), tol, "cell %v", k)
	}
}
