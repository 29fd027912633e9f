package stateio

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testTable() *Table {
	sets := StandardSets()
	elems := []Element{
		{Name: "agr", Sets: []string{SetSector}},
		{Name: "mfg", Sets: []string{SetSector}},
		{Name: "food", Sets: []string{SetCommodity}},
		{Name: IntermediateDemand, Sets: []string{SetParameter}},
		{Name: IntermediateSupply, Sets: []string{SetParameter}},
	}

	t := NewTable(sets, elems)
	t = t.Append(IntermediateDemand,
		Fact{Row: "food", Col: "agr", Region: "WI", Year: 2017, Value: 10},
		Fact{Row: "food", Col: "mfg", Region: "WI", Year: 2017, Value: 5},
	)
	t = t.Append(IntermediateSupply,
		Fact{Row: "food", Col: "agr", Region: "WI", Year: 2017, Value: 12},
	)

	return t
}

func TestFilter(t *testing.T) {
	tbl := testTable()

	// by parameter
	got := tbl.Filter([]string{IntermediateDemand})
	assert.Len(t, got, 2)

	// by set membership: commodity matches rows with Row in the set
	got = tbl.Filter([]string{SetCommodity})
	assert.Len(t, got, 3)

	// normalize flips one parameter's contribution
	got = tbl.Filter([]string{IntermediateDemand, IntermediateSupply}, Normalize(IntermediateSupply))
	total := 0.0
	for _, f := range got {
		total += f.Value
	}
	assert.InDelta(t, 10+5-12, total, 1e-12)
}

func TestAppendImmutable(t *testing.T) {
	tbl := testTable()
	before := tbl.RowCount()

	tbl2 := tbl.Append(IntermediateDemand, Fact{Row: "food", Col: "agr", Region: "MN", Year: 2017, Value: 1})

	assert.Equal(t, before, tbl.RowCount())
	assert.Equal(t, before+1, tbl2.RowCount())
}

func TestUnionConflict(t *testing.T) {
	a := NewTable([]Set{{Name: "sector", Domain: DomCol}}, nil)
	b := NewTable([]Set{{Name: "sector", Domain: DomRow}}, nil)

	_, e := a.Union(b)
	assert.NotNil(t, e)
	assert.Contains(t, e.Error(), "sector")
}

func TestCheck(t *testing.T) {
	ok := testTable()
	assert.Nil(t, ok.Check())

	// element referencing an unknown set
	bad := ok.Extend(nil, []Element{{Name: "x", Sets: []string{"nope"}}})
	e := bad.Check()
	assert.NotNil(t, e)
	assert.Contains(t, e.Error(), "nope")

	// conflicting set domains
	bad = ok.Extend([]Set{{Name: SetSector, Domain: DomRow}}, nil)
	e = bad.Check()
	assert.NotNil(t, e)
	assert.Contains(t, e.Error(), SetSector)

	// facts under an undeclared parameter
	bad = ok.Append("Mystery", Fact{Row: "food", Col: "agr", Year: 2017, Value: 1})
	e = bad.Check()
	assert.NotNil(t, e)
	assert.Contains(t, e.Error(), "Mystery")

	// illegal names
	bad = ok.Extend([]Set{{Name: "bad set", Domain: DomRow}}, nil)
	assert.NotNil(t, bad.Check())

	bad = ok.Extend(nil, []Element{{Name: "agr;", Sets: []string{SetSector}}})
	assert.NotNil(t, bad.Check())
}

func TestFilesRoundTrip(t *testing.T) {
	tbl := testTable()

	fn := filepath.Join(t.TempDir(), "facts.csv")
	f := NewFiles()
	assert.Nil(t, f.Save(fn, tbl))

	got, e := f.Load(fn)
	assert.Nil(t, e)
	assert.Equal(t, tbl.RowCount(), got.RowCount())
	assert.Equal(t, tbl.Facts(IntermediateDemand), got.Facts(IntermediateDemand))

	_ = os.Remove(fn)
}

func TestSplitQuoted(t *testing.T) {
	got := splitQuoted(`01,"Food, beverage",1.5`, ',')
	assert.Equal(t, []string{"01", "Food, beverage", "1.5"}, got)
}

// Sum intermediate demand by sector.
func ExampleSumBy() {
	tbl := testTable()

	sums := SumBy(tbl.Filter([]string{IntermediateDemand}), func(f Fact) GroupKey {
		return GroupKey{Col: f.Col, Year: f.Year}
	})

	for _, k := range SortedKeys(sums) {
		fmt.Println(k.Col, sums[k])
	}
	// Output:
	// agr 10
	// mfg 5
}
