package raw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFAFBenchmark(t *testing.T) {
	cases := map[int]int{
		1997: 1997, 1998: 1997, 1999: 1997,
		2000: 2002, 2004: 2002,
		2005: 2007, 2009: 2007,
		2010: 2012, 2014: 2012,
		2015: 2017, 2016: 2017,
		2017: 2017, 2019: 2019,
	}

	for year, want := range cases {
		assert.Equal(t, want, FAFBenchmark(year), "year %d", year)
	}
}

func TestRPC(t *testing.T) {
	flows := []FAFFlow{
		{Year: 2012, Origin: "WI", Dest: "WI", Code: "food", Value: 30},
		{Year: 2012, Origin: "MN", Dest: "WI", Code: "food", Value: 10},
		{Year: 2012, Origin: "MN", Dest: "MN", Code: "food", Value: 5},
	}

	// 2013 reads from the 2012 benchmark
	rpc, e := RPC(flows, []int{2013})
	assert.Nil(t, e)

	var wi, mn float64
	for _, r := range rpc {
		assert.GreaterOrEqual(t, r.Value, 0.0)
		assert.LessOrEqual(t, r.Value, 1.0)
		assert.Equal(t, 2013, r.Year)

		switch r.Region {
		case "WI":
			wi = r.Value
		case "MN":
			mn = r.Value
		}
	}

	assert.InDelta(t, 0.75, wi, 1e-12)
	assert.InDelta(t, 1.0, mn, 1e-12)
}

func TestGSPDropsSuppressed(t *testing.T) {
	recs := []GSPRecord{
		{GeoFIPS: "55", LineCode: LineLabor, Industry: "11", Year: 2017, Value: "2000000"},
		{GeoFIPS: "27", LineCode: LineLabor, Industry: "11", Year: 2017, Value: "(D)"},
		{GeoFIPS: "00", LineCode: LineLabor, Industry: "11", Year: 2017, Value: "999"},
		{GeoFIPS: "55", LineCode: LineGDP, Industry: "11", Year: 2017, Value: "5000000"},
	}

	m := Maps{BEA: map[string]string{"11": "agr"}}

	got, e := GSP(recs, LineLabor, m)
	assert.Nil(t, e)
	assert.Len(t, got, 1)
	assert.Equal(t, "WI", got[0].Region)
	assert.InDelta(t, 2.0, got[0].Value, 1e-12)
}
