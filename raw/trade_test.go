package raw

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func tradeMaps() Maps {
	return Maps{NAICS4: map[string]string{"3361": "veh", "1111": "agr"}}
}

func shareOf(t Table, year int, region, code, flow string) (float64, bool) {
	for _, r := range t {
		if r.Year == year && r.Region == region && r.Code == code && r.Name == flow {
			return r.Value, true
		}
	}

	return 0, false
}

// A series first observed in 2003 backfills 1997-2002 with its 2003 share.
func TestTradeBackfill(t *testing.T) {
	years := []int{1997, 1998, 1999, 2000, 2001, 2002, 2003, 2004}

	var recs []TradeRecord
	for _, y := range []int{2003, 2004} {
		recs = append(recs,
			TradeRecord{Year: y, State: "WI", NAICS: "3361", Flow: FlowExport, Value: "700"},
			TradeRecord{Year: y, State: "MN", NAICS: "3361", Flow: FlowExport, Value: "300"},
		)
	}

	shares, e := TradeShares(recs, nil, "agr", years, tradeMaps(), zerolog.Nop())
	assert.Nil(t, e)

	for _, y := range years {
		s, ok := shareOf(shares, y, "WI", "veh", FlowExport)
		assert.True(t, ok, "year %d missing", y)
		assert.InDelta(t, 0.7, s, 1e-9)
	}
}

// Shares across states sum to one for every (commodity, flow, year).
func TestTradeNormalization(t *testing.T) {
	years := []int{1997, 1998}

	recs := []TradeRecord{
		{Year: 1997, State: "WI", NAICS: "3361", Flow: FlowImport, Value: "100"},
		{Year: 1997, State: "MN", NAICS: "3361", Flow: FlowImport, Value: "400"},
		{Year: 1998, State: "WI", NAICS: "3361", Flow: FlowImport, Value: "250"},
	}

	shares, e := TradeShares(recs, nil, "agr", years, tradeMaps(), zerolog.Nop())
	assert.Nil(t, e)

	for _, y := range years {
		tot := 0.0
		for _, r := range shares {
			if r.Year == y && r.Code == "veh" && r.Name == FlowImport {
				tot += r.Value
			}
		}
		assert.InDelta(t, 1.0, tot, 1e-9)
	}
}

// The agricultural commodity's export shares come from USDA, not USA trade.
func TestTradeAgSubstitution(t *testing.T) {
	recs := []TradeRecord{
		{Year: 2003, State: "WI", NAICS: "1111", Flow: FlowExport, Value: "999"},
		{Year: 2003, State: "MN", NAICS: "1111", Flow: FlowExport, Value: "1"},
	}

	ag, e := AgFlow([]AgFlowRecord{
		{Year: 2003, State: "WI", Value: "100"},
		{Year: 2003, State: "MN", Value: "300"},
	}, "agr")
	assert.Nil(t, e)

	shares, e2 := TradeShares(recs, ag, "agr", []int{2003}, tradeMaps(), zerolog.Nop())
	assert.Nil(t, e2)

	s, ok := shareOf(shares, 2003, "WI", "agr", FlowExport)
	assert.True(t, ok)
	assert.InDelta(t, 0.25, s, 1e-9)
}

// Suppressed cells drop rather than coerce to zero.
func TestParseValue(t *testing.T) {
	_, ok := ParseValue("(D)", Thousands)
	assert.False(t, ok)

	_, ok = ParseValue("", Millions)
	assert.False(t, ok)

	v, ok := ParseValue("1,250,000", Thousands)
	assert.True(t, ok)
	assert.InDelta(t, 1.25, v, 1e-12)
}
