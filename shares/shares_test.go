package shares

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharesCheck(t *testing.T) {
	sh := Table{
		{Year: 2017, Region: "WI", Code: "agr"}: 0.6,
		{Year: 2017, Region: "MN", Code: "agr"}: 0.4,
	}
	assert.Nil(t, sh.Check(1e-9))

	sh[Key{Year: 2017, Region: "IA", Code: "agr"}] = 0.4
	e := sh.Check(1e-9)
	assert.NotNil(t, e)
	assert.Contains(t, e.Error(), "agr")
}

func TestSharesLookups(t *testing.T) {
	sh := Table{
		{Year: 2017, Region: "WI", Code: "agr"}: 0.6,
		{Year: 2017, Region: "MN", Code: "agr"}: 0.4,
		{Year: 2018, Region: "WI", Code: "mfg"}: 1.0,
	}

	assert.Equal(t, []string{"agr", "mfg"}, sh.Codes())
	assert.Equal(t, []string{"MN", "WI"}, sh.PairsForYear(2017))
	assert.Equal(t, []string{"WI"}, sh.PairsForYear(2018))
	assert.Empty(t, sh.PairsForYear(1999))

	byRegion := sh.ForCode(2017, "agr")
	assert.Equal(t, 0.6, byRegion["WI"])
	assert.Empty(t, sh.ForCode(2017, "mfg"))
}

func TestSharesSortedKeys(t *testing.T) {
	sh := Table{
		{Year: 2018, Region: "WI", Code: "agr"}: 1,
		{Year: 2017, Region: "WI", Code: "agr"}: 1,
		{Year: 2017, Region: "MN", Code: "agr"}: 1,
	}

	keys := sh.SortedKeys()
	assert.Equal(t, Key{Year: 2017, Region: "MN", Code: "agr"}, keys[0])
	assert.Equal(t, Key{Year: 2018, Region: "WI", Code: "agr"}, keys[2])
}
