package stateio

import "sort"

// stateFIPS maps census state FIPS codes to postal abbreviations.  The 51
// entries (50 states plus DC) are the region set of every state table.
var stateFIPS = map[string]string{
	"01": "AL", "02": "AK", "04": "AZ", "05": "AR", "06": "CA",
	"08": "CO", "09": "CT", "10": "DE", "11": "DC", "12": "FL",
	"13": "GA", "15": "HI", "16": "ID", "17": "IL", "18": "IN",
	"19": "IA", "20": "KS", "21": "KY", "22": "LA", "23": "ME",
	"24": "MD", "25": "MA", "26": "MI", "27": "MN", "28": "MS",
	"29": "MO", "30": "MT", "31": "NE", "32": "NV", "33": "NH",
	"34": "NJ", "35": "NM", "36": "NY", "37": "NC", "38": "ND",
	"39": "OH", "40": "OK", "41": "OR", "42": "PA", "44": "RI",
	"45": "SC", "46": "SD", "47": "TN", "48": "TX", "49": "UT",
	"50": "VT", "51": "VA", "53": "WA", "54": "WV", "55": "WI",
	"56": "WY",
}

// States returns the 51 state abbreviations, sorted.
func States() []string {
	out := make([]string, 0, len(stateFIPS))
	for _, ab := range stateFIPS {
		out = append(out, ab)
	}

	sort.Strings(out)

	return out
}

// StateFromFIPS maps a two-digit census FIPS code to its postal abbreviation.
// Territories and national aggregates ("00", "72", ...) return "".
func StateFromFIPS(fips string) string {
	return stateFIPS[fips]
}

// IsState reports whether ab is one of the 51 state abbreviations.
func IsState(ab string) bool {
	for _, s := range stateFIPS {
		if s == ab {
			return true
		}
	}

	return false
}
