package stateio

import "strings"

// *********** Generic helpers ***********

func has[C comparable](needle C, haystack []C) bool {
	return position(needle, haystack) >= 0
}

func position[C comparable](needle C, haystack []C) int {
	for ind, straw := range haystack {
		if needle == straw {
			return ind
		}
	}

	return -1
}

// Has reports whether needle is among haystack.
func Has[C comparable](needle C, haystack ...C) bool {
	return has(needle, haystack)
}

// Clip bounds x to [lo, hi].
func Clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}

	if x > hi {
		return hi
	}

	return x
}

func validName(name string) bool {
	const illegal = "!@#$%^&*()=+;:'`>< ~ " + `"`

	return name != "" && !strings.ContainsAny(name, illegal)
}
