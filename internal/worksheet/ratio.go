package worksheet

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio scores the similarity of a and b from 0 to 100 using the
// Ratcliff/Obershelp matching-blocks measure. Equal strings score 100, and a
// string compared with an empty one scores 0.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(runes(a), runes(b))
	return int(math.RoundToEven(100 * m.Ratio()))
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
