package cnj

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pool of fresh transformer chains
// order matters: decompose, strip accents, case fold
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks (ç -> c, ã -> a)
			cases.Fold(),                       // unicode case folding
		)
	},
}

// Fold returns the deterministic folded form of s: accents stripped, case
// folded, whitespace collapsed to single spaces and trimmed.
// Equal logical inputs always fold to the same output, which is what keeps
// cache keys stable across casing and spacing variants
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	return strings.Join(strings.Fields(ns), " ")
}
