// Package classify turns free-text procedural movements into structured
// signals: detected keyword systems, decision outcomes, monetary amounts,
// dates, and a priority rank. Everything here is pure and deterministic;
// rules live in the embedded rules.json
package classify

import (
	_ "embed"
	"encoding/json"
	"sort"

	"processo/internal/core/cnj"
	perr "processo/internal/platform/errors"
)

//go:embed rules.json
var embedded []byte

type rawKeyword struct {
	ID       string   `json:"id"`
	Tier     int      `json:"tier"`
	Variants []string `json:"variants"`
}

type rawDecisions struct {
	Partial  []string `json:"partial"`
	Denied   []string `json:"denied"`
	Deferred []string `json:"deferred"`
}

type rawPack struct {
	Version            int            `json:"version"`
	Meta               map[string]any `json:"meta"`
	Keywords           []rawKeyword   `json:"keywords"`
	Decisions          rawDecisions   `json:"decisions"`
	DecisionIndicators []string       `json:"decision_indicators"`
}

// Keyword is one compiled keyword entry: a stable id, its priority tier,
// and the folded variant forms it matches on
type Keyword struct {
	ID       string
	Tier     int
	Variants []string // folded, longest first
}

// Pack is the compiled rule pack consumed by the Classifier
type Pack struct {
	Version int
	Meta    map[string]any

	Keywords []Keyword

	// Decision phrase groups in check order; the first group with a match wins
	Partial  []string
	Denied   []string
	Deferred []string

	// Indicator tokens for the judicial-decision heuristic
	Indicators []string
}

// Load parses and compiles the embedded rules.json.
// All phrases are folded once here so Scan-time matching is a plain
// substring check over folded text
func Load() (*Pack, error) {
	var rp rawPack
	if err := json.Unmarshal(embedded, &rp); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeMalformed, "classify: parse embedded rules")
	}
	if rp.Version != 1 {
		return nil, perr.Malformedf("classify: unsupported rules version %d", rp.Version)
	}
	if len(rp.Keywords) == 0 {
		return nil, perr.Malformedf("classify: rules carry no keywords")
	}

	p := &Pack{
		Version:    rp.Version,
		Meta:       rp.Meta,
		Partial:    foldAll(rp.Decisions.Partial),
		Denied:     foldAll(rp.Decisions.Denied),
		Deferred:   foldAll(rp.Decisions.Deferred),
		Indicators: foldAll(rp.DecisionIndicators),
	}
	if len(p.Partial) == 0 || len(p.Denied) == 0 || len(p.Deferred) == 0 {
		return nil, perr.Malformedf("classify: a decision phrase group is empty")
	}

	p.Keywords = make([]Keyword, 0, len(rp.Keywords))
	for _, k := range rp.Keywords {
		if k.ID == "" || len(k.Variants) == 0 {
			return nil, perr.Malformedf("classify: keyword entry missing id or variants")
		}
		vs := foldAll(k.Variants)
		// longest first so the match metadata names the most specific variant
		sort.Slice(vs, func(i, j int) bool { return len(vs[i]) > len(vs[j]) })
		p.Keywords = append(p.Keywords, Keyword{ID: k.ID, Tier: k.Tier, Variants: vs})
	}
	return p, nil
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := cnj.Fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}
