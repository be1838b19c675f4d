package classify

import (
	"sort"
	"strings"

	"processo/internal/core/cnj"
)

// Outcome is the decision classification of a movement text
type Outcome string

const (
	// OutcomeDeferred means the request was granted
	OutcomeDeferred Outcome = "deferred"
	// OutcomeDenied means the request was refused
	OutcomeDenied Outcome = "denied"
	// OutcomePartial means the request was granted only in part
	OutcomePartial Outcome = "partial"
	// OutcomeUnclassified means no decision phrase matched
	OutcomeUnclassified Outcome = "unclassified"
)

// Classifier runs deterministic classification over movement text.
// It holds only the immutable compiled pack, so a single instance is safe
// for concurrent use from every worker
type Classifier struct {
	p *Pack
}

// New builds a Classifier over a compiled pack
func New(p *Pack) *Classifier { return &Classifier{p: p} }

// Result bundles every signal extracted from one movement text
type Result struct {
	Keywords   []string
	Outcome    Outcome
	Amounts    []string
	Dates      []string
	IsDecision bool
	Priority   int
}

// Classify runs the full pipeline over one text
func (c *Classifier) Classify(text string) Result {
	kws := c.DetectKeywords(text)
	return Result{
		Keywords:   kws,
		Outcome:    c.ClassifyDecision(text),
		Amounts:    ExtractAmounts(text),
		Dates:      ExtractDates(text),
		IsDecision: c.IsJudicialDecision(text),
		Priority:   c.Priority(kws),
	}
}

// DetectKeywords returns the sorted set of keyword ids whose variants occur
// in text. Matching is case and accent insensitive; the first matching
// variant per keyword is enough and duplicates collapse to one entry
func (c *Classifier) DetectKeywords(text string) []string {
	folded := cnj.Fold(text)
	if folded == "" {
		return nil
	}
	var out []string
	for _, kw := range c.p.Keywords {
		for _, v := range kw.Variants {
			if strings.Contains(folded, v) {
				out = append(out, kw.ID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ClassifyDecision runs the ordered phrase groups over text.
// Partial is checked first so a text carrying both a partial-grant phrase
// and a plain grant phrase classifies as partial, then denied (whose
// phrases contain the grant stems, eg "indeferido"), then deferred
func (c *Classifier) ClassifyDecision(text string) Outcome {
	folded := cnj.Fold(text)
	if folded == "" {
		return OutcomeUnclassified
	}
	if containsAny(folded, c.p.Partial) {
		return OutcomePartial
	}
	if containsAny(folded, c.p.Denied) {
		return OutcomeDenied
	}
	if containsAny(folded, c.p.Deferred) {
		return OutcomeDeferred
	}
	return OutcomeUnclassified
}

// IsJudicialDecision is a heuristic OR over the fixed indicator token list.
// It is deliberately independent of ClassifyDecision: a decision phrase can
// match without this heuristic firing and vice versa
func (c *Classifier) IsJudicialDecision(text string) bool {
	folded := cnj.Fold(text)
	if folded == "" {
		return false
	}
	return containsAny(folded, c.p.Indicators)
}

// Priority ranks a detected keyword set into the fixed 1..5 tiering:
// freeze/restriction/lien systems 5, settlement/objection 4,
// citation/notice/protest 3, anything else detected 2, nothing 1
func (c *Classifier) Priority(keywords []string) int {
	if len(keywords) == 0 {
		return 1
	}
	best := 2
	for _, id := range keywords {
		for _, kw := range c.p.Keywords {
			if kw.ID != id {
				continue
			}
			if kw.Tier > best {
				best = kw.Tier
			}
			break
		}
	}
	return best
}

func containsAny(folded string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}
