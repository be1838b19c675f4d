package service

import (
	"strings"

	"processo/internal/core/cnj"
	"processo/internal/services/collect/domain"
)

// mergeRecords combines a registry record with a scraped one. Registry
// fields are authoritative and never overwritten; scraped data only fills
// gaps. The registry's movement list is kept as-is, the scraped list never
// replaces it; scraped full decision texts are grafted onto matching
// registry movements. The second return reports whether the scrape
// contributed anything
func mergeRecords(reg, scr *domain.ProcessRecord) (*domain.ProcessRecord, bool) {
	out := *reg
	out.Movements = append([]domain.Movement(nil), reg.Movements...)
	changed := false

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&out.Parties.Claimant, scr.Parties.Claimant)
	fill(&out.Parties.Defendant, scr.Parties.Defendant)
	fill(&out.Attorneys.Claimant, scr.Attorneys.Claimant)
	fill(&out.Attorneys.Defendant, scr.Attorneys.Defendant)
	fill(&out.SubjectClass, scr.SubjectClass)
	fill(&out.Court, scr.Court)
	fill(&out.JudgingBody, scr.JudgingBody)
	fill(&out.ClaimValue, scr.ClaimValue)
	if len(out.Subjects) == 0 && len(scr.Subjects) > 0 {
		out.Subjects = append([]string(nil), scr.Subjects...)
		changed = true
	}

	for i := range out.Movements {
		m := &out.Movements[i]
		if m.FullText != "" {
			continue
		}
		if full := matchScrapedFullText(m, scr.Movements); full != "" {
			m.FullText = full
			changed = true
		}
	}
	return &out, changed
}

// matchScrapedFullText finds a scraped movement that plausibly is the same
// entry: same calendar day and one short text folded-contains the other
func matchScrapedFullText(m *domain.Movement, scraped []domain.Movement) string {
	mf := cnj.Fold(m.ShortText)
	for i := range scraped {
		s := &scraped[i]
		if s.FullText == "" || !sameDay(m, s) {
			continue
		}
		sf := cnj.Fold(s.ShortText)
		if mf == "" || sf == "" {
			continue
		}
		if foldedOverlap(mf, sf) {
			return s.FullText
		}
	}
	return ""
}

func sameDay(a, b *domain.Movement) bool {
	ay, am, ad := a.Date.Date()
	by, bm, bd := b.Date.Date()
	return ay == by && am == bm && ad == bd
}

func foldedOverlap(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return a != "" && strings.Contains(b, a)
}

// classifyRecord runs the movement classifier over every movement, always
// preferring the full text when present. Classification is deterministic,
// re-running it over already-classified scraped movements is a no-op
func (o *Orchestrator) classifyRecord(rec *domain.ProcessRecord) {
	for i := range rec.Movements {
		m := &rec.Movements[i]
		text := m.FullText
		if text == "" {
			text = m.ShortText
		}
		res := o.cls.Classify(text)
		m.Keywords = res.Keywords
		m.Outcome = res.Outcome
		m.IsDecision = res.IsDecision
		m.Priority = res.Priority
		if m.Amount == "" && len(res.Amounts) > 0 {
			m.Amount = res.Amounts[0]
		}
	}
}
