package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"processo/internal/core/cnj"
	perr "processo/internal/platform/errors"
	"processo/internal/services/collect/domain"
)

// dateLayouts covers the formats the registry has been seen to emit
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseWireTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// toRecord maps one wire process into the domain model.
// Movement summaries are capped to the most recent ten and renumbered
// chronologically
func toRecord(wp wireProcess, fetchedAt time.Time) (*domain.ProcessRecord, error) {
	num, err := cnj.Parse(wp.Numero)
	if err != nil {
		return nil, perr.Malformedf("registry: bad process number %q", wp.Numero)
	}

	rec := &domain.ProcessRecord{
		Number:       num.String(),
		RawNumber:    cnj.Digits(num.String()),
		SubjectClass: strings.TrimSpace(wp.Classe),
		Subjects:     trimAll(wp.Assuntos),
		Court:        strings.TrimSpace(wp.Tribunal),
		JudgingBody:  strings.TrimSpace(wp.OrgaoJulgador),
		FilingDate:   parseWireTime(wp.DataAjuizamento),
		LastUpdate:   parseWireTime(wp.UltimaAtt),
		System:       strings.TrimSpace(wp.Sistema),
		Degree:       strings.TrimSpace(wp.Grau),
		Movements:    toMovements(wp.Movimentos),
		Source:       domain.SourceRegistry,
		FetchedAt:    fetchedAt,
	}
	if wp.ValorCausa > 0 {
		rec.ClaimValue = FormatBRL(wp.ValorCausa)
	}
	return rec, nil
}

// toMovements keeps the movementCap most recent entries ordered
// chronologically with a 1-based sequence
func toMovements(in []wireMovement) []domain.Movement {
	if len(in) == 0 {
		return nil
	}
	ms := make([]domain.Movement, 0, len(in))
	for _, wm := range in {
		text := strings.TrimSpace(wm.Nome)
		if wm.Complemento != "" {
			text = text + " - " + strings.TrimSpace(wm.Complemento)
		}
		if text == "" {
			continue
		}
		ms = append(ms, domain.Movement{Date: parseWireTime(wm.DataHora), ShortText: text})
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Date.Before(ms[j].Date) })
	if len(ms) > movementCap {
		ms = ms[len(ms)-movementCap:]
	}
	for i := range ms {
		ms[i].Order = i + 1
	}
	return ms
}

func sortByFilingDesc(recs []domain.ProcessRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].FilingDate.After(recs[j].FilingDate)
	})
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := strings.TrimSpace(s); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// FormatBRL renders a numeric claim value in the registry's own currency
// formatting (R$ thousands dots, decimal comma)
func FormatBRL(v float64) string {
	cents := int64(v*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("R$ %s,%02d", b.String(), frac)
}
